package ui

import (
	"fmt"
	"path/filepath"
)

// OpenPath opens path with the OS default handler without waiting for it.
func OpenPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	cmd := openCommand(abs)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", abs, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
