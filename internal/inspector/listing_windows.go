//go:build windows

package inspector

import (
	"context"
	"os/exec"
	"syscall"
)

const (
	listingName      = "tasklist"
	listingSupported = true
)

// platformListCommand returns tasklist with its console window hidden.
func platformListCommand(ctx context.Context) (*exec.Cmd, error) {
	// #nosec G204
	cmd := exec.CommandContext(ctx, "tasklist")
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	return cmd, nil
}
