//go:build !windows && !darwin

package ui

import "os/exec"

var openCommand = func(path string) *exec.Cmd {
	return exec.Command("xdg-open", path)
}
