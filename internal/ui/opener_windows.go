//go:build windows

package ui

import (
	"os/exec"
	"syscall"
)

var openCommand = func(path string) *exec.Cmd {
	cmd := exec.Command("cmd", "/c", "start", "", path)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	return cmd
}
