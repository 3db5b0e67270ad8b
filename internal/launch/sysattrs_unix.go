//go:build !windows

package launch

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the attempt in its own process group so signals
// aimed at the launcher do not reach komorebi.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalOf(ee *exec.ExitError) (string, bool) {
	ws, ok := ee.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return "", false
	}
	return ws.Signal().String(), true
}
