//go:build unix

package platform

import (
	"os/exec"
	"syscall"
)

// detach starts the child in its own session so it outlives launchdeck
// and does not receive the terminal's signals.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
