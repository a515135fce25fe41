//go:build unix

package procinspect

import "golang.org/x/sys/unix"

type systemSignaler struct{}

// Terminate sends SIGTERM so the app can save state before exiting.
func (systemSignaler) Terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}
