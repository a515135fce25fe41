//go:build windows

package procinspect

import "os"

type systemSignaler struct{}

func (systemSignaler) Terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
