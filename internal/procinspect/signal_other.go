//go:build !unix && !windows

package procinspect

type systemSignaler struct{}

func (systemSignaler) Terminate(int) error {
	return ErrUnsupported
}
