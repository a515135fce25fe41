//go:build !linux && !darwin && !windows

package procinspect

import "context"

func defaultSource() Source { return unsupportedSource{} }

type unsupportedSource struct{}

func (unsupportedSource) Processes(context.Context) ([]Process, error) {
	return nil, ErrUnsupported
}
