//go:build darwin

package procinspect

import "github.com/lu-zhengda/launchdeck/internal/platform"

func defaultSource() Source { return PSSource{Runner: platform.DefaultRunner()} }
