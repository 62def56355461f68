// Package hostinfo detects facts about the host process semihosting's
// SYSTEM call and startup banner want to log, probing the kernel once at
// process start and caching the result.
package hostinfo

import (
	"fmt"
	"sync"

	"github.com/docker/docker/pkg/parsers/kernel"
)

var (
	once           sync.Once
	cachedVersion  *kernel.VersionInfo
	cachedErr      error
	modernExecOnce bool
)

// KernelVersion returns the host kernel version, probed once and cached.
// On platforms without uname (e.g. Windows) this returns an error every
// call; callers should treat that as "unknown", not fatal.
func KernelVersion() (*kernel.VersionInfo, error) {
	once.Do(func() {
		cachedVersion, cachedErr = kernel.GetKernelVersion()
	})
	return cachedVersion, cachedErr
}

// String renders the detected kernel version for log fields, or
// "unknown" if detection failed.
func String() string {
	v, err := KernelVersion()
	if err != nil {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d", v.Kernel, v.Major, v.Minor)
}

// minShellKernel is the kernel version below which SYSTEM (0x12) logs its
// shell-compatibility diagnostic. SYSTEM always executes through
// /bin/sh -c regardless of this check; PreferShell does not select
// between an argv-split path and a shell path, since no argv-split
// path exists.
var minShellKernel = kernel.VersionInfo{Kernel: 3, Major: 0, Minor: 0}

// PreferShell reports whether the running kernel is old enough that
// SYSTEM (0x12) should log its shell-compatibility diagnostic.
// Detection failure (e.g. non-Linux hosts) conservatively reports true,
// since kernel detection is least reliable where uname is absent.
func PreferShell() bool {
	v, err := KernelVersion()
	if err != nil {
		return true
	}
	return kernel.CompareKernelVersion(*v, minShellKernel) < 0
}
