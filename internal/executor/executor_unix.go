//go:build !windows

package executor

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// applyPlatformSettings puts the child in its own process group, the same
// way cluster/worker.go's applyOSSpecificSettings does, so a hung task's
// own descendants can be signaled together if the operator's --kill ever
// needs to reach past a shell wrapper.
func applyPlatformSettings(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// throttleSingleCore renices the child's process group after start, for
// --maple-single-core. This is a scheduling hint, not a hard affinity
// pin — golang.org/x/sys/unix exposes Setpriority portably across the
// Unix targets this runs on, but sched_setaffinity is Linux-only, so a
// real CPU pin would have to be platform-split again for no real benefit
// to a niceness-based throttle.
func throttleSingleCore(pid int) {
	_ = unix.Setpriority(unix.PRIO_PGRP, pid, 10)
}

// childCPUSeconds reads user+system CPU time from the exited child's
// rusage. Windows has no equivalent in os.ProcessState and reports 0
// instead (see executor_windows.go).
func childCPUSeconds(ps *os.ProcessState) float64 {
	if ps == nil {
		return 0
	}
	ru, ok := ps.SysUsage().(*syscall.Rusage)
	if !ok || ru == nil {
		return 0
	}
	user := float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/1e6
	sys := float64(ru.Stime.Sec) + float64(ru.Stime.Usec)/1e6
	return user + sys
}

// childMaxRSSKiB reads peak resident set size from the exited child's
// rusage. Darwin reports Maxrss in bytes, Linux in KiB; maxRSSUnitDivisor
// (platform-specific, see executor_linux.go/executor_darwin.go)
// normalizes that difference.
func childMaxRSSKiB(ps *os.ProcessState) int64 {
	if ps == nil {
		return 0
	}
	ru, ok := ps.SysUsage().(*syscall.Rusage)
	if !ok || ru == nil {
		return 0
	}
	return int64(ru.Maxrss) / maxRSSUnitDivisor
}
