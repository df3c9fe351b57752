//go:build windows

package executor

import (
	"os"
	"os/exec"
)

// applyPlatformSettings is a no-op on Windows; there is no process-group
// primitive analogous to POSIX setpgid that exec.Cmd exposes portably.
func applyPlatformSettings(cmd *exec.Cmd) {}

// throttleSingleCore is a no-op on Windows; golang.org/x/sys/unix is not
// buildable here, and there's no portable substitute wired in for this flag.
func throttleSingleCore(pid int) {}

// childCPUSeconds: os.ProcessState.SysUsage() does not expose rusage on
// Windows, so exec seconds are unavailable here; the worker reports 0 and
// totalSeconds simply doesn't advance for tasks run on a Windows node. A
// faithful rusage equivalent would call GetProcessTimes via golang.org/x/sys/windows,
// which is future work if Windows nodes become a real deployment target.
func childCPUSeconds(ps *os.ProcessState) float64 {
	return 0
}

// childMaxRSSKiB: see childCPUSeconds — no portable rusage on Windows.
func childMaxRSSKiB(ps *os.ProcessState) int64 {
	return 0
}
