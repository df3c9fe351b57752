//go:build linux

package executor

// Linux's rusage.Maxrss is already reported in KiB.
const maxRSSUnitDivisor = 1
