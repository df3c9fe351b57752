//go:build darwin

package executor

// Darwin's rusage.Maxrss is reported in bytes, not KiB.
const maxRSSUnitDivisor = 1024
