//go:build !windows && !linux && !darwin

package executor

// Other BSD-derived platforms report Maxrss in KiB, like Linux.
const maxRSSUnitDivisor = 1
