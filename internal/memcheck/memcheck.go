// Package memcheck implements the worker-side memory admission gate on top
// of gopsutil's free-memory probe — the same mem.VirtualMemory() call a
// cluster manager would use to enforce per-worker memory limits.
package memcheck

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// BackoffDelay is the fixed sleep a worker observes between re-gating
// attempts after a refusal.
const BackoffDelay = 60 * time.Second

// Mode selects between the two admission policies.
type Mode int

const (
	// Generic refuses admission when free memory alone is below the floor.
	Generic Mode = iota
	// Specific additionally reserves headroom for a declared worst-case
	// task size.
	Specific
)

// Decision is the gate's verdict, a named type rather than a bare bool or
// int return, so there's no ambiguity at the call site about which value
// means what.
type Decision int

const (
	Admit Decision = iota
	Refuse
)

func (d Decision) String() string {
	if d == Admit {
		return "admit"
	}
	return "refuse"
}

// DefaultSafetyFloorKiB is the minimum free memory, in KiB, below which the
// gate always refuses.
const DefaultSafetyFloorKiB = 256 * 1024

// Gate is the admission-gate configuration for one worker.
type Gate struct {
	Mode           Mode
	MaxTaskKiB     int64 // only consulted in Specific mode
	SafetyFloorKiB int64
}

// NewGate builds a Gate. A zero or negative maxTaskKiB forces Generic mode
// regardless of the requested mode, since Specific mode is meaningless
// without a positive worst-case estimate.
func NewGate(mode Mode, maxTaskKiB int64) Gate {
	g := Gate{Mode: mode, MaxTaskKiB: maxTaskKiB, SafetyFloorKiB: DefaultSafetyFloorKiB}
	if mode == Specific && maxTaskKiB <= 0 {
		g.Mode = Generic
	}
	return g
}

// Check probes current free memory and returns Admit or Refuse.
func (g Gate) Check() (Decision, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Refuse, fmt.Errorf("memcheck: probing free memory: %w", err)
	}
	availableKiB := int64(vm.Available / 1024)

	switch g.Mode {
	case Specific:
		if availableKiB-g.MaxTaskKiB < g.SafetyFloorKiB {
			return Refuse, nil
		}
	default:
		if availableKiB < g.SafetyFloorKiB {
			return Refuse, nil
		}
	}
	return Admit, nil
}
