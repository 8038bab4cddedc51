package profile

import (
	"fmt"

	"github.com/firefly-engineering/onyx/internal/diag"
	"github.com/firefly-engineering/onyx/internal/logging"
	"github.com/firefly-engineering/onyx/internal/system"
)

const mib = 1024 * 1024

// LimitWarning records a limit that could not be applied. The session
// continues without that limit.
type LimitWarning struct {
	Limit string // "cpu", "nice" or "memory"
	Err   error
}

func (w LimitWarning) String() string {
	return fmt.Sprintf("%s limit not applied: %v", w.Limit, w.Err)
}

// MemoryCeiling returns the RLIMIT_AS value for p in bytes, or 0 for no limit.
func MemoryCeiling(p Profile, mem diag.Memory) (uint64, error) {
	switch p.Memory.Type {
	case MemoryPercent:
		total, err := mem.TotalPhysicalMemoryMB()
		if err != nil {
			return 0, fmt.Errorf("total memory unavailable: %w", err)
		}
		return uint64(p.Memory.Value) * total / 100 * mib, nil
	case MemoryFixed:
		if p.Memory.MB > maxFixedMB {
			return 0, fmt.Errorf("fixed ceiling of %d MB overflows", p.Memory.MB)
		}
		return p.Memory.MB * mib, nil
	default:
		return 0, nil
	}
}

// Limits resolves p into the limits placed on the sandboxed process:
// core pinning, niceness and the memory ceiling. A limit that cannot be
// resolved is logged, left out and returned as a warning. Nothing is
// applied to the calling process.
func Limits(p Profile, mem diag.Memory) (system.Limits, []LimitWarning) {
	log := logging.With("profile", p.Name)
	var warnings []LimitWarning
	warn := func(limit string, err error) {
		log.Warn("resource limit not applied", "limit", limit, "error", err)
		warnings = append(warnings, LimitWarning{Limit: limit, Err: err})
	}

	nice := p.Nice
	limits := system.Limits{Nice: &nice}

	if p.CPU != nil {
		if p.CPU.Cores <= 0 {
			warn("cpu", fmt.Errorf("invalid core count %d", p.CPU.Cores))
		} else {
			limits.Cores = p.CPU.Cores
		}
	}

	if p.Memory.Type != MemoryUnlimited {
		ceiling, err := MemoryCeiling(p, mem)
		switch {
		case err != nil:
			warn("memory", err)
		case ceiling == 0:
			warn("memory", fmt.Errorf("refusing a zero-byte memory ceiling (%s)", p.MemoryDisplay()))
		default:
			limits.MemoryBytes = ceiling
		}
	}

	log.Debug("resolved limits", "nice", nice, "cores", limits.Cores, "memory_bytes", limits.MemoryBytes)
	return limits, warnings
}
