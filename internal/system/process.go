package system

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// osProcess implements Process for the calling process.
type osProcess struct{}

func (p *osProcess) Geteuid() int { return os.Geteuid() }
func (p *osProcess) Getegid() int { return os.Getegid() }

// setThreadLimits sets niceness and affinity on the calling OS thread.
// Both are per thread on Linux and inherited by children forked from it.
// The caller must have locked the thread.
func setThreadLimits(l Limits) {
	if l.Cores > 0 {
		l.report("cpu", setThreadAffinity(l.Cores))
	}
	if l.Nice != nil {
		l.report("nice", unix.Setpriority(unix.PRIO_PROCESS, 0, *l.Nice))
	}
}

func setThreadAffinity(cores int) error {
	var set unix.CPUSet
	set.Zero()
	for i := 0; i < cores; i++ {
		set.Set(i)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("pin to %d cores: %w", cores, err)
	}
	return nil
}

// setChildMemory caps the address space of pid. RLIMIT_AS is per
// process, so it is never set on onyx itself.
func setChildMemory(pid int, l Limits) {
	if l.MemoryBytes == 0 {
		return
	}
	rl := unix.Rlimit{Cur: l.MemoryBytes, Max: l.MemoryBytes}
	l.report("memory", unix.Prlimit(pid, unix.RLIMIT_AS, &rl, nil))
}
