package profile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/firefly-engineering/onyx/internal/config"
	"github.com/firefly-engineering/onyx/internal/logging"
)

// MemoryType selects the memory ceiling policy.
type MemoryType string

const (
	MemoryUnlimited MemoryType = "unlimited"
	MemoryPercent   MemoryType = "percent"
	MemoryFixed     MemoryType = "fixed"
)

// Memory is the memory policy of a profile. Value is used by percent, MB by fixed.
type Memory struct {
	Type  MemoryType `toml:"type"`
	Value uint8      `toml:"value,omitempty"`
	MB    uint64     `toml:"mb,omitempty"`
}

// maxFixedMB is the largest fixed ceiling that still fits in bytes.
const maxFixedMB = math.MaxUint64 / mib

// CPU pins a session to the first Cores cores.
type CPU struct {
	Cores int `toml:"cores"`
}

// Profile is a named bundle of scheduling and memory limits.
type Profile struct {
	Name        string `toml:"name"`
	Description string `toml:"description,omitempty"`
	Nice        int    `toml:"nice"`
	Memory      Memory `toml:"memory"`
	CPU         *CPU   `toml:"cpu,omitempty"`
}

// Backup returns the profile used when nothing else resolves:
// nice 0, unlimited memory, no pinning.
func Backup() Profile {
	return Profile{
		Name:   config.BackupProfileName,
		Nice:   0,
		Memory: Memory{Type: MemoryUnlimited},
	}
}

// Validate checks that the profile is well formed.
func (p *Profile) Validate() error {
	if err := config.ValidateName(p.Name); err != nil {
		return err
	}
	switch p.Memory.Type {
	case MemoryUnlimited:
	case MemoryFixed:
		if p.Memory.MB > maxFixedMB {
			return fmt.Errorf("memory mb must be at most %d (got %d)", uint64(maxFixedMB), p.Memory.MB)
		}
	case MemoryPercent:
		if p.Memory.Value > 100 {
			return fmt.Errorf("memory percent must be at most 100 (got %d)", p.Memory.Value)
		}
	case "":
		return fmt.Errorf("memory.type is required")
	default:
		return fmt.Errorf("invalid memory type %q (must be unlimited, percent, or fixed)", p.Memory.Type)
	}
	if p.Nice < -20 || p.Nice > 19 {
		return fmt.Errorf("nice must be between -20 and 19 (got %d)", p.Nice)
	}
	return nil
}

// MemoryWeight is 0 for unlimited and grows as the ceiling shrinks.
func (p *Profile) MemoryWeight() int64 {
	switch p.Memory.Type {
	case MemoryPercent:
		pct := int64(p.Memory.Value)
		if pct < 1 {
			pct = 1
		}
		return 100000 / pct
	case MemoryFixed:
		if p.Memory.MB > 100000/90 {
			return 0
		}
		return 100000 - int64(p.Memory.MB)*90
	default:
		return 0
	}
}

// CPUWeight is 0 when unpinned.
func (p *Profile) CPUWeight() int64 {
	if p.CPU == nil {
		return 0
	}
	return 1000 - int64(p.CPU.Cores)*100
}

// Score ranks profiles for display. Lower is more generous.
func (p *Profile) Score() int64 {
	return p.MemoryWeight()*10 + p.CPUWeight()*2 + int64(p.Nice)
}

// Rank sorts profiles by score, ties broken by name.
func Rank(profiles map[string]Profile) []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Score(), out[j].Score()
		if si != sj {
			return si < sj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MemoryDisplay renders the memory policy for tables.
func (p *Profile) MemoryDisplay() string {
	switch p.Memory.Type {
	case MemoryPercent:
		return fmt.Sprintf("%d%% RAM", p.Memory.Value)
	case MemoryFixed:
		return fmt.Sprintf("%d MB", p.Memory.MB)
	default:
		return "unlimited"
	}
}

// CPUDisplay renders the core count, or "all" when unpinned.
func (p *Profile) CPUDisplay() string {
	if p.CPU == nil {
		return "all"
	}
	return strconv.Itoa(p.CPU.Cores)
}

// Severity grades how restrictive a limit is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

// MemorySeverity grades the memory policy.
func (p *Profile) MemorySeverity() Severity {
	switch {
	case p.Memory.Type == MemoryUnlimited:
		return SeverityLow
	case p.Memory.Type == MemoryPercent && p.Memory.Value >= 60:
		return SeverityLow
	case p.Memory.Type == MemoryPercent && p.Memory.Value >= 30:
		return SeverityMedium
	case p.Memory.Type == MemoryFixed && p.Memory.MB >= 512:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// CPUSeverity grades the core pinning.
func (p *Profile) CPUSeverity() Severity {
	switch {
	case p.CPU == nil:
		return SeverityLow
	case p.CPU.Cores >= 2:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// NiceSeverity grades the niceness.
func (p *Profile) NiceSeverity() Severity {
	switch {
	case p.Nice >= 0 && p.Nice <= 5:
		return SeverityLow
	case p.Nice >= 6 && p.Nice <= 15:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// ParseMemory parses "unlimited", "percent:N" or "fixed:N".
// A missing or bad number defaults to 100 for percent and 0 for fixed;
// anything else falls back to unlimited with a warning.
func ParseMemory(s string) Memory {
	if strings.EqualFold(s, "unlimited") {
		return Memory{Type: MemoryUnlimited}
	}
	if val, ok := strings.CutPrefix(s, "percent:"); ok {
		n, err := strconv.ParseUint(val, 10, 8)
		if err != nil {
			n = 100
		}
		return Memory{Type: MemoryPercent, Value: uint8(n)}
	}
	if val, ok := strings.CutPrefix(s, "fixed:"); ok {
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			n = 0
		}
		return Memory{Type: MemoryFixed, MB: n}
	}
	logging.Warn("invalid memory value, defaulting to unlimited", "value", s)
	return Memory{Type: MemoryUnlimited}
}
