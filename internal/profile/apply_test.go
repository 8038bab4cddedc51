package profile

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/firefly-engineering/onyx/internal/diag"
)

type failingMemory struct{}

func (failingMemory) TotalPhysicalMemoryMB() (uint64, error) {
	return 0, errors.New("no meminfo")
}

func TestLimits_Backup(t *testing.T) {
	limits, warnings := Limits(Backup(), diag.Fixed(8192))
	if len(warnings) != 0 {
		t.Errorf("Limits(backup) warnings = %v", warnings)
	}
	if limits.Nice == nil || *limits.Nice != 0 {
		t.Errorf("nice = %v, want 0", limits.Nice)
	}
	if limits.Cores != 0 {
		t.Errorf("cores = %d, want unpinned", limits.Cores)
	}
	if limits.MemoryBytes != 0 {
		t.Errorf("memory = %d, want none", limits.MemoryBytes)
	}
}

func TestLimits(t *testing.T) {
	tests := []struct {
		name      string
		p         Profile
		wantCores int
		wantBytes uint64
	}{
		{
			name:      "percent",
			p:         Profile{Name: "half", Nice: 3, Memory: Memory{Type: MemoryPercent, Value: 50}, CPU: &CPU{Cores: 2}},
			wantCores: 2,
			wantBytes: 4096 * mib,
		},
		{
			name:      "fixed",
			p:         Profile{Name: "small", Memory: Memory{Type: MemoryFixed, MB: 256}},
			wantBytes: 256 * mib,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits, warnings := Limits(tt.p, diag.Fixed(8192))
			if len(warnings) != 0 {
				t.Fatalf("Limits() warnings = %v", warnings)
			}
			if limits.Cores != tt.wantCores {
				t.Errorf("cores = %d, want %d", limits.Cores, tt.wantCores)
			}
			if limits.MemoryBytes != tt.wantBytes {
				t.Errorf("memory = %d, want %d", limits.MemoryBytes, tt.wantBytes)
			}
			if limits.Nice == nil || *limits.Nice != tt.p.Nice {
				t.Errorf("nice = %v, want %d", limits.Nice, tt.p.Nice)
			}
		})
	}
}

func TestLimits_UnresolvableAreWarnings(t *testing.T) {
	p := Profile{Name: "strict", Nice: -5, Memory: Memory{Type: MemoryPercent, Value: 20}, CPU: &CPU{Cores: -1}}
	limits, warnings := Limits(p, failingMemory{})

	var names []string
	for _, w := range warnings {
		names = append(names, w.Limit)
	}
	if diff := cmp.Diff([]string{"cpu", "memory"}, names); diff != "" {
		t.Errorf("warned limits mismatch (-want +got):\n%s", diff)
	}
	if limits.Cores != 0 || limits.MemoryBytes != 0 {
		t.Errorf("limits = %+v, want cpu and memory left out", limits)
	}
	if limits.Nice == nil || *limits.Nice != -5 {
		t.Errorf("nice = %v, want -5", limits.Nice)
	}
}

func TestLimits_ZeroCeilingSkipped(t *testing.T) {
	limits, warnings := Limits(Profile{Name: "zero", Memory: Memory{Type: MemoryFixed, MB: 0}}, diag.Fixed(1024))

	if len(warnings) != 1 || warnings[0].Limit != "memory" {
		t.Fatalf("warnings = %v, want one memory warning", warnings)
	}
	if limits.MemoryBytes != 0 {
		t.Errorf("memory = %d, want unset", limits.MemoryBytes)
	}
}

func TestLimits_InvalidCores(t *testing.T) {
	_, warnings := Limits(Profile{Name: "c", Memory: Memory{Type: MemoryUnlimited}, CPU: &CPU{Cores: 0}}, diag.Fixed(1024))

	if len(warnings) != 1 || warnings[0].Limit != "cpu" {
		t.Errorf("warnings = %v, want one cpu warning", warnings)
	}
}

func TestMemoryCeiling_Overflow(t *testing.T) {
	p := Profile{Name: "huge", Memory: Memory{Type: MemoryFixed, MB: maxFixedMB + 1}}
	if got, err := MemoryCeiling(p, diag.Fixed(1024)); err == nil {
		t.Errorf("MemoryCeiling() = %d, want an error", got)
	}
}

func TestLimitWarning_String(t *testing.T) {
	w := LimitWarning{Limit: "nice", Err: errors.New("EACCES")}
	if got, want := w.String(), "nice limit not applied: EACCES"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
