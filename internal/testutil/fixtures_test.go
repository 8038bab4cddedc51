package testutil

import (
	"testing"
)

func TestLoadBalancedProfile(t *testing.T) {
	p, err := BalancedProfile()
	if err != nil {
		t.Fatalf("BalancedProfile() error: %v", err)
	}

	if p.Name != "balanced" {
		t.Errorf("Name = %q, want %q", p.Name, "balanced")
	}
	if p.CPU == nil || p.CPU.Cores != 2 {
		t.Errorf("CPU = %+v, want 2 cores", p.CPU)
	}
	if got := p.MemoryDisplay(); got != "50% RAM" {
		t.Errorf("MemoryDisplay() = %q, want %q", got, "50% RAM")
	}

	if err := p.Validate(); err != nil {
		t.Errorf("Valid profile should pass validation: %v", err)
	}
}

func TestLoadInvalidProfile(t *testing.T) {
	p, err := InvalidProfile()
	if err != nil {
		t.Fatalf("InvalidProfile() error: %v", err)
	}

	if err := p.Validate(); err == nil {
		t.Error("Invalid profile should fail validation")
	}
}

func TestValidProfiles(t *testing.T) {
	profiles, err := ValidProfiles()
	if err != nil {
		t.Fatalf("ValidProfiles() error: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("ValidProfiles() returned %d, want 2", len(profiles))
	}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			t.Errorf("%s: %v", p.Name, err)
		}
	}
}

func TestLoadFixture_NotFound(t *testing.T) {
	_, err := LoadFixture("nonexistent.toml")
	if err == nil {
		t.Error("LoadFixture should error for nonexistent file")
	}
}
