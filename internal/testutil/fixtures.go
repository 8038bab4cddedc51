package testutil

import (
	"embed"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/firefly-engineering/onyx/internal/profile"
)

//go:embed fixtures/*.toml
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// LoadProfileFixture decodes a profile record fixture without validating it.
func LoadProfileFixture(name string) (*profile.Profile, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	var p profile.Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ValidProfiles returns every valid profile fixture.
func ValidProfiles() ([]profile.Profile, error) {
	entries, err := fs.ReadDir(fixturesFS, "fixtures")
	if err != nil {
		return nil, err
	}
	var out []profile.Profile
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "invalid_") {
			continue
		}
		p, err := LoadProfileFixture(e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// BalancedProfile returns the percent-memory profile fixture.
func BalancedProfile() (*profile.Profile, error) {
	return LoadProfileFixture("balanced.toml")
}

// InvalidProfile returns a profile fixture that fails validation.
func InvalidProfile() (*profile.Profile, error) {
	return LoadProfileFixture("invalid_memory.toml")
}
