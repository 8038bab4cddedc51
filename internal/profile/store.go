package profile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/firefly-engineering/onyx/internal/config"
	"github.com/firefly-engineering/onyx/internal/errors"
	"github.com/firefly-engineering/onyx/internal/logging"
)

// Load reads every *.toml profile in dir, keyed by profile name.
// A missing directory yields an empty map.
func Load(dir string) (map[string]Profile, error) {
	profiles := make(map[string]Profile)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, errors.ConfigError("failed to read profiles directory", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		var p Profile
		if _, err := toml.DecodeFile(path, &p); err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("failed to parse profile %s", entry.Name()), err)
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(entry.Name(), ".toml")
		}
		if err := p.Validate(); err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("invalid profile %s", entry.Name()), err)
		}
		profiles[p.Name] = p
	}

	return profiles, nil
}

// ReadCurrent returns the trimmed content of the current-profile pointer.
// A missing or empty file yields "".
func ReadCurrent(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Debug("failed to read current profile pointer", "path", path, "error", err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Source says which resolution step produced a profile.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceCurrent  Source = "current"
	SourceBackup   Source = "backup"
)

// Resolved is the outcome of Resolve.
type Resolved struct {
	Profile Profile
	Source  Source
	// Missing is set when a requested name was not found and backup was used instead.
	Missing string
}

// Resolve picks the effective profile: an explicit name first, then the
// current pointer, then backup. Unknown names fall back to backup.
func Resolve(explicit, current string, profiles map[string]Profile) Resolved {
	name, source := explicit, SourceExplicit
	if name == "" {
		name, source = current, SourceCurrent
	}
	if name == "" {
		return Resolved{Profile: Backup(), Source: SourceBackup}
	}
	if p, ok := profiles[name]; ok {
		return Resolved{Profile: p, Source: source}
	}
	if name == config.BackupProfileName {
		return Resolved{Profile: Backup(), Source: source}
	}

	logging.Warn("profile not found, using backup", "profile", name, "source", source)
	return Resolved{Profile: Backup(), Source: SourceBackup, Missing: name}
}

// Save writes p to <dir>/<name>.toml, replacing any existing record.
func Save(dir string, p Profile) error {
	if err := p.Validate(); err != nil {
		return errors.ValidationError(err.Error())
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.ConfigError("failed to create profiles directory", err)
	}
	path, err := securejoin.SecureJoin(dir, p.Name+".toml")
	if err != nil {
		return errors.ConfigError("invalid profile path", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(p); err != nil {
		return errors.ConfigError("failed to encode profile", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to write profile %s", p.Name), err)
	}
	return nil
}

// Delete removes the record for name.
func Delete(dir, name string) error {
	if err := config.ValidateName(name); err != nil {
		return errors.ValidationError(err.Error())
	}
	path, err := securejoin.SecureJoin(dir, name+".toml")
	if err != nil {
		return errors.ConfigError("invalid profile path", err)
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.ConfigError(fmt.Sprintf("profile %q does not exist", name), nil)
		}
		return errors.ConfigError(fmt.Sprintf("failed to delete profile %s", name), err)
	}
	return nil
}

// SetCurrent points the current-profile file at name, which must exist.
func SetCurrent(pointer, dir, name string) error {
	profiles, err := Load(dir)
	if err != nil {
		return err
	}
	if _, ok := profiles[name]; !ok && name != config.BackupProfileName {
		return errors.ConfigError(fmt.Sprintf("profile %q does not exist", name), nil)
	}
	if err := os.WriteFile(pointer, []byte(name), 0644); err != nil {
		return errors.ConfigError("failed to set current profile", err)
	}
	return nil
}
