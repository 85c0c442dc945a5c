// Package config loads the engine profile: the reputation and clustering
// parameters the server falls back to when a request carries no config.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sybilwatch/trustgraph/internal/clustering"
	"github.com/sybilwatch/trustgraph/internal/reputation"
)

// Profile is the on-disk engine configuration.
type Profile struct {
	Reputation reputation.Config `yaml:"reputation"`
	Clustering clustering.Config `yaml:"clustering"`

	// AuditTopK caps how many edge impacts an audit returns when the
	// request leaves it unset.
	AuditTopK int `yaml:"auditTopK"`
}

// DefaultProfile returns the production defaults.
func DefaultProfile() Profile {
	return Profile{
		Reputation: reputation.DefaultConfig(),
		Clustering: clustering.DefaultConfig(),
		AuditTopK:  20,
	}
}

// Validate checks both engine configs.
func (p Profile) Validate() error {
	if err := p.Reputation.Validate(); err != nil {
		return fmt.Errorf("reputation profile: %w", err)
	}
	if err := p.Clustering.Validate(); err != nil {
		return fmt.Errorf("clustering profile: %w", err)
	}
	if p.AuditTopK <= 0 {
		return fmt.Errorf("engine profile: auditTopK must be positive")
	}
	return nil
}

// ReadOrCreate loads the profile at path, writing the defaults there
// first if the file does not exist. An empty path returns the defaults
// without touching disk.
func ReadOrCreate(path string) (Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		profile := DefaultProfile()
		if err := write(path, profile); err != nil {
			return Profile{}, err
		}
		slog.Info("wrote default engine profile", "path", path)
		return profile, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read engine profile: %w", err)
	}

	// Unset fields keep their defaults rather than zeroing out.
	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to parse engine profile: %w", err)
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func write(path string, profile Profile) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create profile directory: %w", err)
		}
	}
	data, err := yaml.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal engine profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write engine profile: %w", err)
	}
	return nil
}
