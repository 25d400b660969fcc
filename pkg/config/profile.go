package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"favthanker/pkg/models"
)

// Profile is the operator's message pool and groups.
// JSON is valid YAML, so one decoder reads both formats.
type Profile struct {
	Username string         `json:"username" yaml:"username"`
	Messages []string       `json:"messages" yaml:"messages" validate:"required,min=1,dive,required"`
	Groups   []models.Group `json:"groups" yaml:"groups" validate:"dive"`
}

// ProfilePath returns the configured profile file, falling back to
// <username>.json next to the working directory
func (c *Config) ProfilePath() string {
	if c.Account.ProfilePath != "" {
		return c.Account.ProfilePath
	}
	if c.Account.Username == "" {
		return ""
	}
	return strings.ToLower(c.Account.Username) + ".json"
}

// LoadProfile reads and validates a profile file
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", filepath.Base(path), err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

// Validate checks the default pool is non-empty and every group is usable
func (p *Profile) Validate() error {
	var errs []error
	if err := validate.Struct(p); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool, len(p.Groups))
	for _, g := range p.Groups {
		key := strings.ToLower(g.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate group %q", g.Name))
		}
		seen[key] = true
	}
	return errors.Join(errs...)
}

// SaveProfile writes the profile as JSON when path ends in .json, YAML otherwise
func SaveProfile(path string, p *Profile) error {
	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(p, "", "  ")
	} else {
		data, err = yaml.Marshal(p)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
