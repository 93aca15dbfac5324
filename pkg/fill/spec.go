// Package fill implements the histogram-filling core: histogram
// specifications, the expression cardinality synchronizer, the per-worker
// fill session and the multi-worker runner.
package fill

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/athuldev13/Loki/pkg/histogram"
)

// Spec is the immutable description of one output histogram. Name doubles
// as the dedup key and the persisted artifact name and must be unique
// across a session.
type Spec struct {
	Name      string           `json:"name"`
	Axes      []histogram.Axis `json:"axes"`
	Selection string           `json:"selection,omitempty"`
	Weight    string           `json:"weight,omitempty"`
}

// Validate checks one spec in isolation: nonempty name, 1 to 3 axes, each
// axis with strictly increasing edges.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("histogram name cannot be empty")
	}
	if len(s.Axes) < 1 || len(s.Axes) > 3 {
		return fmt.Errorf("histogram %q: 1 to 3 axes required, got %d", s.Name, len(s.Axes))
	}
	for _, ax := range s.Axes {
		if err := ax.Validate(); err != nil {
			return fmt.Errorf("histogram %q: %w", s.Name, err)
		}
	}
	return nil
}

// Config is the set of histogram specs for one processing session.
type Config struct {
	Histograms []Spec `json:"histograms"`
}

// Validate checks every spec and rejects duplicate identities. Called once
// at setup, before any row is processed.
func (c *Config) Validate() error {
	if len(c.Histograms) == 0 {
		return fmt.Errorf("no histograms configured")
	}
	seen := make(map[string]bool, len(c.Histograms))
	for i := range c.Histograms {
		s := &c.Histograms[i]
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate histogram name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// LoadConfig reads and validates a JSON histogram configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
