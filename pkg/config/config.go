// Package config loads the participant configuration file.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Participant is the YAML-backed participant configuration.
type Participant struct {
	// DomainID selects the DDS domain. Participants only discover peers
	// in the same domain.
	DomainID uint16 `json:"domainID"`
	// ParticipantID disambiguates participants on one host. Negative
	// means auto-assign.
	ParticipantID int `json:"participantID"`
	// AdminAddr is where the admin HTTP server listens; empty disables
	// it.
	AdminAddr string `json:"adminAddr"`
	// EnablePprof is parsed with the rest of the file. The shapes demo
	// does not read it: its admin server always serves /debug/pprof.
	EnablePprof bool `json:"enablePprof"`
	// LogLevel is a logrus level name.
	LogLevel string `json:"logLevel"`
}

// Default returns the configuration used when no file is given.
func Default() Participant {
	return Participant{
		DomainID:      0,
		ParticipantID: -1,
		AdminAddr:     "",
		LogLevel:      "info",
	}
}

// Load reads and validates a configuration file, starting from the
// defaults.
func Load(path string) (Participant, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Participant) Validate() error {
	if c.ParticipantID > int(^uint16(0)) {
		return fmt.Errorf("participantID %d out of range", c.ParticipantID)
	}
	return nil
}
