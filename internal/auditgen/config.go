package auditgen

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Schema selects the audit log record layout to generate.
type Schema string

const (
	SchemaLegacy Schema = "legacy" // attributes on a single AUDIT_RECORD element
	SchemaNew    Schema = "new"    // child elements, one per line
)

// Config describes the synthetic audit log to generate.
type Config struct {
	Schema   Schema `yaml:"schema"`
	Output   string `yaml:"output"`
	Seed     uint64 `yaml:"seed"`
	Sessions int    `yaml:"sessions"`
	DbUsers  int    `yaml:"dbUsers"`
	ServerID int    `yaml:"serverId"`
	Start    string `yaml:"start"` // first TIMESTAMP, yyyy-mm-ddThh:mm:ss

	QueriesPerSession struct {
		Min int `yaml:"min"`
		Max int `yaml:"max"`
	} `yaml:"queriesPerSession"`

	// Mix weights the statement types issued by each session.
	Mix struct {
		Select float64 `yaml:"select"`
		Update float64 `yaml:"update"`
		Insert float64 `yaml:"insert"`
		Delete float64 `yaml:"delete"`
		Set    float64 `yaml:"set"`
		Commit float64 `yaml:"commit"`
	} `yaml:"mix"`

	// FailureRate is the share of queries and connects given an error STATUS.
	FailureRate float64 `yaml:"failureRate"`
}

// ReadConfig parses a YAML generator config and applies defaults.
func ReadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse generator config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	switch cfg.Schema {
	case "":
		cfg.Schema = SchemaNew
	case SchemaLegacy, SchemaNew:
	default:
		return fmt.Errorf("unknown schema %q (want %q or %q)", cfg.Schema, SchemaLegacy, SchemaNew)
	}
	if cfg.Sessions <= 0 {
		cfg.Sessions = 10
	}
	if cfg.DbUsers <= 0 {
		cfg.DbUsers = 3
	}
	if cfg.ServerID == 0 {
		cfg.ServerID = 1
	}
	if cfg.Start == "" {
		cfg.Start = "2014-01-01T00:00:00"
	}
	if _, err := time.Parse(timestampLayout, cfg.Start); err != nil {
		return fmt.Errorf("invalid start %q: %w", cfg.Start, err)
	}
	if cfg.QueriesPerSession.Min <= 0 {
		cfg.QueriesPerSession.Min = 1
	}
	if cfg.QueriesPerSession.Max < cfg.QueriesPerSession.Min {
		cfg.QueriesPerSession.Max = cfg.QueriesPerSession.Min + 4
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return fmt.Errorf("failureRate %v outside [0, 1]", cfg.FailureRate)
	}
	normalizeMix(cfg)
	return nil
}

// normalizeMix scales the statement weights to sum to 1.0.
func normalizeMix(cfg *Config) {
	m := &cfg.Mix
	tot := m.Select + m.Update + m.Insert + m.Delete + m.Set + m.Commit
	if tot <= 0 {
		m.Select, m.Update, m.Insert, m.Delete, m.Set, m.Commit = 0.5, 0.2, 0.1, 0.05, 0.05, 0.1
		tot = 1
	}
	m.Select /= tot
	m.Update /= tot
	m.Insert /= tot
	m.Delete /= tot
	m.Set /= tot
	m.Commit /= tot
}
