package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type LoggingCfg struct {
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
	Development bool   `mapstructure:"development"`
}

type OutputCfg struct {
	Format  string `mapstructure:"format"`
	RunLog  string `mapstructure:"run_log"`
	Summary bool   `mapstructure:"summary"`
}

type FollowCfg struct {
	Poll bool `mapstructure:"poll"`
}

type ServerCfg struct {
	Connection string `mapstructure:"connection"`
	Timeout    string `mapstructure:"timeout"`
}

type Config struct {
	Version string     `mapstructure:"version"`
	Output  OutputCfg  `mapstructure:"output"`
	Follow  FollowCfg  `mapstructure:"follow"`
	Server  ServerCfg  `mapstructure:"server"`
	Logging LoggingCfg `mapstructure:"logging"`
}

var cfg *Config

// Load populates global config from a viper instance
func Load(v *viper.Viper) error {
	// set defaults
	v.SetDefault("version", "0.1")
	v.SetDefault("output.format", "GRID")
	v.SetDefault("server.timeout", "10s")
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	cfg = &c
	return nil
}

func Get() *Config {
	if cfg == nil {
		cfg = &Config{}
	}
	return cfg
}
