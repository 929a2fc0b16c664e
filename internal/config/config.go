// Package config loads the txguard application configuration: file
// locations and timing knobs. The security policy itself lives in its
// own JSON file (see internal/policy); this is everything around it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application-level settings.
type Config struct {
	PolicyPath   string        `yaml:"policy_path"`
	KeystorePath string        `yaml:"keystore_path"`
	AuditLogPath string        `yaml:"audit_log_path"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

// Default returns the built-in configuration rooted under ~/.txguard.
func Default() *Config {
	base := baseDir()
	return &Config{
		PolicyPath:   filepath.Join(base, "policy.json"),
		KeystorePath: filepath.Join(base, "keystore.db"),
		AuditLogPath: filepath.Join(base, "decisions.jsonl"),
		ProbeTimeout: 2 * time.Second,
		SessionTTL:   3 * time.Minute,
	}
}

// Load reads configuration from a YAML file. Empty path falls back to
// ~/.txguard/config.yaml. Missing file returns defaults. Invalid YAML
// returns an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(baseDir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.ProbeTimeout <= 0 {
		return nil, fmt.Errorf("config %s: probe_timeout must be positive", path)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("config %s: session_ttl must be positive", path)
	}

	return cfg, nil
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "txguard")
	}
	return filepath.Join(home, ".txguard")
}
