package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Merge.
const (
	EnvServer = "PAIRMESH_SERVER"
	EnvOutput = "PAIRMESH_OUTPUT"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".pairmesh", "cli.yaml")
}

// Load loads CLI configuration from file. A missing file yields Default().
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cli config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse cli config %s: %w", path, err)
	}
	if cfg.DefaultServer == "" {
		cfg.DefaultServer = Default().DefaultServer
	}
	if cfg.DefaultOutput == "" {
		cfg.DefaultOutput = Default().DefaultOutput
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions. The file is replaced
// atomically.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode cli config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cli-*.yaml")
	if err != nil {
		return fmt.Errorf("write cli config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("write cli config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cli config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cli config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write cli config: %w", err)
	}
	return nil
}

// Merge returns a copy of cfg with environment variables applied over the
// file values and explicitly set flags ("server", "output") over both.
func Merge(cfg *CLIConfig, env map[string]string, flags map[string]string) *CLIConfig {
	merged := *cfg
	if v := env[EnvServer]; v != "" {
		merged.DefaultServer = v
	}
	if v := env[EnvOutput]; v != "" {
		merged.DefaultOutput = v
	}
	if v := flags["server"]; v != "" {
		merged.DefaultServer = v
	}
	if v := flags["output"]; v != "" {
		merged.DefaultOutput = v
	}
	return &merged
}

// Environ collects the variables Merge reads from the process environment.
func Environ() map[string]string {
	env := make(map[string]string, 2)
	for _, key := range []string{EnvServer, EnvOutput} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env
}
