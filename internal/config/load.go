package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load. They keep credentials out of config
// files.
const (
	EnvS3AccessKey = "ORBIT_VIEWER_S3_ACCESS_KEY"
	EnvS3SecretKey = "ORBIT_VIEWER_S3_SECRET_KEY"
	EnvAssetsBase  = "ORBIT_VIEWER_ASSETS"
)

// Load loads configuration with priority: defaults < file < environment < flags.
func Load() (*Config, error) {
	cfg := Default()

	// Explicit path takes priority over discovered files
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyEnv(cfg, os.LookupEnv)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./viewer.yaml",
		filepath.Join(ConfigDir(), "viewer.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "OrbitViewer")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "OrbitViewer")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "orbit-viewer")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "orbit-viewer")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides values from the environment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvS3AccessKey); ok {
		cfg.Assets.S3.AccessKey = v
	}
	if v, ok := lookup(EnvS3SecretKey); ok {
		cfg.Assets.S3.SecretKey = v
	}
	if v, ok := lookup(EnvAssetsBase); ok && v != "" {
		cfg.Assets.Base = v
	}
}
