// Package config handles ae3gis-labd daemon configuration.
//
// Config is stored at $XDG_CONFIG_HOME/ae3gis-labd/config.yaml (defaults to
// ~/.config/ae3gis-labd/config.yaml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds daemon-wide settings read once at startup.
type Config struct {
	// Workdir is where compiled descriptors and seeder sentinels live.
	Workdir string `yaml:"workdir"`

	// LabEngineBinary is the containerlab-compatible binary name or path.
	LabEngineBinary string `yaml:"lab_engine_binary"`
	// ContainerEngineBinary is the docker-compatible binary name or path.
	ContainerEngineBinary string `yaml:"container_engine_binary"`
	// PrivilegeWrapper is prepended to every external invocation, e.g. ["sudo"].
	PrivilegeWrapper []string `yaml:"privilege_wrapper,omitempty"`

	// InstructorToken grants full access to the classroom layer.
	InstructorToken string `yaml:"instructor_token"`

	// LogLevel is one of debug|info|warn|error.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns a Config with the same defaults the original system used.
func Default() Config {
	return Config{
		Workdir:               filepath.Join(os.TempDir(), "ae3gis-labd", "workdir"),
		LabEngineBinary:       "containerlab",
		ContainerEngineBinary: "docker",
		InstructorToken:       "test",
		LogLevel:              "info",
	}
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/ae3gis-labd/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "ae3gis-labd", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ae3gis-labd", "config.yaml")
}

// Load reads the config file. If the file does not exist, Default() is
// returned (not an error).
func Load() (Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
