// Package config loads the storage library's YAML-driven configuration,
// grounded on the teacher's functional-options ecosystem
// (pkg/core/plugin/options.go) but declarative rather than per-call: the
// façade's InitLibrary reads one Config at startup rather than accepting
// variadic options per operation.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds library-wide settings for InitLibrary.
type Config struct {
	// DefaultBackend names the backend InitLibrary activates when a
	// caller doesn't name one explicitly.
	DefaultBackend string `yaml:"default_backend"`

	// ScopeStackCapacity pre-sizes the recording-scope stack.
	ScopeStackCapacity int `yaml:"scope_stack_capacity"`
}

// Default returns the configuration InitLibrary uses when none is given.
func Default() Config {
	return Config{
		DefaultBackend:     "cpu_f32",
		ScopeStackCapacity: 8,
	}
}

// LoadConfig reads and unmarshals a YAML config file, filling any field
// left zero with Default()'s value.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config file %q", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config file %q", path)
	}
	if cfg.DefaultBackend == "" {
		cfg.DefaultBackend = "cpu_f32"
	}
	if cfg.ScopeStackCapacity <= 0 {
		cfg.ScopeStackCapacity = 8
	}
	return cfg, nil
}
