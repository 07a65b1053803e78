// Package config holds the settings of the multipass-ensure command.
//
// Settings come from built-in defaults, then an optional YAML file, then
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/todoroff/multipass-ensure/internal/models"
	"github.com/todoroff/multipass-ensure/internal/provisioner"
)

const (
	DefaultBinaryPath     = "multipass"
	DefaultCommandTimeout = 120
	DefaultLogFile        = "multipass.log"
	DefaultLogLevel       = "warn"
)

// Config is the resolved adapter configuration.
type Config struct {
	MultipassPath  string   `yaml:"multipass_path"`
	CommandTimeout int      `yaml:"command_timeout"`
	LaunchTimeout  int      `yaml:"launch_timeout"`
	DefaultImage   string   `yaml:"default_image"`
	LogFile        string   `yaml:"log_file"`
	LogLevel       string   `yaml:"log_level"`
	LockFile       string   `yaml:"lock_file"`
	TempDir        string   `yaml:"temp_dir"`
	JitterMin      Duration `yaml:"jitter_min"`
	JitterMax      Duration `yaml:"jitter_max"`
}

// Duration is a time.Duration that reads from YAML as "5s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MultipassPath:  DefaultBinaryPath,
		CommandTimeout: DefaultCommandTimeout,
		LaunchTimeout:  models.DefaultLaunchTimeout,
		DefaultImage:   models.DefaultImage,
		LogFile:        DefaultLogFile,
		LogLevel:       DefaultLogLevel,
		JitterMin:      Duration(time.Second),
		JitterMax:      Duration(10 * time.Second),
	}
}

// LoadFile overlays the YAML file at path onto base. Keys absent from the
// file keep their value from base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.MultipassPath) == "" {
		errs = append(errs, errors.New("multipass_path must not be empty"))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("command_timeout must be positive, got %d", c.CommandTimeout))
	}
	if c.LaunchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("launch_timeout must be positive, got %d", c.LaunchTimeout))
	}
	if err := c.Jitter().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("jitter_min/jitter_max: %w", err))
	}
	return errors.Join(errs...)
}

// Jitter returns the pre-launch delay described by the jitter bounds.
func (c Config) Jitter() *provisioner.Jitter {
	return &provisioner.Jitter{
		Min: time.Duration(c.JitterMin),
		Max: time.Duration(c.JitterMax),
	}
}
