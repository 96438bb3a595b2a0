// Package config loads moduletree settings from defaults, an optional
// .moduletree.yaml file and MODULETREE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/moduletree/internal/discover"
	"github.com/phobologic/moduletree/internal/extract"
)

// FileName is the config file looked up in the working directory.
const FileName = ".moduletree.yaml"

// Output formats understood by the CLI.
const (
	FormatTOON = "toon"
	FormatYAML = "yaml"
	FormatText = "text"
)

var (
	ErrInvalidBoundary = errors.New("invalid boundary policy")
	ErrInvalidWorkers  = errors.New("invalid worker count")
	ErrInvalidSize     = errors.New("invalid max file size")
	ErrInvalidFormat   = errors.New("invalid output format")
)

// Config holds every tunable of a moduletree run.
type Config struct {
	Boundary    string   `yaml:"boundary" mapstructure:"boundary"`           // file, directory, package or project
	Exclude     []string `yaml:"exclude" mapstructure:"exclude"`             // glob patterns relative to the boundary root
	SkipTests   bool     `yaml:"skip_tests" mapstructure:"skip_tests"`       // drop test modules other than the anchor
	MaxFileSize int64    `yaml:"max_file_size" mapstructure:"max_file_size"` // bytes
	Workers     int      `yaml:"workers" mapstructure:"workers"`             // 0 means GOMAXPROCS
	Format      string   `yaml:"format" mapstructure:"format"`               // toon, yaml or text
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Boundary:    string(discover.DefaultPolicy),
		Exclude:     []string{},
		MaxFileSize: extract.DefaultMaxFileSize,
		Workers:     0,
		Format:      FormatTOON,
	}
}

// Policy returns the parsed boundary policy. Call after Validate.
func (c *Config) Policy() discover.Policy {
	p, _ := discover.ParsePolicy(c.Boundary)
	return p
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables (MODULETREE_*)
// 2. Config file (file if non-empty, else dir/.moduletree.yaml)
// 3. Default values
func Load(dir, file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("MODULETREE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{"boundary", "exclude", "skip_tests", "max_file_size", "workers", "format"} {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("boundary", d.Boundary)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("skip_tests", d.SkipTests)
	v.SetDefault("max_file_size", d.MaxFileSize)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("format", d.Format)
}

// Validate checks every field and joins all problems into one error.
func Validate(cfg *Config) error {
	var errs []error
	if _, err := discover.ParsePolicy(cfg.Boundary); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidBoundary, err))
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Workers))
	}
	if cfg.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidSize, cfg.MaxFileSize))
	}
	switch cfg.Format {
	case FormatTOON, FormatYAML, FormatText:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.Format))
	}
	return errors.Join(errs...)
}

// Write stores cfg as YAML at path.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
