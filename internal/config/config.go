// Package config provides configuration management for palladin using
// Viper for flexible configuration loading from files, environment
// variables, and command-line flags.
//
// The configuration system supports YAML files (.palladin.yml),
// environment variable overrides with the PALLADIN_ prefix, and
// validation. It manages server settings, watch behavior, and the
// transform engine invocation.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server Server `yaml:"server" mapstructure:"server"`
	Build  Build  `yaml:"build" mapstructure:"build"`
	Watch  Watch  `yaml:"watch" mapstructure:"watch"`
	Log    Log    `yaml:"log" mapstructure:"log"`
}

type Server struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	Open bool   `yaml:"open" mapstructure:"open"`
}

type Build struct {
	// Root is the project directory files are served from.
	Root string `yaml:"root" mapstructure:"root"`
	// Dir is the bundler output directory, relative to Root.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// Entrypoint is the module the bundler starts from, relative to Root.
	Entrypoint string `yaml:"entrypoint" mapstructure:"entrypoint"`
	// Command is the bundler invocation; the entrypoint is appended as
	// its final argument.
	Command string `yaml:"command" mapstructure:"command"`
}

type Watch struct {
	// QuietPeriod is the idle time after the last change before a batch
	// is released.
	QuietPeriod time.Duration `yaml:"quiet_period" mapstructure:"quiet_period"`
	// MaxDelay force-flushes a batch that keeps accumulating changes.
	MaxDelay time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	// Extensions extends the default allow-list of watched extensions.
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
	// IgnorePaths lists directories whose events are discarded, relative
	// to Root. The build dir is always ignored.
	IgnorePaths []string `yaml:"ignore_paths" mapstructure:"ignore_paths"`
}

type Log struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Dir    string `yaml:"dir" mapstructure:"dir"` // when set, also log to a rotating file here
}

// Address returns the host:port pair the server binds to.
func (s Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Server.Host == "" {
		config.Server.Host = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}

	if config.Build.Root == "" {
		config.Build.Root = "."
	}
	if config.Build.Dir == "" {
		config.Build.Dir = "dist"
	}
	if config.Build.Entrypoint == "" {
		config.Build.Entrypoint = "src/index.tsx"
	}

	if config.Watch.QuietPeriod <= 0 {
		config.Watch.QuietPeriod = 100 * time.Millisecond
	}
	if config.Watch.MaxDelay <= 0 {
		config.Watch.MaxDelay = 2 * time.Second
	}

	// Workaround for viper slice handling when values come from env or
	// flags rather than the unmarshal path.
	if viper.IsSet("watch.ignore_paths") && len(config.Watch.IgnorePaths) == 0 {
		config.Watch.IgnorePaths = viper.GetStringSlice("watch.ignore_paths")
	}
	if viper.IsSet("watch.extensions") && len(config.Watch.Extensions) == 0 {
		config.Watch.Extensions = viper.GetStringSlice("watch.extensions")
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServer(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateBuild(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}
	return nil
}

func validateServer(config *Server) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

func validateBuild(config *Build) error {
	if config.Dir != "" {
		cleanPath := filepath.Clean(config.Dir)

		if strings.Contains(cleanPath, "..") {
			return fmt.Errorf("build dir contains path traversal: %s", config.Dir)
		}

		if filepath.IsAbs(cleanPath) {
			return fmt.Errorf("build dir should be relative to root: %s", config.Dir)
		}
	}

	if strings.Contains(filepath.Clean(config.Entrypoint), "..") {
		return fmt.Errorf("entrypoint contains path traversal: %s", config.Entrypoint)
	}

	return nil
}
