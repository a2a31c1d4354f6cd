package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schaermu/filedeploy/internal/report"
)

// Config represents the optional filedeploy settings file
type Config struct {
	// Manifest overrides the manifest name derived from host and user.
	Manifest string `yaml:"manifest"`
	// CheckHost requires the manifest's first line to name the local host.
	CheckHost bool             `yaml:"check_host"`
	Color     report.ColorMode `yaml:"color"`
	Verbose   bool             `yaml:"verbose"`
}

// Env holds the facts about the running environment that manifest
// resolution depends on. It is resolved once at startup.
type Env struct {
	User string
	Host string
	Home string
	Dir  string // directory in which relative manifest names are resolved
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables in string fields
	cfg.expandEnv()

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadOptional behaves like Load but returns a default configuration when
// the file does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns the configuration used when no settings file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath returns $XDG_CONFIG_HOME/filedeploy/config.yaml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath(home string) string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "filedeploy", "config.yaml")
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Manifest = os.ExpandEnv(c.Manifest)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Color == "" {
		c.Color = report.ColorAuto
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if !c.Color.Valid() {
		return fmt.Errorf("invalid color mode: %s (must be auto, always, or never)", c.Color)
	}
	return nil
}

// ResolveEnv looks up the current user, host name, home and working
// directory.
func ResolveEnv() (Env, error) {
	var env Env

	u, err := user.Current()
	if err == nil {
		env.User = u.Username
		env.Home = u.HomeDir
	}
	if env.User == "" {
		env.User = os.Getenv("USER")
	}
	if env.User == "" {
		return env, fmt.Errorf("failed to determine current user: %w", err)
	}
	if env.Home == "" {
		if env.Home, err = os.UserHomeDir(); err != nil {
			return env, fmt.Errorf("failed to get user home directory: %w", err)
		}
	}

	host, err := os.Hostname()
	if err != nil {
		return env, fmt.Errorf("failed to get host name: %w", err)
	}
	env.Host = host

	if env.Dir, err = os.Getwd(); err != nil {
		return env, fmt.Errorf("failed to get working directory: %w", err)
	}

	return env, nil
}

// ShortHost returns the host name up to its first dot.
func (e Env) ShortHost() string {
	host, _, _ := strings.Cut(e.Host, ".")
	return host
}

// ManifestCandidates lists the manifest names tried in order when none is
// configured: filelist.<host>.<user>, then filelist.<user>.
func (e Env) ManifestCandidates() []string {
	return []string{
		filepath.Join(e.Dir, fmt.Sprintf("filelist.%s.%s", e.ShortHost(), e.User)),
		filepath.Join(e.Dir, "filelist."+e.User),
	}
}

// ManifestPath picks the manifest to use. An explicit path (flag or config)
// wins; otherwise the first existing candidate is used. When no candidate
// exists the first one is returned so the caller reports it as missing.
func ManifestPath(explicit string, env Env) string {
	if explicit != "" {
		if !filepath.IsAbs(explicit) {
			explicit = filepath.Join(env.Dir, explicit)
		}
		return explicit
	}

	candidates := env.ManifestCandidates()
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[0]
}
