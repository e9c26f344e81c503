package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultHasher  = "sha1"
	DefaultRelease = false
	DefaultForce   = false
	DefaultQuiet   = false
	DefaultVerbose = false
)

// Holds the configuration options for crateimport
type Config struct {
	// Path to the cargo executable. Empty means "look it up on PATH".
	CargoPath string

	// Root directory for per-unit scratch/build directories
	CacheDir string

	// Build release-optimized binaries (toggles cargo's --release flag)
	Release bool

	// Rebuild even when the artifact fingerprint is still valid
	ForceRebuild bool

	// Hash algorithm for fingerprinting: "sha1" or "sha256"
	Hasher string

	// Suppress cargo's console output
	Quiet bool

	// Enable verbose output
	Verbose bool
}

func Load() (*Config, error) {
	cfg := &Config{
		CargoPath:    viper.GetString("cargo_path"),
		CacheDir:     viper.GetString("cache_dir"),
		Release:      viper.GetBool("release"),
		ForceRebuild: viper.GetBool("force"),
		Hasher:       viper.GetString("hasher"),
		Quiet:        viper.GetBool("quiet"),
		Verbose:      viper.GetBool("verbose"),
	}

	// Apply defaults if not set
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "crateimport")
	}

	if cfg.Hasher == "" {
		cfg.Hasher = DefaultHasher
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.CargoPath != "" {
		abs, err := filepath.Abs(c.CargoPath)
		if err != nil {
			return fmt.Errorf("invalid cargo path: %v", err)
		}

		c.CargoPath = abs
	}

	abs, err := filepath.Abs(c.CacheDir)
	if err != nil {
		return fmt.Errorf("invalid cache directory path: %v", err)
	}

	c.CacheDir = abs

	if !isValidHasher(c.Hasher) {
		return fmt.Errorf("invalid hash algorithm: %s (supported: sha1, sha256)", c.Hasher)
	}

	return nil
}

func isValidHasher(name string) bool {
	switch name {
	case "sha1", "sha256":
		return true
	}

	return false
}
