package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration specifically for build operations
func (l *Loader) LoadForBuild(cmd *cobra.Command, args []string) (*Config, error) {
	l.setupViperDefaults()
	l.bindEnvironment()
	l.loadGlobalConfig()
	l.loadLocalConfig(args)
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("cargo_path", "")
	viper.SetDefault("cache_dir", "")
	viper.SetDefault("hasher", DefaultHasher)
	viper.SetDefault("release", DefaultRelease)
	viper.SetDefault("force", DefaultForce)
	viper.SetDefault("quiet", DefaultQuiet)
	viper.SetDefault("verbose", DefaultVerbose)
}

// bindEnvironment binds CRATEIMPORT_* environment variables
func (l *Loader) bindEnvironment() {
	viper.SetEnvPrefix("crateimport")
	_ = viper.BindEnv("cargo_path", "CRATEIMPORT_CARGO_EXECUTABLE")
	_ = viper.BindEnv("cache_dir", "CRATEIMPORT_CACHE_DIR")
	_ = viper.BindEnv("release", "CRATEIMPORT_RELEASE_BINARIES")
	_ = viper.BindEnv("force", "CRATEIMPORT_FORCE_REBUILD")
	_ = viper.BindEnv("hasher", "CRATEIMPORT_HASHER")
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	base, err := os.UserConfigDir()
	if err != nil {
		return
	}

	globalDir := filepath.Join(base, "crateimport")

	for _, ext := range []string{"yml", "yaml", "json", "toml"} {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig loads local configuration from the build target's directory
func (l *Loader) loadLocalConfig(args []string) {
	if len(args) > 0 {
		absFirst, err := filepath.Abs(args[0])
		if err != nil {
			return // silently ignore, config.Load() will handle validation
		}

		dir := absFirst
		if info, err := os.Stat(absFirst); err != nil || !info.IsDir() {
			dir = filepath.Dir(absFirst)
		}

		localPath := FindLocalConfig(dir)
		if localPath != "" {
			viper.SetConfigFile(localPath)
			_ = viper.ReadInConfig()
		}
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("release", cmd.Flags().Lookup("release"))
	_ = viper.BindPFlag("force", cmd.Flags().Lookup("force"))
	_ = viper.BindPFlag("quiet", cmd.Flags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
	_ = viper.BindPFlag("cache_dir", cmd.Flags().Lookup("cache-dir"))
}
