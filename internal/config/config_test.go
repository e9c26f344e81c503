package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.CargoPath, "empty cargo path means PATH lookup")
	assert.Equal(t, filepath.Join(os.TempDir(), "crateimport"), cfg.CacheDir)
	assert.Equal(t, "sha1", cfg.Hasher)
	assert.False(t, cfg.Release)
	assert.False(t, cfg.ForceRebuild)
	assert.False(t, cfg.Quiet)
	assert.False(t, cfg.Verbose)
}

func TestLoadFromViper(t *testing.T) {
	resetViper(t)

	cacheDir := t.TempDir()
	viper.Set("cargo_path", "/opt/rust/bin/cargo")
	viper.Set("cache_dir", cacheDir)
	viper.Set("release", true)
	viper.Set("force", true)
	viper.Set("hasher", "sha256")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/rust/bin/cargo", cfg.CargoPath)
	assert.Equal(t, cacheDir, cfg.CacheDir)
	assert.True(t, cfg.Release)
	assert.True(t, cfg.ForceRebuild)
	assert.Equal(t, "sha256", cfg.Hasher)
}

func TestValidateRejectsUnknownHasher(t *testing.T) {
	resetViper(t)

	viper.Set("hasher", "md5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash algorithm")
}

func TestValidateResolvesRelativePaths(t *testing.T) {
	cfg := &Config{
		CargoPath: "bin/cargo",
		CacheDir:  "scratch",
		Hasher:    "sha1",
	}

	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.CargoPath))
	assert.True(t, filepath.IsAbs(cfg.CacheDir))
}
