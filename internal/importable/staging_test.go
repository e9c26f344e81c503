package importable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageTreeCopies(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "staged")

	writeFile(t, filepath.Join(src, "Cargo.toml"), "[package]\n")
	writeFile(t, filepath.Join(src, "src", "lib.rs"), "fn main() {}\n")
	writeFile(t, filepath.Join(src, "target", "debug", "old.so"), "never copied")

	require.NoError(t, stageTree(src, dst))

	assert.FileExists(t, filepath.Join(dst, "Cargo.toml"))
	assert.FileExists(t, filepath.Join(dst, "src", "lib.rs"))
	assert.NoFileExists(t, filepath.Join(dst, "target", "debug", "old.so"),
		"the build output directory is never staged")
}

func TestStageTreeMirrorsDeletions(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "staged")

	writeFile(t, filepath.Join(src, "keep.rs"), "kept")
	writeFile(t, filepath.Join(src, "remove.rs"), "doomed")
	writeFile(t, filepath.Join(src, "sub", "nested.rs"), "doomed too")

	require.NoError(t, stageTree(src, dst))
	assert.FileExists(t, filepath.Join(dst, "remove.rs"))

	require.NoError(t, os.Remove(filepath.Join(src, "remove.rs")))
	require.NoError(t, os.RemoveAll(filepath.Join(src, "sub")))

	require.NoError(t, stageTree(src, dst))

	assert.FileExists(t, filepath.Join(dst, "keep.rs"))
	assert.NoFileExists(t, filepath.Join(dst, "remove.rs"))
	assert.NoDirExists(t, filepath.Join(dst, "sub"))
}

func TestStageTreePreservesCompilerCache(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "staged")

	writeFile(t, filepath.Join(src, "lib.rs"), "v1")
	require.NoError(t, stageTree(src, dst))

	// Simulate cargo having populated its cache in the scratch tree
	writeFile(t, filepath.Join(dst, "target", "debug", "incremental.bin"), "cache")

	writeFile(t, filepath.Join(src, "lib.rs"), "v2")
	require.NoError(t, stageTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "lib.rs"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	assert.FileExists(t, filepath.Join(dst, "target", "debug", "incremental.bin"),
		"pruning must never touch the compiler cache")
}

func TestStageTreeWorkspaceSurvivors(t *testing.T) {
	// Two units share one workspace scratch directory; removing one unit's
	// source and restaging must not disturb the survivor's staged files.
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "staged")

	writeFile(t, filepath.Join(src, "Cargo.toml"), "[workspace]\n")
	writeFile(t, filepath.Join(src, "alpha", "Cargo.toml"), "[package]\nname = \"alpha\"\n")
	writeFile(t, filepath.Join(src, "alpha", "src", "lib.rs"), "alpha src")
	writeFile(t, filepath.Join(src, "beta", "Cargo.toml"), "[package]\nname = \"beta\"\n")
	writeFile(t, filepath.Join(src, "beta", "src", "lib.rs"), "beta src")

	require.NoError(t, stageTree(src, dst))

	require.NoError(t, os.RemoveAll(filepath.Join(src, "beta")))
	require.NoError(t, stageTree(src, dst))

	assert.FileExists(t, filepath.Join(dst, "alpha", "src", "lib.rs"))
	assert.NoDirExists(t, filepath.Join(dst, "beta"))
}

func TestStageTreePreservesFileMode(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "staged")

	script := filepath.Join(src, "build.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755))

	require.NoError(t, stageTree(src, dst))

	info, err := os.Stat(filepath.Join(dst, "build.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}
