package importable

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateimport/crateimport/internal/config"
)

// fakeCargoScript pretends to be cargo: it creates a library in the crate's
// target directory and reports it on the JSON message stream.
const fakeCargoScript = `#!/bin/sh
mkdir -p target/debug
printf 'shared object' > target/debug/libfake.so
printf '%s\n' "{\"reason\":\"compiler-artifact\",\"manifest_path\":\"$PWD/Cargo.toml\",\"filenames\":[\"$PWD/target/debug/libfake.so\"]}"
exit 0
`

const failingCargoScript = `#!/bin/sh
printf '%s\n' '{"reason":"compiler-message","message":{"rendered":"error: it is broken"}}'
exit 101
`

func fakeToolchain(t *testing.T, script string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake cargo script requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "cargo")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func buildResolver(t *testing.T, script string) *Resolver {
	t.Helper()

	return NewResolver(&config.Config{
		CargoPath: fakeToolchain(t, script),
		CacheDir:  t.TempDir(),
		Hasher:    "sha1",
		Quiet:     true,
	})
}

func TestSingleFileBuildEndToEnd(t *testing.T) {
	tempDir := t.TempDir()
	source := filepath.Join(tempDir, "demo.rs")
	writeFile(t, source, `// crateimport:pyo3

#[pyfunction]
fn first() {}

#[pyfunction]
fn second() {}
`)

	r := buildResolver(t, fakeCargoScript)
	unit := r.tryCreateSingleFile(source, "", false)
	require.NotNil(t, unit)

	require.True(t, unit.NeedsRebuild(false))
	require.NoError(t, unit.Build(false))

	// The artifact landed next to the source and carries a valid stamp
	assert.FileExists(t, unit.ExtensionPath())
	assert.False(t, unit.NeedsRebuild(false))
	assert.True(t, unit.NeedsRebuild(true), "release artifact is still pending")

	// The staged crate was synthesized with generated binding glue
	staged, err := os.ReadFile(filepath.Join(unit.BuildDir(), "demo", "src", "lib.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(staged), "#[pymodule]")
	assert.Contains(t, string(staged), "wrap_pyfunction!(first, m)")
	assert.Contains(t, string(staged), "wrap_pyfunction!(second, m)")

	assert.Less(t,
		strings.Index(string(staged), "wrap_pyfunction!(first"),
		strings.Index(string(staged), "wrap_pyfunction!(second"),
		"registration preserves discovery order")

	assert.FileExists(t, filepath.Join(unit.BuildDir(), "demo", "Cargo.toml"))
}

func TestSingleFileBuildFailure(t *testing.T) {
	tempDir := t.TempDir()
	source := filepath.Join(tempDir, "broken.rs")
	writeFile(t, source, "// crateimport\nfn broken( {}\n")

	r := buildResolver(t, failingCargoScript)
	unit := r.tryCreateSingleFile(source, "", false)
	require.NotNil(t, unit)

	err := unit.Build(false)
	require.Error(t, err)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, unit.Path(), buildErr.SourcePath)
	require.Len(t, buildErr.Diagnostics, 1)
	assert.Contains(t, buildErr.Diagnostics[0], "it is broken")

	assert.NoFileExists(t, unit.ExtensionPath(), "a failed build must not produce an artifact")
	assert.True(t, unit.NeedsRebuild(false))
}

func TestCrateBuildEndToEnd(t *testing.T) {
	tempDir := t.TempDir()
	crateDir := filepath.Join(tempDir, "democrate")
	writeFile(t, filepath.Join(crateDir, "Cargo.toml"), "[package]\nname = \"democrate\"\nversion = \"0.1.0\"\n")
	writeFile(t, filepath.Join(crateDir, "src", "lib.rs"), "// crateimport\nfn main() {}\n")
	writeFile(t, filepath.Join(crateDir, "src", "helper.rs"), "fn helper() {}\n")

	r := buildResolver(t, fakeCargoScript)
	unit := r.tryCreateCrate(crateDir, "", false)
	require.NotNil(t, unit)

	require.NoError(t, unit.Build(false))

	assert.FileExists(t, unit.ExtensionPath())
	assert.False(t, unit.NeedsRebuild(false))

	// Editing any crate source invalidates the build
	writeFile(t, filepath.Join(crateDir, "src", "helper.rs"), "fn helper_v2() {}\n")
	assert.True(t, unit.NeedsRebuild(false))
}

func TestCrateBuildStagesWorkspace(t *testing.T) {
	tempDir := t.TempDir()

	wsDir := filepath.Join(tempDir, "ws")
	writeFile(t, filepath.Join(wsDir, "Cargo.toml"), "[workspace]\nmembers = [\"member\", \"sibling\"]\n")

	memberDir := filepath.Join(wsDir, "member")
	writeFile(t, filepath.Join(memberDir, "Cargo.toml"), "[package]\nname = \"member\"\nversion = \"0.1.0\"\n")
	writeFile(t, filepath.Join(memberDir, "src", "lib.rs"), "// crateimport\nfn main() {}\n")

	siblingDir := filepath.Join(wsDir, "sibling")
	writeFile(t, filepath.Join(siblingDir, "Cargo.toml"), "[package]\nname = \"sibling\"\nversion = \"0.1.0\"\n")
	writeFile(t, filepath.Join(siblingDir, "src", "lib.rs"), "fn sibling() {}\n")

	r := buildResolver(t, fakeCargoScript)
	unit := r.tryCreateCrate(memberDir, "", false)
	require.NotNil(t, unit)

	require.NoError(t, unit.Build(false))

	// The whole workspace was staged into the shared scratch directory
	stagedRoot := filepath.Join(unit.BuildDir(), "ws")
	assert.FileExists(t, filepath.Join(stagedRoot, "Cargo.toml"))
	assert.FileExists(t, filepath.Join(stagedRoot, "member", "src", "lib.rs"))
	assert.FileExists(t, filepath.Join(stagedRoot, "sibling", "src", "lib.rs"))
}
