package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateimport/crateimport/internal/importable"
	"github.com/crateimport/crateimport/internal/preprocess"
)

func TestRunNewSingleFile(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, runNew(newCmd, []string{"doubler.rs"}))

	content, err := os.ReadFile("doubler.rs")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(content), "// crateimport:pyo3"))
	assert.Contains(t, string(content), "Hello from doubler")
}

func TestRunNewCrate(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, runNew(newCmd, []string{"mycrate"}))

	source, err := os.ReadFile(filepath.Join("mycrate", "src", "lib.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(source), "fn say_hello()")

	manifest, err := os.ReadFile(filepath.Join("mycrate", "Cargo.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), `name = "mycrate"`)
	assert.Contains(t, string(manifest), preprocess.PyO3Version)

	assert.FileExists(t, filepath.Join("mycrate", importable.MarkerFile))
}

func TestRunNewRejectsInvalidNames(t *testing.T) {
	t.Chdir(t.TempDir())

	for _, name := range []string{"1starts_with_digit", "has-dash", "with space", "nested/path"} {
		err := runNew(newCmd, []string{name})
		assert.Error(t, err, name)
	}
}

func TestRunNewRefusesExistingPath(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, os.WriteFile("taken.rs", []byte("fn main() {}\n"), 0o644))

	err := runNew(newCmd, []string{"taken.rs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
