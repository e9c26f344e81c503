package cargo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeMessagesArtifactExtraction(t *testing.T) {
	crateDir := t.TempDir()
	siblingDir := t.TempDir()

	stream := strings.Join([]string{
		fmt.Sprintf(`{"reason":"compiler-artifact","manifest_path":%q,"filenames":["/target/debug/libsibling.so"]}`,
			filepath.Join(siblingDir, "Cargo.toml")),
		fmt.Sprintf(`{"reason":"compiler-artifact","manifest_path":%q,"filenames":["/target/debug/libdemo.so","/target/debug/demo.d"]}`,
			filepath.Join(crateDir, "Cargo.toml")),
		`{"reason":"build-finished","success":true}`,
	}, "\n")

	var result BuildResult
	consumeMessages(crateDir, strings.NewReader(stream), false, os.Stderr, &result)

	assert.Equal(t, "/target/debug/libdemo.so", result.ArtifactPath,
		"only the artifact of the crate being built counts, not workspace siblings")
	assert.Len(t, result.Messages, 3, "all messages are retained for inspection")
}

func TestConsumeMessagesDiagnostics(t *testing.T) {
	crateDir := t.TempDir()

	stream := strings.Join([]string{
		`{"reason":"compiler-message","message":{"rendered":"warning: unused variable\n"}}`,
		`{"reason":"compiler-message","message":{"rendered":"error[E0308]: mismatched types\n"}}`,
		`not json at all`,
		`{"reason":"something-unknown"}`,
	}, "\n")

	t.Run("live mode streams to the error writer", func(t *testing.T) {
		var live strings.Builder
		var result BuildResult
		consumeMessages(crateDir, strings.NewReader(stream), false, &live, &result)

		assert.Contains(t, live.String(), "unused variable")
		assert.Contains(t, live.String(), "mismatched types")
		assert.Len(t, result.Diagnostics, 2)
	})

	t.Run("quiet mode buffers instead", func(t *testing.T) {
		var live strings.Builder
		var result BuildResult
		consumeMessages(crateDir, strings.NewReader(stream), true, &live, &result)

		assert.Empty(t, live.String())
		require.Len(t, result.Diagnostics, 2)
		assert.Equal(t, "warning: unused variable\n", result.Diagnostics[0])
	})
}

func TestConsumeMessagesDrainsOversizedLines(t *testing.T) {
	// A single message beyond the scanner's buffer limit stops parsing;
	// the rest of the stream must still be read so cargo can exit
	oversized := strings.Repeat("x", 5*1024*1024) + "\n" +
		`{"reason":"compiler-message","message":{"rendered":"never parsed"}}` + "\n"

	r := strings.NewReader(oversized)
	var result BuildResult
	consumeMessages(t.TempDir(), r, false, os.Stderr, &result)

	assert.Zero(t, r.Len(), "the stream is consumed to EOF")
	assert.Empty(t, result.Diagnostics)
}

func TestConsumeMessagesEmptyStream(t *testing.T) {
	var result BuildResult
	consumeMessages(t.TempDir(), strings.NewReader(""), false, os.Stderr, &result)

	assert.Empty(t, result.ArtifactPath)
	assert.Empty(t, result.Messages)
}

func TestRequireMissingToolchain(t *testing.T) {
	_, err := Require("definitely-not-a-real-executable-name")
	require.Error(t, err)

	var notFound *ToolchainNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "toolchain")
}

func TestCopyFilePreservesMode(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "artifact.so")
	dst := filepath.Join(tempDir, "out", "demo.so")

	require.NoError(t, os.WriteFile(src, []byte("shared object"), 0o755))
	require.NoError(t, copyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "shared object", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	// Overwrite is allowed
	require.NoError(t, os.WriteFile(src, []byte("rebuilt"), 0o755))
	require.NoError(t, copyFile(src, dst))

	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "rebuilt", string(data))
}
