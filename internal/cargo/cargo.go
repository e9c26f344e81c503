// Package cargo drives the Rust toolchain as a subprocess and interprets
// its machine-readable message stream.
package cargo

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Cargo invokes the cargo executable.
type Cargo struct {
	executable string

	// stderr receives live diagnostics; defaults to os.Stderr
	stderr io.Writer
}

// New creates an invoker for the given executable path. An empty path looks
// cargo up on PATH and fails with installation guidance if the toolchain is
// missing.
func New(executablePath string) (*Cargo, error) {
	if executablePath == "" {
		path, err := Require("cargo")
		if err != nil {
			return nil, err
		}

		executablePath = path
	}

	return &Cargo{executable: executablePath, stderr: os.Stderr}, nil
}

// BuildOptions configures one compiler invocation.
type BuildOptions struct {
	// CratePath is the crate root directory (containing Cargo.toml)
	CratePath string

	// DestinationPath, when set, receives a copy of the built artifact
	DestinationPath string

	// Release toggles cargo's --release flag
	Release bool

	// Quiet suppresses live compiler output; diagnostics are buffered
	// and emitted in one combined report on failure
	Quiet bool

	// ExtraArgs are appended to the cargo command line
	ExtraArgs []string
}

// BuildResult is the outcome of one invocation.
type BuildResult struct {
	Success      bool
	ExitCode     int
	ArtifactPath string

	// Diagnostics are the rendered compiler messages, in emission order
	Diagnostics []string

	// Messages holds every parsed message for advanced inspection
	Messages []Message
}

// Build runs `cargo rustc --lib` with a JSON message stream and extracts
// the produced artifact. A compile failure is reported through the result,
// not the error; the error covers toolchain and I/O problems only.
func (c *Cargo) Build(opts BuildOptions) (*BuildResult, error) {
	args := []string{"rustc", "--lib", "--message-format", "json"}

	if opts.Quiet {
		args = append(args, "--quiet")
	}

	if opts.Release {
		args = append(args, "--release")
	}

	args = append(args, opts.ExtraArgs...)

	cmd := exec.Command(c.executable, args...)
	cmd.Dir = opts.CratePath

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open cargo stdout: %w", err)
	}

	var stderrBuf strings.Builder
	if opts.Quiet {
		cmd.Stderr = &stderrBuf
	} else {
		cmd.Stderr = c.stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start cargo: %w", err)
	}

	result := &BuildResult{}
	consumeMessages(opts.CratePath, stdout, opts.Quiet, c.stderr, result)

	// The stream ends when cargo exits; a non-zero exit is a build
	// failure, not an invocation error
	if err := cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, fmt.Errorf("cargo did not run to completion: %w", err)
		}
	}

	result.ExitCode = cmd.ProcessState.ExitCode()
	result.Success = result.ExitCode == 0

	if !result.Success && opts.Quiet {
		c.reportBufferedFailure(result, stderrBuf.String())
	}

	if result.Success && result.ArtifactPath != "" && opts.DestinationPath != "" {
		if err := copyFile(result.ArtifactPath, opts.DestinationPath); err != nil {
			return nil, fmt.Errorf("failed to copy artifact to %s: %w", opts.DestinationPath, err)
		}
	}

	return result, nil
}

// reportBufferedFailure emits everything held back by quiet mode as one
// combined report.
func (c *Cargo) reportBufferedFailure(result *BuildResult, stderr string) {
	var report strings.Builder

	report.WriteString("Compilation failed. Cargo build output:\n\n")
	for _, diag := range result.Diagnostics {
		report.WriteString(diag)
	}

	report.WriteString(stderr)

	fmt.Fprintln(c.stderr, report.String())
}

// copyFile overwrites dst with src, preserving mode and timestamps where
// the platform allows.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer srcFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}

	if err := dstFile.Close(); err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err := os.Chmod(dst, info.Mode()); err != nil {
		return err
	}

	// Timestamps are best effort
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())

	return nil
}
