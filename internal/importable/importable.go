// Package importable resolves filesystem paths and logical names to build
// units, stages their sources into scratch directories, and drives the
// compile/fingerprint cycle.
//
// Two unit shapes exist: a single annotated .rs file (a synthetic crate is
// generated around it at build time) and a full crate directory, optionally
// inside a cargo workspace. Both satisfy the Importable interface; a
// registry of shapes is tried in order when resolving a path and the first
// match wins.
package importable

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/crateimport/crateimport/internal/cargo"
	"github.com/crateimport/crateimport/internal/checksum"
	"github.com/crateimport/crateimport/internal/config"
)

// Importable is one compilable build unit resolvable to one extension
// artifact.
type Importable interface {
	// Path is the canonical source location (file or directory)
	Path() string

	// FullName is the dotted logical name
	FullName() string

	// Name is the bare extension name (last segment of FullName)
	Name() string

	// ExtensionPath is where the built artifact lives, next to the source
	ExtensionPath() string

	// BuildDir is the persistent scratch directory used for compilation
	BuildDir() string

	// Dependencies are the file patterns whose contents decide staleness
	Dependencies() ([]string, error)

	// NeedsRebuild reports whether the artifact is missing or stale.
	// Staleness-check problems always mean "rebuild", never an error.
	NeedsRebuild(release bool) bool

	// Build compiles the unit and stamps the new fingerprint. Returns a
	// *BuildError when the compiler rejects the unit.
	Build(release bool) error
}

// Resolver creates importables with an explicit configuration, so callers
// (and tests) never depend on ambient global state.
type Resolver struct {
	cfg    *config.Config
	engine *checksum.Engine

	// nearMisses collects human-readable reasons why candidate paths were
	// rejected, surfaced when resolution ultimately fails
	nearMisses []string
}

func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		cfg:    cfg,
		engine: checksum.New(cfg.Hasher),
	}
}

// TryCreate attempts every registered unit shape against path, in order:
// crate first when a Cargo.toml is present, single file otherwise. Returns
// nil when no shape matches; rejection reasons accumulate for diagnostics.
func (r *Resolver) TryCreate(path, fullName string, optIn bool) Importable {
	if c := r.tryCreateCrate(path, fullName, optIn); c != nil {
		return c
	}

	if s := r.tryCreateSingleFile(path, fullName, optIn); s != nil {
		return s
	}

	return nil
}

func (r *Resolver) noteNearMiss(reason string) {
	r.nearMisses = append(r.nearMisses, reason)
}

// NearMisses returns the rejection reasons collected since the resolver
// was created.
func (r *Resolver) NearMisses() []string {
	return append([]string{}, r.nearMisses...)
}

func (r *Resolver) cargo() (*cargo.Cargo, error) {
	return cargo.New(r.cfg.CargoPath)
}

// ExtensionSuffix is the platform-specific artifact file extension.
func ExtensionSuffix() string {
	if runtime.GOOS == "windows" {
		return ".pyd"
	}

	return ".so"
}

// canonicalize resolves a path to its absolute, symlink-free form so one
// source location always maps to one descriptor and one scratch directory.
func canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}

	return abs
}

// scratchDirFor derives the deterministic per-unit scratch directory name.
func scratchDirFor(cacheDir, name, path string) string {
	sum := md5.Sum([]byte(path))
	return filepath.Join(cacheDir, fmt.Sprintf("%s-%s", name, hex.EncodeToString(sum[:])))
}

func extensionPathFor(sourcePath, name string) string {
	return filepath.Join(filepath.Dir(sourcePath), name+ExtensionSuffix())
}

func bareName(fullName string) string {
	parts := strings.Split(fullName, ".")
	return parts[len(parts)-1]
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
