package importable

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/crateimport/crateimport/internal/cargo"
	"github.com/crateimport/crateimport/internal/preprocess"
)

// MarkerFile alongside a crate's Cargo.toml opts the crate in without
// touching its sources.
const MarkerFile = ".crateimport"

// Crate is a build unit backed by an existing crate directory, optionally
// inside a cargo workspace. Workspace members share one scratch directory
// so they also share cargo's incremental build cache.
type Crate struct {
	resolver *Resolver
	path     string // crate directory, canonical
	fullName string

	workspace       string
	workspaceLoaded bool
}

// tryCreateCrate accepts a directory containing a Cargo.toml (or a path to
// the Cargo.toml itself). Opt-in is satisfied by a marker file or by the
// manifest's first line.
func (r *Resolver) tryCreateCrate(path, fullName string, optIn bool) *Crate {
	manifestPath := path
	if !strings.EqualFold(filepath.Base(path), "Cargo.toml") {
		manifestPath = filepath.Join(path, "Cargo.toml")
	}

	if !isFile(manifestPath) {
		return nil
	}

	dir := filepath.Dir(manifestPath)

	if optIn && !isFile(filepath.Join(dir, MarkerFile)) {
		manifest, err := os.ReadFile(manifestPath)
		if err != nil || !preprocess.FirstLineOptsIn(manifest) {
			what := "the crate at " + dir
			if fullName != "" {
				what = fmt.Sprintf("a crate candidate for the module %q at %s", fullName, dir)
			}

			r.noteNearMiss(fmt.Sprintf(
				"%s carries no crateimport opt-in marker. If this is an intended crate, "+
					"add a %q file to its root directory.", what, MarkerFile))

			return nil
		}
	}

	dir = canonicalize(dir)

	if fullName == "" {
		fullName = filepath.Base(dir)
	}

	return &Crate{resolver: r, path: dir, fullName: fullName}
}

func (c *Crate) Path() string     { return c.path }
func (c *Crate) FullName() string { return c.fullName }
func (c *Crate) Name() string     { return bareName(c.fullName) }

// ExtensionPath places the artifact next to the crate directory, the same
// way a single-file unit's artifact sits next to its source file.
func (c *Crate) ExtensionPath() string {
	return extensionPathFor(c.path, c.Name())
}

// WorkspaceRoot is the nearest ancestor directory holding its own
// Cargo.toml, or "" when the crate is standalone.
func (c *Crate) WorkspaceRoot() string {
	if c.workspaceLoaded {
		return c.workspace
	}

	c.workspaceLoaded = true

	dir := c.path
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent

		if isFile(filepath.Join(dir, "Cargo.toml")) {
			c.workspace = dir
			break
		}
	}

	return c.workspace
}

// BuildDir is keyed on the workspace root when there is one, so every
// member crate of a workspace stages and builds in the same scratch
// directory.
func (c *Crate) BuildDir() string {
	if ws := c.WorkspaceRoot(); ws != "" {
		return scratchDirFor(c.resolver.cfg.CacheDir, filepath.Base(ws), ws)
	}

	return scratchDirFor(c.resolver.cfg.CacheDir, c.fullName, c.path)
}

func (c *Crate) entrySource() string {
	return filepath.Join(c.path, "src", "lib.rs")
}

func (c *Crate) Dependencies() ([]string, error) {
	root := c.WorkspaceRoot()
	if root == "" {
		root = c.path
	}

	p := &preprocess.Preprocessor{Path: c.entrySource(), LibName: c.Name()}

	res, err := p.Process()
	if err != nil {
		return nil, err
	}

	srcDir := filepath.Join(c.path, "src")
	deps := []string{
		filepath.Join(root, "**", "*.rs"),
		filepath.Join(root, "**", "Cargo.*"),
	}
	for _, pattern := range res.DependencyPatterns {
		deps = append(deps, filepath.Join(srcDir, pattern))
	}

	return deps, nil
}

func (c *Crate) NeedsRebuild(release bool) bool {
	if !isFile(c.ExtensionPath()) {
		return true
	}

	deps, err := c.Dependencies()
	if err != nil {
		return true
	}

	return !c.resolver.engine.IsValid(c.ExtensionPath(), deps, release)
}

func (c *Crate) Build(release bool) error {
	root := c.WorkspaceRoot()
	if root == "" {
		root = c.path
	}

	if err := os.MkdirAll(c.BuildDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}

	// One build at a time per scratch directory; workspace members
	// contend for the same lock
	lock := flock.New(filepath.Join(c.BuildDir(), ".lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock build directory: %w", err)
	}
	defer lock.Unlock()

	stagedRoot := filepath.Join(c.BuildDir(), filepath.Base(root))
	if err := stageTree(root, stagedRoot); err != nil {
		return fmt.Errorf("failed to stage %s: %w", root, err)
	}

	rel, err := filepath.Rel(root, c.path)
	if err != nil {
		return fmt.Errorf("crate %s is outside its workspace root %s: %w", c.path, root, err)
	}

	stagedCrate := filepath.Join(stagedRoot, rel)

	p := &preprocess.Preprocessor{
		Path:          c.entrySource(),
		LibName:       c.Name(),
		ManifestPath:  filepath.Join(c.path, "Cargo.toml"),
		WorkspaceRoot: c.WorkspaceRoot(),
	}

	res, err := p.Process()
	if err != nil {
		return err
	}

	if res.UpdatedSource != nil {
		if err := os.WriteFile(filepath.Join(stagedCrate, "src", "lib.rs"), res.UpdatedSource, 0o644); err != nil {
			return fmt.Errorf("failed to write staged source: %w", err)
		}
	}

	if err := os.WriteFile(filepath.Join(stagedCrate, "Cargo.toml"), res.Manifest, 0o644); err != nil {
		return fmt.Errorf("failed to write staged manifest: %w", err)
	}

	toolchain, err := c.resolver.cargo()
	if err != nil {
		return err
	}

	result, err := toolchain.Build(cargo.BuildOptions{
		CratePath:       stagedCrate,
		DestinationPath: c.ExtensionPath(),
		Release:         release,
		Quiet:           c.resolver.cfg.Quiet,
		ExtraArgs:       res.ExtraCargoArgs,
	})
	if err != nil {
		return err
	}

	if !result.Success {
		return &BuildError{SourcePath: c.path, Diagnostics: result.Diagnostics}
	}

	deps, err := c.Dependencies()
	if err != nil {
		return err
	}

	return c.resolver.engine.Stamp(c.ExtensionPath(), deps, release)
}
