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

// SingleFile is a build unit backed by one annotated .rs file. A minimal
// crate (src/lib.rs + Cargo.toml) is synthesized around it in the scratch
// directory at build time.
type SingleFile struct {
	resolver *Resolver
	path     string
	fullName string
}

// tryCreateSingleFile accepts path (appending .rs when missing) if it is an
// existing file and, when opting in is required, its first line carries the
// marker.
func (r *Resolver) tryCreateSingleFile(path, fullName string, optIn bool) *SingleFile {
	if !strings.HasSuffix(path, ".rs") {
		path += ".rs"
	}

	if !isFile(path) {
		return nil
	}

	if optIn {
		source, err := os.ReadFile(path)
		if err != nil || !preprocess.FirstLineOptsIn(source) {
			what := path
			if fullName != "" {
				what = fmt.Sprintf("a candidate for the module %q at %s", fullName, path)
			}

			r.noteNearMiss(fmt.Sprintf(
				"%s does not contain the crateimport opt-in comment. If this is an intended "+
					"source, add \"// crateimport\" as its first line.", what))

			return nil
		}
	}

	path = canonicalize(path)

	if fullName == "" {
		fullName = strings.TrimSuffix(filepath.Base(path), ".rs")
	}

	return &SingleFile{resolver: r, path: path, fullName: fullName}
}

func (s *SingleFile) Path() string     { return s.path }
func (s *SingleFile) FullName() string { return s.fullName }
func (s *SingleFile) Name() string     { return bareName(s.fullName) }

func (s *SingleFile) ExtensionPath() string {
	return extensionPathFor(s.path, s.Name())
}

func (s *SingleFile) BuildDir() string {
	return scratchDirFor(s.resolver.cfg.CacheDir, s.fullName, s.path)
}

// crateName names the synthesized crate after the source file.
func (s *SingleFile) crateName() string {
	return strings.TrimSuffix(filepath.Base(s.path), ".rs")
}

func (s *SingleFile) Dependencies() ([]string, error) {
	p := &preprocess.Preprocessor{Path: s.path, LibName: s.Name()}

	res, err := p.Process()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(s.path)
	deps := []string{s.path}
	for _, pattern := range res.DependencyPatterns {
		deps = append(deps, filepath.Join(dir, pattern))
	}

	return deps, nil
}

func (s *SingleFile) NeedsRebuild(release bool) bool {
	if !isFile(s.ExtensionPath()) {
		return true
	}

	deps, err := s.Dependencies()
	if err != nil {
		return true
	}

	return !s.resolver.engine.IsValid(s.ExtensionPath(), deps, release)
}

func (s *SingleFile) Build(release bool) error {
	cratePath := filepath.Join(s.BuildDir(), s.crateName())
	srcPath := filepath.Join(cratePath, "src")

	if err := os.MkdirAll(srcPath, 0o755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}

	// One build at a time per scratch directory
	lock := flock.New(filepath.Join(s.BuildDir(), ".lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock build directory: %w", err)
	}
	defer lock.Unlock()

	p := &preprocess.Preprocessor{Path: s.path, LibName: s.Name()}
	res, err := p.Process()
	if err != nil {
		return err
	}

	source := res.UpdatedSource
	if source == nil {
		source, err = os.ReadFile(s.path)
		if err != nil {
			return fmt.Errorf("failed to read source %s: %w", s.path, err)
		}
	}

	if err := os.WriteFile(filepath.Join(srcPath, "lib.rs"), source, 0o644); err != nil {
		return fmt.Errorf("failed to write staged source: %w", err)
	}

	if err := os.WriteFile(filepath.Join(cratePath, "Cargo.toml"), res.Manifest, 0o644); err != nil {
		return fmt.Errorf("failed to write staged manifest: %w", err)
	}

	toolchain, err := s.resolver.cargo()
	if err != nil {
		return err
	}

	result, err := toolchain.Build(cargo.BuildOptions{
		CratePath:       cratePath,
		DestinationPath: s.ExtensionPath(),
		Release:         release,
		Quiet:           s.resolver.cfg.Quiet,
		ExtraArgs:       res.ExtraCargoArgs,
	})
	if err != nil {
		return err
	}

	if !result.Success {
		return &BuildError{SourcePath: s.path, Diagnostics: result.Diagnostics}
	}

	deps, err := s.Dependencies()
	if err != nil {
		return err
	}

	return s.resolver.engine.Stamp(s.ExtensionPath(), deps, release)
}
