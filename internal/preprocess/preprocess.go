// Package preprocess turns an annotated source file into a buildable crate
// definition: it reads the embedded header configuration, layers manifest
// defaults, and lets a template synthesize binding glue code.
package preprocess

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crateimport/crateimport/internal/manifest"
)

// Preprocessor derives the final build manifest and source for one unit.
type Preprocessor struct {
	// Path is the unit's entry source file (the .rs file, or src/lib.rs
	// for crates)
	Path string

	// LibName is the bare extension name
	LibName string

	// ManifestPath is the crate's own Cargo.toml, empty for single-file
	// units
	ManifestPath string

	// WorkspaceRoot is the enclosing workspace directory staged wholesale,
	// empty for standalone units
	WorkspaceRoot string
}

// Result is the preprocessed build input.
type Result struct {
	// Manifest is the final Cargo.toml content
	Manifest []byte

	// DependencyPatterns are the extra //d: globs, relative to the source
	// file's directory
	DependencyPatterns []string

	// UpdatedSource is the template-processed source, nil when no template
	// ran and the original file should be used as-is
	UpdatedSource []byte

	// ExtraCargoArgs are additional cargo command-line arguments
	ExtraCargoArgs []string
}

// Process reads the source, parses its header, merges the manifest layers
// (template defaults < header fragment < external Cargo.toml) and applies
// the selected template.
func (p *Preprocessor) Process() (*Result, error) {
	source, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source %s: %w", p.Path, err)
	}

	header := ParseHeader(source)

	tree, err := manifest.Parse(header.Manifest)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest fragment in %s: %w", p.Path, err)
	}

	if p.ManifestPath != "" {
		external, err := manifest.ParseFile(p.ManifestPath)
		if err != nil {
			return nil, err
		}

		// The user's own Cargo.toml is the most explicit layer
		tree = manifest.Merge(external, tree)
	}

	manifest.RewritePathDeps(tree, p.manifestRoot(), p.WorkspaceRoot)

	result := &Result{DependencyPatterns: header.DependencyPatterns}

	if header.Template != "" {
		template, err := LookupTemplate(header.Template)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Path, err)
		}

		templated := template.Process(TemplateInput{
			LibName:  p.LibName,
			Source:   source,
			Manifest: tree,
		})

		tree = templated.Manifest
		result.UpdatedSource = templated.Source
		result.ExtraCargoArgs = templated.ExtraCargoArgs
	}

	encoded, err := manifest.Encode(tree)
	if err != nil {
		return nil, err
	}

	result.Manifest = encoded

	return result, nil
}

// manifestRoot is the directory relative path dependencies resolve against:
// the crate directory when an external manifest exists, the source file's
// directory otherwise.
func (p *Preprocessor) manifestRoot() string {
	if p.ManifestPath != "" {
		return filepath.Dir(p.ManifestPath)
	}

	return filepath.Dir(p.Path)
}
