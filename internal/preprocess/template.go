package preprocess

import (
	"fmt"
	"strings"

	"github.com/crateimport/crateimport/internal/manifest"
)

// TemplateInput is everything a template gets to work with.
type TemplateInput struct {
	// LibName is the bare extension name, used for the generated crate
	// and the synthesized module entry point
	LibName string

	// Source is the full source text of the unit's entry file
	Source []byte

	// Manifest is the already-merged header+external manifest the
	// template layers its own defaults under
	Manifest manifest.Tree
}

// TemplateResult is a template's contribution to the build.
type TemplateResult struct {
	// Manifest is the final manifest tree, template defaults filled in
	Manifest manifest.Tree

	// Source is the (possibly rewritten) source text
	Source []byte

	// ExtraCargoArgs are additional cargo command-line arguments
	ExtraCargoArgs []string
}

// Template derives default build configuration and optionally synthesizes
// binding glue code for one binding style.
type Template interface {
	Process(in TemplateInput) TemplateResult
}

var templates = map[string]func() Template{
	"pyo3": func() Template { return NewPyO3Template() },
}

// LookupTemplate returns the template registered under name
// (case-insensitive).
func LookupTemplate(name string) (Template, error) {
	factory, ok := templates[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown template: %s", name)
	}

	return factory(), nil
}
