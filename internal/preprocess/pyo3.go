package preprocess

import (
	"regexp"
	"runtime"

	"github.com/crateimport/crateimport/internal/manifest"
)

// PyO3Version is the pyo3 release pinned into generated manifests.
const PyO3Version = "0.23.4"

// PyO3Template targets the pyo3 binding style: functions annotated with
// #[pyfunction] and types annotated with #[pyclass]. When the source has no
// #[pymodule] block of its own, one is synthesized referencing every
// annotated declaration.
type PyO3Template struct {
	goos string
}

func NewPyO3Template() *PyO3Template {
	return &PyO3Template{goos: runtime.GOOS}
}

func (t *PyO3Template) Process(in TemplateInput) TemplateResult {
	return TemplateResult{
		Manifest:       t.defaultManifest(in),
		Source:         t.processSource(in),
		ExtraCargoArgs: t.cargoArgs(),
	}
}

func (t *PyO3Template) defaultManifest(in TemplateInput) manifest.Tree {
	return manifest.Merge(in.Manifest, manifest.Tree{
		"package": manifest.Tree{
			"name":    in.LibName,
			"version": "0.1.0",
			"edition": "2021",
		},
		"lib": manifest.Tree{
			"name":       in.LibName,
			"crate-type": []any{"cdylib"},
		},
		"dependencies": manifest.Tree{
			"pyo3": manifest.Tree{
				"version":  PyO3Version,
				"features": []any{"extension-module"},
			},
		},
	})
}

// pymodulePattern recognizes an explicit module registration block so we
// never generate a second one.
var pymodulePattern = regexp.MustCompile(`(?s)#\[pymodule\]\s*(?:\w+\s+)*?(?:mod|fn)\s+\w+`)

// These are best-effort scanners, not a Rust parser. They tolerate
// intervening attribute lines, comments and modifier keywords between the
// annotation and the declaration. Constructs they miss (nested annotations,
// exotic multi-line attributes) are simply not registered; they never
// produce a garbled entry.
var (
	pyfunctionPattern = regexp.MustCompile(`(?s)#\[pyfunction.*?\]\s*(?:(?:#\[.*?\]|//[^\n]*\n|/\*.*?\*/)\s*)*?(?:\w+\s+)*?fn\s+(\w+)`)
	pyclassPattern    = regexp.MustCompile(`(?s)#\[pyclass.*?\]\s*(?:(?:#\[.*?\]|//[^\n]*\n|/\*.*?\*/)\s*)*?(?:\w+\s+)*?(?:struct|enum)\s+(\w+)`)
)

func (t *PyO3Template) processSource(in TemplateInput) []byte {
	if pymodulePattern.Match(in.Source) {
		return in.Source
	}

	return append(append([]byte{}, in.Source...), append([]byte("\n\n"), t.generatePymodule(in)...)...)
}

func (t *PyO3Template) generatePymodule(in TemplateInput) []byte {
	var out []byte

	out = append(out, "#[pymodule]\n"...)
	out = append(out, "fn "+in.LibName+"(_py: Python, m: &Bound<'_, PyModule>) -> PyResult<()> {\n"...)

	for _, m := range pyfunctionPattern.FindAllSubmatch(in.Source, -1) {
		out = append(out, "  m.add_function(wrap_pyfunction!("...)
		out = append(out, m[1]...)
		out = append(out, ", m)?)?;\n"...)
	}

	for _, m := range pyclassPattern.FindAllSubmatch(in.Source, -1) {
		out = append(out, "  m.add_class::<"...)
		out = append(out, m[1]...)
		out = append(out, ">()?;\n"...)
	}

	out = append(out, "  Ok(())\n}"...)

	return out
}

func (t *PyO3Template) cargoArgs() []string {
	if t.goos == "darwin" {
		// The extension-module feature disables linking to libpython on
		// macOS, which requires the loader to resolve those symbols at
		// load time instead.
		return []string{
			"--",
			"-C", "link-arg=-undefined",
			"-C", "link-arg=dynamic_lookup",
		}
	}

	return nil
}
