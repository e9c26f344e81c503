package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crateimport/crateimport/internal/importable"
	"github.com/crateimport/crateimport/internal/preprocess"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a new extension ready to be built",
	Long: `Scaffold a new extension. A name ending in ".rs" creates a single-file
extension; any other name sets up a full crate with the opt-in marker file.`,
	Args:         cobra.ExactArgs(1),
	RunE:         runNew,
	SilenceUsage: true,
}

var extensionNamePattern = regexp.MustCompile(`^[a-zA-Z]\w*(\.rs)?$`)

const sourceTemplate = `// crateimport:pyo3

use pyo3::prelude::*;

#[pyfunction]
fn say_hello() {
    println!("Hello from {{NAME}}, implemented in Rust!")
}

// Uncomment the below to write the binding glue by hand. Otherwise it is
// generated automatically for all functions annotated with #[pyfunction]
// and all structs annotated with #[pyclass].
//
//#[pymodule]
//fn {{NAME}}(_py: Python, m: &Bound<'_, PyModule>) -> PyResult<()> {
//    m.add_function(wrap_pyfunction!(say_hello, m)?)?;
//    Ok(())
//}
`

const manifestTemplate = `[package]
name = "{{NAME}}"
version = "0.1.0"
edition = "2021"

# The sections below may be removed; they are merged into the generated
# default configuration, so only overrides and extra dependencies need to
# stay here.
[lib]
name = "{{NAME}}"
crate-type = ["cdylib"]

[dependencies]
pyo3 = { version = "{{PYO3_VERSION}}", features = ["extension-module"] }
`

func runNew(cmd *cobra.Command, args []string) error {
	name := args[0]

	if !extensionNamePattern.MatchString(name) {
		return fmt.Errorf("invalid extension name: %s (letters, numbers and underscores only, starting with a letter)", name)
	}

	path, err := filepath.Abs(name)
	if err != nil {
		return err
	}

	bare := strings.TrimSuffix(filepath.Base(name), ".rs")

	if strings.HasSuffix(name, ".rs") {
		return writeScaffold(path, renderTemplate(sourceTemplate, bare))
	}

	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(path, "src", "lib.rs"), renderTemplate(sourceTemplate, bare)},
		{filepath.Join(path, "Cargo.toml"), renderTemplate(manifestTemplate, bare)},
		{filepath.Join(path, importable.MarkerFile), "This is a marker file making this crate importable by crateimport.\n"},
	}

	for _, file := range files {
		if err := writeScaffold(file.path, file.content); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created extension %s at %s\n", bare, path)

	return nil
}

func renderTemplate(tmpl, name string) string {
	out := strings.ReplaceAll(tmpl, "{{NAME}}", name)

	return strings.ReplaceAll(out, "{{PYO3_VERSION}}", preprocess.PyO3Version)
}

func writeScaffold(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, []byte(content), 0o644)
}
