package importable

import (
	"fmt"
	"strings"
)

// BuildError reports a failed compilation: which unit failed and what the
// compiler said. A failed build never overwrites a previously valid
// artifact, so the error is fatal to the requested operation only.
type BuildError struct {
	SourcePath  string
	Diagnostics []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build %s", e.SourcePath)
}

// ResolveError reports that no build unit matched a logical name, along
// with any near-miss explanations (e.g. a candidate missing its opt-in
// marker).
type ResolveError struct {
	FullName string
	Reasons  []string
}

func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("couldn't find a valid import target matching the module name: %s", e.FullName)

	if len(e.Reasons) > 0 {
		var list strings.Builder
		for _, r := range e.Reasons {
			list.WriteString("\n  - " + strings.ReplaceAll(r, "\n", "\n    "))
		}

		msg += ". Potential reasons:" + list.String()
	}

	return msg
}
