package preprocess

import (
	"bytes"
	"regexp"
)

// Header directives live in the leading comment block of a source file:
//
//	// crateimport              opt-in sentinel (first non-blank line)
//	// crateimport:pyo3         sentinel selecting a template
//	//: <raw Cargo.toml line>   manifest fragment
//	//d: <glob>                 extra dependency pattern
//
// Anything after the first substantive code line is ignored.
type Header struct {
	// OptIn is true when the first non-blank line carries the sentinel
	OptIn bool

	// Template is the template identifier from the sentinel, if any
	Template string

	// Manifest is the accumulated raw manifest-fragment text
	Manifest []byte

	// DependencyPatterns are the //d: globs, in source order
	DependencyPatterns []string
}

var sentinelPattern = regexp.MustCompile(`^//\s*crateimport(?:\s*:\s*([\w-]+))?$`)

// ParseHeader extracts the embedded configuration from the leading
// comment/blank lines of source.
func ParseHeader(source []byte) Header {
	var h Header

	lines := bytes.Split(source, []byte("\n"))

	for i, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		// The sentinel must be the very first non-blank line
		if !h.OptIn && h.Manifest == nil && len(h.DependencyPatterns) == 0 && i == firstNonBlank(lines) {
			if m := sentinelPattern.FindSubmatch(line); m != nil {
				h.OptIn = true
				h.Template = string(m[1])
			}
		}

		// The header ends at the first line of actual code
		if !bytes.HasPrefix(line, []byte("//")) {
			break
		}

		switch {
		case bytes.HasPrefix(line, []byte("//:")):
			h.Manifest = append(h.Manifest, bytes.TrimLeft(line[3:], " \t")...)
			h.Manifest = append(h.Manifest, '\n')
		case bytes.HasPrefix(line, []byte("//d:")):
			h.DependencyPatterns = append(h.DependencyPatterns, string(bytes.TrimLeft(line[4:], " \t")))
		}
	}

	return h
}

// FirstLineOptsIn reports whether the first non-blank line of source
// mentions the opt-in marker at all, in any position. Used for eligibility
// checks on files that are not fully preprocessed (e.g. Cargo.toml files,
// whose comment syntax differs).
func FirstLineOptsIn(source []byte) bool {
	lines := bytes.Split(source, []byte("\n"))
	if i := firstNonBlank(lines); i >= 0 {
		return bytes.Contains(lines[i], []byte("crateimport"))
	}

	return false
}

func firstNonBlank(lines [][]byte) int {
	for i, line := range lines {
		if len(bytes.TrimSpace(line)) > 0 {
			return i
		}
	}

	return -1
}
