package cargo

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Message is one line of cargo's JSON message stream. Only the
// "compiler-artifact" and "compiler-message" kinds are interpreted; all
// others are carried through for inspection and otherwise ignored.
type Message struct {
	Reason       string      `json:"reason"`
	ManifestPath string      `json:"manifest_path"`
	Filenames    []string    `json:"filenames"`
	Message      *Diagnostic `json:"message"`
}

// Diagnostic is the human-rendered form of a compiler message.
type Diagnostic struct {
	Rendered string `json:"rendered"`
}

// consumeMessages reads the line-delimited JSON stream until EOF (i.e.
// until cargo exits), recording the built artifact and the diagnostics into
// result. Diagnostics stream to liveErr unless quiet, in which case they
// are buffered in the result for later reporting.
//
// Workspace builds emit artifacts for every member crate; only the message
// whose originating manifest matches cratePath names our artifact.
func consumeMessages(cratePath string, r io.Reader, quiet bool, liveErr io.Writer, result *BuildResult) {
	absCratePath := canonicalDir(cratePath)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}

		result.Messages = append(result.Messages, msg)

		switch msg.Reason {
		case "compiler-artifact":
			if canonicalDir(filepath.Dir(msg.ManifestPath)) == absCratePath && len(msg.Filenames) > 0 {
				result.ArtifactPath = msg.Filenames[0]
			}
		case "compiler-message":
			if msg.Message == nil {
				continue
			}

			result.Diagnostics = append(result.Diagnostics, msg.Message.Rendered)
			if !quiet {
				fmt.Fprint(liveErr, msg.Message.Rendered)
			}
		}
	}

	// A scan error (e.g. a line beyond the buffer limit) stops parsing but
	// must not leave cargo blocked writing to a full pipe
	if scanner.Err() != nil {
		_, _ = io.Copy(io.Discard, r)
	}
}

func canonicalDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	return strings.TrimRight(abs, string(filepath.Separator))
}
