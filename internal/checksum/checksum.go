// Package checksum decides whether a compiled extension is stale.
//
// The fingerprint is a content hash over every file matched by a unit's
// dependency patterns. Instead of a sidecar file, the fingerprint is stored
// as a trailer appended to the compiled artifact itself, so the artifact and
// its staleness metadata can never go out of sync or get separated. A missing
// artifact, a missing dependency file or a corrupt trailer all mean the same
// thing: rebuild.
package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Engine computes and verifies artifact fingerprints
type Engine struct {
	newHash func() hash.Hash
}

// New creates a fingerprint engine using the named hash algorithm
// ("sha1" or "sha256"). Unknown names fall back to sha1.
func New(hasher string) *Engine {
	e := &Engine{newHash: sha1.New}

	if hasher == "sha256" {
		e.newHash = sha256.New
	}

	return e
}

// IsValid reports whether the artifact at extensionPath carries a trailer
// whose fingerprint matches the current contents of all files resolved from
// filePatterns. Any failure to read a dependency or the trailer means the
// artifact is stale; rebuilding is always the recovery, so no error is
// returned.
func (e *Engine) IsValid(extensionPath string, filePatterns []string, release bool) bool {
	stored, err := loadTrailer(extensionPath)
	if err != nil {
		return false
	}

	current, err := e.compute(filePatterns, release)
	if err != nil {
		return false
	}

	return string(stored) == string(current)
}

// Stamp computes the current fingerprint and appends it to the artifact.
// Must only be called after a successful build. The write is append-only and
// never inspects a previous trailer.
func (e *Engine) Stamp(extensionPath string, filePatterns []string, release bool) error {
	sum, err := e.compute(filePatterns, release)
	if err != nil {
		return fmt.Errorf("failed to compute fingerprint: %w", err)
	}

	return appendTrailer(extensionPath, sum)
}

// compute hashes the sorted, de-duplicated "path:digest" pairs of every file
// resolved from filePatterns. Release builds get a leading discriminator so
// debug and release artifacts never share a fingerprint.
func (e *Engine) compute(filePatterns []string, release bool) ([]byte, error) {
	files, err := ExpandPatterns(filePatterns)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		h := e.newHash()
		h.Write(data)
		lines = append(lines, path+":"+hex.EncodeToString(h.Sum(nil)))
	}

	payload := strings.Join(lines, "\n")
	if release {
		payload = "r\n" + payload
	}

	h := e.newHash()
	h.Write([]byte(payload))

	return []byte(hex.EncodeToString(h.Sum(nil))), nil
}

// ExpandPatterns resolves dependency patterns to a sorted, de-duplicated
// list of file paths. A pattern is either a glob (expanded with ** support),
// a directory (everything under it) or a literal file path. Literal paths
// are kept even if the file is missing, so a deleted dependency surfaces as
// a read failure rather than silently dropping out of the fingerprint.
func ExpandPatterns(patterns []string) ([]string, error) {
	var all []string

	for _, entity := range patterns {
		switch {
		case hasGlobMagic(entity):
			matches, err := doublestar.FilepathGlob(entity)
			if err != nil {
				return nil, fmt.Errorf("invalid dependency pattern %q: %w", entity, err)
			}

			all = append(all, matches...)
		case isDir(entity):
			matches, err := doublestar.FilepathGlob(filepath.Join(entity, "**"))
			if err != nil {
				return nil, fmt.Errorf("invalid dependency pattern %q: %w", entity, err)
			}

			all = append(all, matches...)
		default:
			all = append(all, entity)
		}
	}

	// Directories matched by globs are not hashable themselves; their
	// contents are covered by the recursive patterns above.
	files := all[:0]
	for _, path := range all {
		if !isDir(path) {
			files = append(files, path)
		}
	}

	sort.Strings(files)

	deduped := files[:0]
	var prev string
	for i, path := range files {
		if i == 0 || path != prev {
			deduped = append(deduped, path)
		}

		prev = path
	}

	return deduped, nil
}

func hasGlobMagic(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
