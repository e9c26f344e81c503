// Package manifest handles Cargo.toml configuration trees.
//
// A manifest is an untyped nested tree (map[string]any) as produced by TOML
// decoding. Three layers combine into the final build manifest: template
// defaults, the fragment embedded in the source header, and the crate's own
// Cargo.toml file. Layers merge with Merge, most specific as override.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Tree is a parsed manifest: nested string-keyed tables with scalar or
// array leaves, exactly as decoded from TOML.
type Tree = map[string]any

// Parse decodes raw TOML into a manifest tree. Empty input yields an empty
// tree rather than an error.
func Parse(data []byte) (Tree, error) {
	tree := Tree{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return tree, nil
}

// ParseFile decodes the TOML file at path into a manifest tree.
func ParseFile(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	return Parse(data)
}

// Encode serializes a manifest tree back to TOML.
func Encode(tree Tree) ([]byte, error) {
	data, err := toml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	return data, nil
}

// Merge combines defaults into override: every key of defaults that is
// absent from override is copied in; keys that are nested tables on both
// sides merge recursively; anything else keeps the override value. Neither
// input is modified.
func Merge(override, defaults Tree) Tree {
	merged := clone(override)

	for k, dv := range defaults {
		ov, exists := merged[k]
		if !exists {
			merged[k] = cloneValue(dv)
			continue
		}

		ot, otOK := asTree(ov)
		dt, dtOK := asTree(dv)
		if otOK && dtOK {
			merged[k] = Merge(ot, dt)
		}
		// Scalar or mismatched shapes: override wins untouched
	}

	return merged
}

// dependencyTables enumerates every dependency table location Cargo
// recognizes, including OS-conditional target tables.
var dependencyTables = []string{
	"dependencies",
	"dev-dependencies",
	"build-dependencies",
	"target.*.dependencies",
	"target.*.dev-dependencies",
	"target.*.build-dependencies",
}

// RewritePathDeps makes relative local-path dependency references absolute
// against root, so they stay resolvable after the manifest is staged into a
// scratch directory. References that already resolve inside workspaceRoot
// are left alone: the whole workspace is staged, so the relative path stays
// valid. Pass workspaceRoot == "" for standalone units. The tree is
// modified in place.
func RewritePathDeps(tree Tree, root, workspaceRoot string) {
	for _, query := range dependencyTables {
		for _, table := range queryTree(tree, strings.Split(query, ".")) {
			for _, spec := range table {
				st, ok := asTree(spec)
				if !ok {
					continue
				}

				rel, ok := st["path"].(string)
				if !ok {
					continue
				}

				abs := rel
				if !filepath.IsAbs(abs) {
					abs = filepath.Join(root, rel)
				}

				if workspaceRoot != "" && isWithin(workspaceRoot, abs) {
					continue
				}

				st["path"] = abs
			}
		}
	}
}

// queryTree walks a dot-separated key path through nested tables, with "*"
// matching every child. Returns all tables found at the path.
func queryTree(node Tree, keys []string) []Tree {
	if len(keys) == 0 {
		return []Tree{node}
	}

	key, rest := keys[0], keys[1:]

	if key == "*" {
		var out []Tree
		for _, child := range node {
			if ct, ok := asTree(child); ok {
				out = append(out, queryTree(ct, rest)...)
			}
		}

		return out
	}

	if ct, ok := asTree(node[key]); ok {
		return queryTree(ct, rest)
	}

	return nil
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func asTree(v any) (Tree, bool) {
	t, ok := v.(map[string]any)
	return t, ok
}

func clone(tree Tree) Tree {
	out := make(Tree, len(tree))
	for k, v := range tree {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return clone(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}

		return out
	default:
		return v
	}
}
