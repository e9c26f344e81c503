package importable

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// buildOutputDir is cargo's output directory. It is never copied from the
// source tree (it can be huge) and never pruned from the scratch tree (it
// IS the compiler cache the scratch directory exists to preserve).
const buildOutputDir = "target"

// stageTree mirrors the tree at src into dst: files are copied (mode
// preserved), every written destination path is tracked, and afterwards any
// file in dst that was not written this pass is deleted, so deletions in
// the source tree do not accumulate stale files in the scratch directory.
func stageTree(src, dst string) error {
	written := map[string]bool{}

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if rel == buildOutputDir && d.IsDir() {
			return fs.SkipDir
		}

		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}

			written[target] = true

			return nil
		}

		if err := copyStagedFile(path, target); err != nil {
			return err
		}

		written[target] = true

		return nil
	})
	if err != nil {
		return err
	}

	return pruneUnwritten(dst, written)
}

// pruneUnwritten removes everything under dst that the current staging pass
// did not write, except the build output directory.
func pruneUnwritten(dst string, written map[string]bool) error {
	var stale []string

	err := filepath.WalkDir(dst, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == dst {
			return nil
		}

		rel, relErr := filepath.Rel(dst, path)
		if relErr != nil {
			return relErr
		}

		if rel == buildOutputDir && d.IsDir() {
			return fs.SkipDir
		}

		if !written[path] {
			stale = append(stale, path)
			if d.IsDir() {
				return fs.SkipDir
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	// Deepest first, so directories empty out before removal
	sort.Sort(sort.Reverse(sort.StringSlice(stale)))

	for _, path := range stale {
		if err := os.RemoveAll(path); err != nil {
			return err
		}
	}

	return nil
}

func copyStagedFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}

	return dstFile.Close()
}
