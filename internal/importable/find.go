package importable

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Find resolves a dotted logical name against the given search paths. Each
// candidate location is offered to every unit shape in registry order; the
// first match wins. When nothing matches, the returned *ResolveError
// carries the collected near-miss reasons.
func (r *Resolver) Find(fullName string, searchPaths []string, optIn bool) (Importable, error) {
	modulePath := strings.ReplaceAll(fullName, ".", string(filepath.Separator))

	for _, base := range searchPaths {
		if imp := r.TryCreate(filepath.Join(base, modulePath), fullName, optIn); imp != nil {
			return imp, nil
		}
	}

	return nil, &ResolveError{FullName: fullName, Reasons: r.NearMisses()}
}

// FindAll walks root recursively and returns every eligible build unit:
// crate directories (whose subtrees are then skipped, so member sources are
// not picked up twice) and annotated .rs files. Ineligible candidates are
// silently skipped; batch callers report them via NearMisses.
func (r *Resolver) FindAll(root string, optIn bool) ([]Importable, error) {
	var units []Importable

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if d.Name() == buildOutputDir {
				return fs.SkipDir
			}

			if path != root && isFile(filepath.Join(path, "Cargo.toml")) {
				if crate := r.tryCreateCrate(path, "", optIn); crate != nil {
					units = append(units, crate)
				}

				// Whether opted in or not, a crate's files belong to
				// the crate, not to the surrounding walk
				return fs.SkipDir
			}

			return nil
		}

		if strings.HasSuffix(d.Name(), ".rs") {
			if single := r.tryCreateSingleFile(path, "", optIn); single != nil {
				units = append(units, single)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return units, nil
}
