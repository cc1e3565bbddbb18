package build

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
)

// expandInputs replaces every directory in paths by the description files it contains,
// sorted by name. Files are kept in the given order.
func expandInputs(fs afero.Fs, paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		isDir, err := afero.IsDir(fs, p)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot access metadata input").
				WithContext("path", p).
				Build()
		}
		if !isDir {
			out = append(out, p)
			continue
		}
		entries, err := afero.ReadDir(fs, p)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot list metadata directory").
				WithContext("path", p).
				Build()
		}
		var files []string
		for _, e := range entries {
			if !e.IsDir() && isDescription(e.Name()) {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(files)
		out = append(out, files...)
	}
	return out, nil
}

func isDescription(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
