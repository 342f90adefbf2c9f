package casefile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"keyrunner/pkg/logging"
)

// LoadDirectory discovers and parses every *.yaml and *.yml file under root.
// A path naming a single file loads just that file.
//
// Files that fail to parse are logged and returned as LoadErrors; they never
// abort the batch. Cases are returned sorted by source path.
func LoadDirectory(root string) ([]*Case, []LoadError) {
	paths, err := FindFiles(root)
	if err != nil {
		return nil, []LoadError{{Path: root, Err: err}}
	}

	var cases []*Case
	var loadErrors []LoadError
	seen := make(map[string]string)

	for _, path := range paths {
		logging.Debug("CaseParser", "Loading case file: %s", path)

		c, err := ParseFile(path)
		if err != nil {
			logging.Warn("CaseParser", "Skipping case file %s: %v", path, err)
			loadErrors = append(loadErrors, LoadError{Path: path, Err: err})
			continue
		}
		if previous, dup := seen[c.ID]; dup {
			logging.Warn("CaseParser", "Case id %s in %s is also defined in %s", c.ID, path, previous)
		} else {
			seen[c.ID] = path
		}
		cases = append(cases, c)
	}

	logging.Info("CaseParser", "Loaded %d cases from %s (%d skipped)", len(cases), root, len(loadErrors))
	return cases, loadErrors
}

// FindFiles returns the case files under root sorted by path. A root naming
// a single file is returned as is, whatever its extension.
func FindFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("case path is not accessible: %w", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAMLFile(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", root, walkErr)
	}
	sort.Strings(paths)
	return paths, nil
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
