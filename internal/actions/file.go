package actions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"keyrunner/internal/registry"
)

func filePack(_ *Environment) []registry.Descriptor {
	pathParam := param("path", true, "file system path")
	return []registry.Descriptor{
		{
			Keyword:      "write_file",
			Category:     CategoryFile,
			Description:  "Write content to a file, creating parent directories; an overwritten file is restored on recovery",
			Params:       []registry.ParamSpec{pathParam, param("content", false, "file content"), param("mode", false, "octal permissions, default 0644")},
			Compensation: "delete_file",
			Handler:      writeFile,
		},
		{
			Keyword:     "read_file",
			Category:    CategoryFile,
			Description: "Return the content of a file",
			Params:      []registry.ParamSpec{pathParam},
			Handler:     readFile,
		},
		{
			Keyword:     "file_exists",
			Category:    CategoryFile,
			Description: "Check that a path exists",
			Params:      []registry.ParamSpec{pathParam},
			Handler:     fileExists,
		},
		{
			Keyword:      "make_dir",
			Category:     CategoryFile,
			Description:  "Create a directory and its parents",
			Params:       []registry.ParamSpec{pathParam},
			Compensation: "remove_dir",
			Handler:      makeDir,
		},
		{
			Keyword:     "delete_file",
			Category:    CategoryFile,
			Description: "Remove a file; a missing file is not an error",
			Params:      []registry.ParamSpec{pathParam},
			Handler:     deleteFile,
		},
		{
			Keyword:     "restore_file",
			Category:    CategoryFile,
			Description: "Write recorded content back to a file",
			Params:      []registry.ParamSpec{pathParam, param("content", false, "content to restore"), param("mode", false, "octal permissions, default 0644")},
			Handler:     restoreFile,
		},
		{
			Keyword:     "remove_dir",
			Category:    CategoryFile,
			Description: "Remove a directory tree",
			Params:      []registry.ParamSpec{pathParam},
			Handler:     removeDir,
		},
	}
}

func writeFile(_ context.Context, params map[string]any) (any, error) {
	path, err := requiredString(params, "path")
	if err != nil {
		return nil, err
	}
	content, err := stringParam(params, "content", false)
	if err != nil {
		return nil, err
	}
	mode, err := modeParam(params)
	if err != nil {
		return nil, err
	}

	// An overwritten file is compensated by putting its old content back.
	var restore *registry.Result
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}
		prior, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s before overwriting it: %w", path, err)
		}
		restore = &registry.Result{
			Compensation: "restore_file",
			Params: map[string]any{
				"content": string(prior),
				"mode":    fmt.Sprintf("%o", info.Mode().Perm()),
			},
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile keeps the permissions of an existing file.
	if err := os.Chmod(path, mode); err != nil {
		return nil, fmt.Errorf("failed to set mode of %s: %w", path, err)
	}
	if restore != nil {
		restore.Value = path
		return *restore, nil
	}
	return path, nil
}

// restoreFile writes content back to path with the recorded mode.
func restoreFile(_ context.Context, params map[string]any) (any, error) {
	path, err := requiredString(params, "path")
	if err != nil {
		return nil, err
	}
	content, err := stringParam(params, "content", false)
	if err != nil {
		return nil, err
	}
	mode, err := modeParam(params)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return nil, fmt.Errorf("failed to restore %s: %w", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return nil, fmt.Errorf("failed to set mode of %s: %w", path, err)
	}
	return true, nil
}

// modeParam reads the octal "mode" parameter, default 0644.
func modeParam(params map[string]any) (os.FileMode, error) {
	switch raw := params["mode"].(type) {
	case nil:
		return 0o644, nil
	case string:
		m, err := strconv.ParseUint(raw, 8, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid mode %q: %w", raw, err)
		}
		return os.FileMode(m), nil
	default:
		// YAML already decoded 0644 as an integer.
		m, err := intParam(params, "mode", 0o644)
		if err != nil {
			return 0, err
		}
		return os.FileMode(m), nil
	}
}

func readFile(_ context.Context, params map[string]any) (any, error) {
	path, err := requiredString(params, "path")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func fileExists(_ context.Context, params map[string]any) (any, error) {
	path, err := requiredString(params, "path")
	if err != nil {
		return nil, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return nil, err
	}
	return true, nil
}

// makeDir creates path and its missing parents. The compensation removes
// only the outermost directory this call created; an existing directory
// is left alone.
func makeDir(_ context.Context, params map[string]any) (any, error) {
	path, err := requiredString(params, "path")
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)

	created, err := firstMissing(path)
	if err != nil {
		return nil, err
	}
	if created == "" {
		return registry.Result{Value: path, Skip: true}, nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return registry.Result{Value: path, Params: map[string]any{"path": created}}, nil
}

// firstMissing returns the outermost ancestor of path (or path itself) that
// does not exist yet, or "" when path is already a directory.
func firstMissing(path string) (string, error) {
	missing := ""
	for dir := path; ; dir = filepath.Dir(dir) {
		info, err := os.Stat(dir)
		switch {
		case err == nil && info.IsDir():
			return missing, nil
		case err == nil:
			return "", fmt.Errorf("%s exists and is not a directory", dir)
		case !errors.Is(err, fs.ErrNotExist):
			return "", err
		}
		missing = dir
		if parent := filepath.Dir(dir); parent == dir {
			return missing, nil
		}
	}
}

func deleteFile(_ context.Context, params map[string]any) (any, error) {
	path, err := requiredString(params, "path")
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return true, nil
}

func removeDir(_ context.Context, params map[string]any) (any, error) {
	path, err := requiredString(params, "path")
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return true, nil
}
