package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFiles reads .rego files and directories of them into a Guard.
// Directories are walked recursively; other file extensions are skipped.
func LoadFiles(ctx context.Context, paths []string, opts ...Option) (*Guard, error) {
	modules := make(map[string]string)

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("policy path %s: %w", p, err)
		}

		if !info.IsDir() {
			if err := readModule(p, modules); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".rego") {
				return nil
			}
			return readModule(path, modules)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk policy directory %s: %w", p, err)
		}
	}

	if len(modules) == 0 {
		return nil, fmt.Errorf("no .rego files found in %v", paths)
	}
	return NewGuard(ctx, modules, opts...)
}

func readModule(path string, modules map[string]string) error {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	modules[filepath.ToSlash(filepath.Clean(path))] = string(content)
	return nil
}
