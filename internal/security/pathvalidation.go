// Package security holds filesystem path validation for handlers that write
// or serve files next to the database, such as the backup download.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory reports an error unless path stays inside dir
// after resolving relative components and symlinks. The path itself may not
// exist yet; its nearest existing ancestor is resolved instead, so a symlink
// planted inside dir cannot redirect a write elsewhere.
func ValidatePathWithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}

	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, canonicalize(absPath))
	if err != nil {
		return fmt.Errorf("path outside directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %q escapes %q", path, dir)
	}
	return nil
}

// canonicalize resolves symlinks in abs. When abs does not exist yet, the
// nearest existing ancestor is resolved and the remaining components are
// reattached.
func canonicalize(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	for parent := filepath.Dir(abs); ; parent = filepath.Dir(parent) {
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, err := filepath.Rel(parent, abs)
			if err != nil {
				return abs
			}
			return filepath.Join(resolved, rel)
		}
		if parent == filepath.Dir(parent) {
			return abs
		}
	}
}
