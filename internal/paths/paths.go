// Package paths provides canonical path handling and target file resolution.
package paths

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skipDirs are directory names never descended into when resolving globs.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".git":         true,
	".recast":      true,
}

// Canonicalize converts a path to an absolute, symlink-resolved path with
// forward slashes. Canonical paths key the apply engine's lock table, so two
// spellings of the same file must canonicalize identically.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The file may not exist yet (e.g. restore target); fall back to
		// the absolute path.
		if os.IsNotExist(err) {
			resolved = abs
		} else {
			return "", err
		}
	}

	return filepath.ToSlash(resolved), nil
}

// IsWithin checks if a path is within the given root directory.
func IsWithin(path string, root string) bool {
	canonical, err := Canonicalize(path)
	if err != nil {
		return false
	}
	canonicalRoot, err := Canonicalize(root)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(canonicalRoot, filepath.FromSlash(canonical))
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(filepath.ToSlash(rel), "..")
}

// ResolveTargets expands a list of paths and glob patterns into a sorted,
// deduplicated list of regular files. Patterns containing "**" are matched
// against the full slash-separated path relative to root; plain globs use
// filepath.Match semantics on the base name within root.
func ResolveTargets(root string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	add := func(p string) {
		canonical, err := Canonicalize(p)
		if err != nil || seen[canonical] {
			return
		}
		seen[canonical] = true
		out = append(out, canonical)
	}

	for _, pattern := range patterns {
		// Literal file path
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, pattern)
		}
		if info, err := os.Stat(full); err == nil && info.Mode().IsRegular() {
			add(full)
			continue
		}

		// Glob: walk the root and match each file
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, not fatal
			}
			if d.IsDir() {
				if skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			if matchPattern(pattern, filepath.ToSlash(rel)) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(out)
	return out, nil
}

// matchPattern matches a glob pattern against a slash-separated relative
// path. "**/" prefixes match any number of leading directories.
func matchPattern(pattern, rel string) bool {
	pattern = filepath.ToSlash(pattern)

	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		// Try the suffix against every trailing segment combination.
		segments := strings.Split(rel, "/")
		for i := range segments {
			candidate := strings.Join(segments[i:], "/")
			if ok, _ := filepath.Match(suffix, candidate); ok {
				return true
			}
		}
		return false
	}

	if ok, _ := filepath.Match(pattern, rel); ok {
		return true
	}
	// Also allow matching just the base name for convenience ("*.py").
	if !strings.Contains(pattern, "/") {
		if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}
