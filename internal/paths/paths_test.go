package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestCanonicalizeStable(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.py")
	writeFile(t, file, "x = 1\n")

	c1, err := Canonicalize(file)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	// A dotted spelling of the same path must canonicalize identically.
	c2, err := Canonicalize(filepath.Join(dir, ".", "a.py"))
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if c1 != c2 {
		t.Errorf("expected identical canonical paths, got %q and %q", c1, c2)
	}
}

func TestCanonicalizeMissingFile(t *testing.T) {
	dir := t.TempDir()
	// Should not error for files that don't exist yet.
	if _, err := Canonicalize(filepath.Join(dir, "missing.go")); err != nil {
		t.Errorf("Canonicalize on missing file failed: %v", err)
	}
}

func TestIsWithin(t *testing.T) {
	dir := t.TempDir()
	inside := filepath.Join(dir, "sub", "f.py")
	writeFile(t, inside, "x\n")

	if !IsWithin(inside, dir) {
		t.Error("expected inside path to be within root")
	}
	if IsWithin(filepath.Join(dir, "..", "escape.py"), dir) {
		t.Error("expected escaping path to be outside root")
	}
}

func TestResolveTargetsLiteral(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.py"), "x\n")

	files, err := ResolveTargets(dir, []string{"a.py"})
	if err != nil {
		t.Fatalf("ResolveTargets failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
}

func TestResolveTargetsGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.py"), "x\n")
	writeFile(t, filepath.Join(dir, "sub", "b.py"), "y\n")
	writeFile(t, filepath.Join(dir, "sub", "c.go"), "z\n")
	writeFile(t, filepath.Join(dir, "node_modules", "d.py"), "w\n")

	files, err := ResolveTargets(dir, []string{"**/*.py"})
	if err != nil {
		t.Fatalf("ResolveTargets failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(files), files)
	}
}

func TestResolveTargetsBaseNameGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sub", "b.py"), "y\n")

	files, err := ResolveTargets(dir, []string{"*.py"})
	if err != nil {
		t.Fatalf("ResolveTargets failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected base-name glob to match nested file, got %v", files)
	}
}

func TestResolveTargetsDedup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.py"), "x\n")

	files, err := ResolveTargets(dir, []string{"a.py", "*.py"})
	if err != nil {
		t.Fatalf("ResolveTargets failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected deduplication, got %v", files)
	}
}
