package rename

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recast/internal/apply"
	"recast/internal/backup"
	"recast/internal/errors"
	"recast/internal/logging"
)

func newCoordinator(t *testing.T) (*Coordinator, *backup.Manager) {
	t.Helper()
	backups, err := backup.Open(filepath.Join(t.TempDir(), "backups"), true, logging.Nop())
	if err != nil {
		t.Fatalf("backup.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = backups.Close() })
	return NewCoordinator(apply.NewEngine(backups, 2, logging.Nop()), logging.Nop()), backups
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenameLocalVariable(t *testing.T) {
	c, _ := newCoordinator(t)
	content := "total = 0\ntotal = total + 1\nprint(total)\n"
	path := writeSource(t, "a.py", content)

	out, err := c.Rename(context.Background(), Request{
		File:    path,
		Offset:  0, // first occurrence of total
		NewName: "running_sum",
	})
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if out.State != StateCommitted || out.SessionID == "" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.EditsApplied != 4 {
		t.Errorf("EditsApplied = %d, want 4", out.EditsApplied)
	}

	got, _ := os.ReadFile(path)
	want := "running_sum = 0\nrunning_sum = running_sum + 1\nprint(running_sum)\n"
	if string(got) != want {
		t.Errorf("renamed content = %q, want %q", got, want)
	}
}

func TestRenameLeavesShadowingBindingAlone(t *testing.T) {
	c, _ := newCoordinator(t)
	content := "x = 1\n\ndef f():\n    x = 2\n    return x\n\nprint(x)\n"
	path := writeSource(t, "a.py", content)

	// Rename the module-level x via its print(x) occurrence.
	offset := strings.LastIndex(content, "x")
	out, err := c.Rename(context.Background(), Request{
		File:    path,
		Offset:  offset,
		NewName: "count",
	})
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if out.State != StateCommitted {
		t.Fatalf("state = %s, conflicts = %+v", out.State, out.Conflicts)
	}

	got, _ := os.ReadFile(path)
	want := "count = 1\n\ndef f():\n    x = 2\n    return x\n\nprint(count)\n"
	if string(got) != want {
		t.Errorf("renamed content = %q, want %q", got, want)
	}
}

func TestRenameToSameNameIsIdempotent(t *testing.T) {
	c, _ := newCoordinator(t)
	content := "value = 1\nprint(value)\n"
	path := writeSource(t, "a.py", content)

	out, err := c.Rename(context.Background(), Request{File: path, Offset: 0, NewName: "value"})
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if out.State != StateCommitted || out.EditsApplied != 0 || out.SessionID != "" {
		t.Errorf("x -> x should commit with zero edits and no session: %+v", out)
	}

	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Errorf("file changed by no-op rename: %q", got)
	}
}

func TestRenameBlockedBySameScopeBinding(t *testing.T) {
	c, _ := newCoordinator(t)
	content := "old = 1\ntaken = 2\nprint(old)\n"
	path := writeSource(t, "a.py", content)

	out, err := c.Rename(context.Background(), Request{File: path, Offset: 0, NewName: "taken"})
	if err != nil {
		t.Fatalf("Rename returned error: %v", err)
	}
	if out.State != StateBlocked {
		t.Fatalf("state = %s, want blocked", out.State)
	}
	if len(out.Conflicts) != 1 || out.Conflicts[0].Kind != ConflictExistingBinding {
		t.Errorf("conflicts = %+v", out.Conflicts)
	}

	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Errorf("blocked rename modified the file: %q", got)
	}
}

func TestRenameBlockedByEnclosingBinding(t *testing.T) {
	c, _ := newCoordinator(t)
	content := "outer = 1\n\ndef f():\n    inner = 2\n    return inner + outer\n"
	path := writeSource(t, "a.py", content)

	offset := strings.Index(content, "inner")
	out, err := c.Rename(context.Background(), Request{File: path, Offset: offset, NewName: "outer"})
	if err != nil {
		t.Fatalf("Rename returned error: %v", err)
	}
	if out.State != StateBlocked {
		t.Fatalf("state = %s, want blocked", out.State)
	}
	if out.Conflicts[0].Kind != ConflictVisibleBinding {
		t.Errorf("conflict kind = %s, want %s", out.Conflicts[0].Kind, ConflictVisibleBinding)
	}
}

func TestRenameBlockedByInnerShadowCapture(t *testing.T) {
	c, _ := newCoordinator(t)
	// Renaming module-level target to "trap" would make the reference
	// inside f resolve to f's local trap instead.
	content := "target = 1\n\ndef f():\n    trap = 2\n    return target + trap\n"
	path := writeSource(t, "a.py", content)

	out, err := c.Rename(context.Background(), Request{File: path, Offset: 0, NewName: "trap"})
	if err != nil {
		t.Fatalf("Rename returned error: %v", err)
	}
	if out.State != StateBlocked {
		t.Fatalf("state = %s, want blocked (conflicts %+v)", out.State, out.Conflicts)
	}
	found := false
	for _, conflict := range out.Conflicts {
		if conflict.Kind == ConflictInnerShadow {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an inner-shadow conflict, got %+v", out.Conflicts)
	}
}

func TestRenameInvalidNewName(t *testing.T) {
	c, _ := newCoordinator(t)
	path := writeSource(t, "a.py", "v = 1\n")

	_, err := c.Rename(context.Background(), Request{File: path, Offset: 0, NewName: "not a name"})
	if !errors.Is(err, errors.InputError) {
		t.Errorf("expected INPUT_ERROR, got %v", err)
	}
}

func TestRenameOffsetNotOnSymbol(t *testing.T) {
	c, _ := newCoordinator(t)
	content := "v = 1\n"
	path := writeSource(t, "a.py", content)

	_, err := c.Rename(context.Background(), Request{File: path, Offset: 2, NewName: "w"})
	if !errors.Is(err, errors.InputError) {
		t.Errorf("expected INPUT_ERROR for offset on '=', got %v", err)
	}
}

func TestRenameAcrossFiles(t *testing.T) {
	c, _ := newCoordinator(t)
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.py")
	usePath := filepath.Join(dir, "use.py")
	if err := os.WriteFile(libPath, []byte("def helper():\n    return 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(usePath, []byte("from lib import helper\n\nresult = helper()\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := c.Rename(context.Background(), Request{
		File:              libPath,
		Offset:            4, // on "helper" in the def
		NewName:           "compute",
		Paths:             []string{libPath, usePath},
		IncludeUnresolved: true,
	})
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if out.State != StateCommitted {
		t.Fatalf("state = %s, conflicts = %+v", out.State, out.Conflicts)
	}
	if out.FilesChanged != 2 {
		t.Errorf("FilesChanged = %d, want 2", out.FilesChanged)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "unresolved") {
		t.Errorf("Warnings = %v, want one naming the unresolved occurrences", out.Warnings)
	}

	gotUse, _ := os.ReadFile(usePath)
	if !strings.Contains(string(gotUse), "compute()") || strings.Contains(string(gotUse), "helper") {
		t.Errorf("use.py not fully renamed: %q", gotUse)
	}
}

func TestPreviewDoesNotWrite(t *testing.T) {
	c, _ := newCoordinator(t)
	content := "v = 1\nprint(v)\n"
	path := writeSource(t, "a.py", content)

	out, err := c.Preview(context.Background(), Request{File: path, Offset: 0, NewName: "w"})
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if out.State != StateReady || out.Preview == nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.EditsApplied != 2 {
		t.Errorf("preview edits = %d, want 2", out.EditsApplied)
	}

	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Errorf("preview modified the file: %q", got)
	}
}

func TestRenameRestoresOriginalOnRollback(t *testing.T) {
	c, backups := newCoordinator(t)
	content := "v = 1\nprint(v)\n"
	path := writeSource(t, "a.py", content)

	out, err := c.Rename(context.Background(), Request{File: path, Offset: 0, NewName: "w"})
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if _, err := backups.Restore(out.SessionID); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Errorf("rolled-back content = %q, want %q", got, content)
	}
}

func TestRenameByNameAcrossFiles(t *testing.T) {
	c, _ := newCoordinator(t)
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.py")
	pathB := filepath.Join(dir, "b.py")
	if err := os.WriteFile(pathA, []byte("def helper(x):\n    return helper(x - 1)\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pathB, []byte("def helper(y):\n    return y\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := c.Rename(context.Background(), Request{
		OldName: "helper",
		NewName: "step",
		Paths:   []string{pathA, pathB},
	})
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if out.State != StateCommitted {
		t.Fatalf("state = %s, conflicts = %+v", out.State, out.Conflicts)
	}
	if out.FilesChanged != 2 || out.EditsApplied != 3 {
		t.Errorf("changed %d files / %d edits, want 2 / 3", out.FilesChanged, out.EditsApplied)
	}

	gotA, _ := os.ReadFile(pathA)
	if string(gotA) != "def step(x):\n    return step(x - 1)\n" {
		t.Errorf("a.py = %q", gotA)
	}
	gotB, _ := os.ReadFile(pathB)
	if string(gotB) != "def step(y):\n    return y\n" {
		t.Errorf("b.py = %q", gotB)
	}
}

func TestRenameByNameBlockedByConflictInOneFile(t *testing.T) {
	c, _ := newCoordinator(t)
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.py")
	pathB := filepath.Join(dir, "b.py")
	if err := os.WriteFile(pathA, []byte("count = 0\nprint(count)\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// b.py already binds the new name next to its own count.
	if err := os.WriteFile(pathB, []byte("count = 0\ntotal = 1\nprint(count + total)\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := c.Rename(context.Background(), Request{
		OldName: "count",
		NewName: "total",
		Paths:   []string{pathA, pathB},
	})
	if err != nil {
		t.Fatalf("Rename returned error: %v", err)
	}
	if out.State != StateBlocked || len(out.Conflicts) == 0 {
		t.Fatalf("state = %s, conflicts = %+v", out.State, out.Conflicts)
	}

	// Nothing was written, in either file.
	gotA, _ := os.ReadFile(pathA)
	if string(gotA) != "count = 0\nprint(count)\n" {
		t.Errorf("a.py changed: %q", gotA)
	}
}

func TestRenameByNameNeedsPathsAndOccurrences(t *testing.T) {
	c, _ := newCoordinator(t)

	_, err := c.Rename(context.Background(), Request{OldName: "x", NewName: "y"})
	if errors.CodeOf(err) != errors.InputError {
		t.Errorf("no paths: code = %v, want INPUT_ERROR", errors.CodeOf(err))
	}

	path := writeSource(t, "a.py", "total = 1\n")
	_, err = c.Rename(context.Background(), Request{
		OldName: "missing",
		NewName: "y",
		Paths:   []string{path},
	})
	if errors.CodeOf(err) != errors.InputError {
		t.Errorf("no occurrences: code = %v, want INPUT_ERROR", errors.CodeOf(err))
	}
}

func TestRenameByNameWarnsOnUnresolvedInclusion(t *testing.T) {
	c, _ := newCoordinator(t)
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.py")
	usePath := filepath.Join(dir, "use.py")
	if err := os.WriteFile(libPath, []byte("def helper():\n    return 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(usePath, []byte("from lib import helper\n\nresult = helper()\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := c.Rename(context.Background(), Request{
		OldName:           "helper",
		NewName:           "compute",
		Paths:             []string{libPath, usePath},
		IncludeUnresolved: true,
	})
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if out.State != StateCommitted {
		t.Fatalf("state = %s, conflicts = %+v", out.State, out.Conflicts)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "use.py") {
		t.Errorf("Warnings = %v, want one naming use.py", out.Warnings)
	}

	gotUse, _ := os.ReadFile(usePath)
	if strings.Contains(string(gotUse), "helper") {
		t.Errorf("use.py not fully renamed: %q", gotUse)
	}
}
