package rewrite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"recast/internal/apply"
	"recast/internal/backup"
	"recast/internal/lang"
	"recast/internal/logging"
	"recast/internal/match"
)

func newRewriter(t *testing.T) (*Rewriter, *backup.Manager) {
	t.Helper()
	backups, err := backup.Open(filepath.Join(t.TempDir(), "backups"), true, logging.Nop())
	if err != nil {
		t.Fatalf("backup.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = backups.Close() })
	engine := apply.NewEngine(backups, 2, logging.Nop())
	return NewRewriter(engine, logging.Nop()), backups
}

func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func readBack(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRunRewritesMatchingFiles(t *testing.T) {
	r, _ := newRewriter(t)
	root := writeWorkspace(t, map[string]string{
		"a.py": "print(user)\nprint(count)\n",
		"b.py": "total = count + 1\n",
	})

	res, err := r.Run(context.Background(), Request{
		Language: lang.LangPython,
		Pattern:  "print($X)",
		Template: "log.info($X)",
		Root:     root,
		Workers:  2,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", res.FilesScanned)
	}
	if res.FilesMatched != 1 || res.MatchCount != 2 {
		t.Errorf("matched = %d files / %d matches, want 1 / 2", res.FilesMatched, res.MatchCount)
	}
	if res.SessionID == "" {
		t.Error("expected a session id")
	}
	if res.EditsApplied != 2 || res.FilesChanged != 1 {
		t.Errorf("applied = %d edits / %d files, want 2 / 1", res.EditsApplied, res.FilesChanged)
	}
	if got := readBack(t, root, "a.py"); got != "log.info(user)\nlog.info(count)\n" {
		t.Errorf("a.py = %q", got)
	}
	if got := readBack(t, root, "b.py"); got != "total = count + 1\n" {
		t.Errorf("b.py changed: %q", got)
	}
}

func TestRunZeroMatchesCreatesNoSession(t *testing.T) {
	r, backups := newRewriter(t)
	root := writeWorkspace(t, map[string]string{
		"a.py": "total = count + 1\n",
	})

	res, err := r.Run(context.Background(), Request{
		Language: lang.LangPython,
		Pattern:  "print($X)",
		Template: "log.info($X)",
		Root:     root,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.MatchCount != 0 || res.SessionID != "" {
		t.Errorf("expected empty result, got %+v", res)
	}
	sessions, err := backups.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("zero-match run recorded %d sessions", len(sessions))
	}
}

func TestRunFiltersByLanguageExtension(t *testing.T) {
	r, _ := newRewriter(t)
	root := writeWorkspace(t, map[string]string{
		"a.py": "print(user)\n",
		"b.go": "package b\n",
		"note": "print(user)\n",
	})

	res, err := r.Run(context.Background(), Request{
		Language: lang.LangPython,
		Pattern:  "print($X)",
		Template: "log.info($X)",
		Root:     root,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1 (only .py files)", res.FilesScanned)
	}
	if got := readBack(t, root, "b.go"); got != "package b\n" {
		t.Errorf("b.go changed: %q", got)
	}
	if got := readBack(t, root, "note"); got != "print(user)\n" {
		t.Errorf("extensionless file changed: %q", got)
	}
}

func TestRunSkipsOversizeFiles(t *testing.T) {
	r, _ := newRewriter(t)
	root := writeWorkspace(t, map[string]string{
		"small.py": "print(a)\n",
		"big.py":   "print(b)\n# padding padding padding padding\n",
	})

	res, err := r.Run(context.Background(), Request{
		Language:         lang.LangPython,
		Pattern:          "print($X)",
		Template:         "log.info($X)",
		Root:             root,
		MaxFileSizeBytes: 16,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.FilesScanned != 1 || res.FilesMatched != 1 {
		t.Errorf("scanned = %d, matched = %d, want 1 / 1", res.FilesScanned, res.FilesMatched)
	}
	if got := readBack(t, root, "big.py"); got != "print(b)\n# padding padding padding padding\n" {
		t.Errorf("oversize file changed: %q", got)
	}
}

func TestRunRespectsExplicitPaths(t *testing.T) {
	r, _ := newRewriter(t)
	root := writeWorkspace(t, map[string]string{
		"src/a.py":   "print(a)\n",
		"tools/b.py": "print(b)\n",
	})

	res, err := r.Run(context.Background(), Request{
		Language: lang.LangPython,
		Pattern:  "print($X)",
		Template: "log.info($X)",
		Paths:    []string{"src/*.py"},
		Root:     root,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.FilesChanged != 1 {
		t.Errorf("FilesChanged = %d, want 1", res.FilesChanged)
	}
	if got := readBack(t, root, "tools/b.py"); got != "print(b)\n" {
		t.Errorf("file outside the path filter changed: %q", got)
	}
}

func TestPreviewRendersDiffsWithoutWriting(t *testing.T) {
	r, backups := newRewriter(t)
	root := writeWorkspace(t, map[string]string{
		"a.py": "print(user)\n",
	})

	res, err := r.Preview(context.Background(), Request{
		Language: lang.LangPython,
		Pattern:  "print($X)",
		Template: "log.info($X)",
		Root:     root,
	})
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if res.MatchCount != 1 || len(res.Preview.Files) != 1 {
		t.Fatalf("preview = %+v", res)
	}
	if res.Preview.Files[0].Diff == "" {
		t.Error("expected a rendered diff")
	}
	if got := readBack(t, root, "a.py"); got != "print(user)\n" {
		t.Errorf("preview wrote to disk: %q", got)
	}
	sessions, err := backups.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("preview recorded %d sessions", len(sessions))
	}
}

func TestPlanRequiresPatternAndTemplate(t *testing.T) {
	r, _ := newRewriter(t)
	_, _, err := r.Plan(context.Background(), Request{Language: lang.LangPython, Root: t.TempDir()})
	if err == nil {
		t.Fatal("expected an error for a request without pattern/replacement")
	}
}

func TestRunRulesEachRuleOwnSession(t *testing.T) {
	r, backups := newRewriter(t)
	root := writeWorkspace(t, map[string]string{
		"a.py": "print(user)\nassert_equals(a, b)\n",
	})

	rules, err := match.ParseRules([]byte(`id: no-print
language: python
pattern: print($X)
fix: log.info($X)
---
id: modern-assert
language: python
pattern: assert_equals($A, $B)
fix: "assert $A == $B"
message: use plain assert
`))
	if err != nil {
		t.Fatalf("ParseRules failed: %v", err)
	}

	results, err := r.RunRules(context.Background(), rules, Request{Root: root})
	if err != nil {
		t.Fatalf("RunRules failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].RuleID != "no-print" || results[1].RuleID != "modern-assert" {
		t.Errorf("rule order: %s, %s", results[0].RuleID, results[1].RuleID)
	}
	if results[0].SessionID == "" || results[1].SessionID == "" {
		t.Error("each matching rule should commit its own session")
	}
	if results[0].SessionID == results[1].SessionID {
		t.Error("rules shared a session")
	}
	if results[1].Message != "use plain assert" {
		t.Errorf("Message = %q", results[1].Message)
	}
	if got := readBack(t, root, "a.py"); got != "log.info(user)\nassert a == b\n" {
		t.Errorf("a.py = %q", got)
	}

	sessions, err := backups.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Errorf("recorded %d sessions, want 2", len(sessions))
	}
}
