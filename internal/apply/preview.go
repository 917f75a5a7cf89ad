package apply

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"recast/internal/errors"
	"recast/internal/match"
	"recast/internal/plan"
)

// FilePreview is the dry-run rendering for one file.
type FilePreview struct {
	Path  string `json:"path"`
	Edits int    `json:"edits"`
	Diff  string `json:"diff"`
}

// Preview is the outcome of a dry run. No locks are taken and no
// session is created; the filesystem is read but never written.
type Preview struct {
	Files      []FilePreview `json:"files"`
	TotalEdits int           `json:"totalEdits"`
}

// DryRun renders a batch as unified diffs without touching any file.
// Staleness is still enforced so a preview never shows edits that
// could not actually apply.
func (e *Engine) DryRun(ctx context.Context, batch *plan.Batch) (*Preview, error) {
	preview := &Preview{TotalEdits: batch.TotalEdits()}
	for i := range batch.Files {
		f := &batch.Files[i]
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.InputError, "preview cancelled", err)
		}
		content, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, errors.Newf(errors.InputError, "cannot read %s: %v", f.Path, err)
		}
		if match.Fingerprint(content) != f.ContentHash {
			return nil, errors.Newf(errors.StaleMatch,
				"%s changed since it was matched; re-run the query", f.Path)
		}
		rendered, err := unifiedDiff(f.Path, content, f.Render(content))
		if err != nil {
			return nil, err
		}
		preview.Files = append(preview.Files, FilePreview{
			Path:  f.Path,
			Edits: len(f.Edits),
			Diff:  rendered,
		})
	}
	return preview, nil
}

// unifiedDiff builds a single-hunk unified diff between two versions of
// a file: shared leading and trailing lines are trimmed and everything
// between is emitted as removals followed by additions.
func unifiedDiff(path string, before, after []byte) (string, error) {
	if bytes.Equal(before, after) {
		return "", nil
	}
	oldLines := splitLines(before)
	newLines := splitLines(after)

	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	var body strings.Builder
	origCount := len(oldLines) - prefix - suffix
	newCount := len(newLines) - prefix - suffix
	for _, line := range oldLines[prefix : len(oldLines)-suffix] {
		body.WriteString("-" + line + "\n")
	}
	for _, line := range newLines[prefix : len(newLines)-suffix] {
		body.WriteString("+" + line + "\n")
	}

	fd := &godiff.FileDiff{
		OrigName: "a/" + path,
		NewName:  "b/" + path,
		Hunks: []*godiff.Hunk{{
			OrigStartLine: int32(prefix + 1),
			OrigLines:     int32(origCount),
			NewStartLine:  int32(prefix + 1),
			NewLines:      int32(newCount),
			Body:          []byte(strings.TrimSuffix(body.String(), "\n")),
		}},
	}
	out, err := godiff.PrintFileDiff(fd)
	if err != nil {
		return "", errors.New(errors.InternalError, fmt.Sprintf("failed to render diff for %s", path), err)
	}
	return string(out), nil
}

func splitLines(content []byte) []string {
	s := strings.TrimSuffix(string(content), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
