// Package plan turns match records into concrete byte-range edits and
// validates that the resulting batch can be applied without ambiguity.
// A plan is purely in-memory; nothing touches disk until the apply
// engine executes it.
package plan

import (
	"fmt"
	"regexp"
	"sort"

	"recast/internal/errors"
	"recast/internal/match"
)

// Edit replaces the half-open byte range [StartByte, EndByte) with
// Replacement. Offsets refer to the file content whose fingerprint is
// recorded on the enclosing FilePlan.
type Edit struct {
	StartByte   int    `json:"startByte"`
	EndByte     int    `json:"endByte"`
	Replacement string `json:"replacement"`
}

// FilePlan is the full set of edits for one file, pinned to the content
// the edits were computed against.
type FilePlan struct {
	Path        string `json:"path"`
	ContentHash string `json:"contentHash"`
	Edits       []Edit `json:"edits"`
}

// Batch is a multi-file plan. Files are sorted by path so lock
// acquisition and reporting are deterministic.
type Batch struct {
	Files []FilePlan `json:"files"`
}

// TotalEdits returns the number of edits across every file in the batch.
func (b *Batch) TotalEdits() int {
	n := 0
	for _, f := range b.Files {
		n += len(f.Edits)
	}
	return n
}

// Paths returns the sorted list of files the batch touches.
func (b *Batch) Paths() []string {
	out := make([]string, len(b.Files))
	for i, f := range b.Files {
		out[i] = f.Path
	}
	return out
}

var templateMetavar = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

// ExpandTemplate substitutes $NAME metavariables in a replacement
// template with the capture text from a single match. Every
// metavariable in the template must have been captured by the pattern.
func ExpandTemplate(template string, source []byte, rec match.MatchRecord) (string, error) {
	var expandErr error
	out := templateMetavar.ReplaceAllStringFunc(template, func(ref string) string {
		name := ref[1:]
		if name == "_" {
			expandErr = errors.New(errors.InputError,
				"replacement templates cannot reference the anonymous wildcard $_", nil)
			return ref
		}
		for _, c := range rec.Captures {
			if c.Name == name {
				return string(source[c.StartByte:c.EndByte])
			}
		}
		expandErr = errors.Newf(errors.InputError,
			"replacement references $%s which the pattern does not capture", name)
		return ref
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}

// ForRewrite builds the plan for one file from its match records and a
// replacement template. Each match becomes a single edit spanning the
// matched node.
func ForRewrite(path string, source []byte, records []match.MatchRecord, template string) (FilePlan, error) {
	edits := make([]Edit, 0, len(records))
	for _, rec := range records {
		repl, err := ExpandTemplate(template, source, rec)
		if err != nil {
			return FilePlan{}, err
		}
		edits = append(edits, Edit{
			StartByte:   rec.StartByte,
			EndByte:     rec.EndByte,
			Replacement: repl,
		})
	}
	return newFilePlan(path, source, edits)
}

// ForRename builds the plan for one file from resolved identifier
// occurrences. Every span must cover exactly oldName; anything else
// means the occurrence list is out of sync with the source.
func ForRename(path string, source []byte, occs []match.Occurrence, oldName, newName string) (FilePlan, error) {
	edits := make([]Edit, 0, len(occs))
	for _, o := range occs {
		if o.StartByte < 0 || o.EndByte > len(source) || string(source[o.StartByte:o.EndByte]) != oldName {
			return FilePlan{}, errors.Newf(errors.InternalError,
				"occurrence at byte %d in %s does not cover %q", o.StartByte, path, oldName)
		}
		edits = append(edits, Edit{
			StartByte:   o.StartByte,
			EndByte:     o.EndByte,
			Replacement: newName,
		})
	}
	return newFilePlan(path, source, edits)
}

func newFilePlan(path string, source []byte, edits []Edit) (FilePlan, error) {
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].StartByte != edits[j].StartByte {
			return edits[i].StartByte < edits[j].StartByte
		}
		return edits[i].EndByte < edits[j].EndByte
	})

	// Identical edits (same span, same replacement) collapse to one;
	// anything else that overlaps is a conflict the caller must resolve
	// by narrowing the pattern.
	deduped := edits[:0]
	for i, e := range edits {
		if i > 0 && e == edits[i-1] {
			continue
		}
		deduped = append(deduped, e)
	}
	edits = deduped

	for i := 1; i < len(edits); i++ {
		prev, cur := edits[i-1], edits[i]
		if cur.StartByte < prev.EndByte {
			return FilePlan{}, errors.New(errors.PlanConflict,
				fmt.Sprintf("overlapping edits in %s: [%d,%d) and [%d,%d)",
					path, prev.StartByte, prev.EndByte, cur.StartByte, cur.EndByte), nil)
		}
	}

	for _, e := range edits {
		if e.StartByte < 0 || e.EndByte > len(source) || e.StartByte > e.EndByte {
			return FilePlan{}, errors.Newf(errors.InternalError,
				"edit span [%d,%d) out of range for %s (%d bytes)",
				e.StartByte, e.EndByte, path, len(source))
		}
	}

	return FilePlan{
		Path:        path,
		ContentHash: match.Fingerprint(source),
		Edits:       edits,
	}, nil
}

// NewBatch assembles per-file plans into a batch, rejecting duplicate
// paths and dropping files with no edits.
func NewBatch(files []FilePlan) (*Batch, error) {
	kept := make([]FilePlan, 0, len(files))
	for _, f := range files {
		if len(f.Edits) > 0 {
			kept = append(kept, f)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Path < kept[j].Path })
	for i := 1; i < len(kept); i++ {
		if kept[i].Path == kept[i-1].Path {
			return nil, errors.Newf(errors.InternalError,
				"duplicate file plan for %s", kept[i].Path)
		}
	}
	return &Batch{Files: kept}, nil
}

// Render applies a file plan to its source and returns the edited
// content. Edits are applied right to left so earlier offsets stay
// valid.
func (f *FilePlan) Render(source []byte) []byte {
	out := make([]byte, len(source))
	copy(out, source)
	for i := len(f.Edits) - 1; i >= 0; i-- {
		e := f.Edits[i]
		out = append(out[:e.StartByte], append([]byte(e.Replacement), out[e.EndByte:]...)...)
	}
	return out
}
