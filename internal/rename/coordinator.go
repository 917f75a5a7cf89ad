// Package rename coordinates scope-aware symbol renames: it collects
// every occurrence bound to the target declaration, checks that the new
// name cannot collide with or capture an existing binding, and hands a
// validated plan to the apply engine. A rename that would change what
// any name in the file refers to is blocked, never silently applied.
package rename

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"recast/internal/apply"
	"recast/internal/errors"
	"recast/internal/lang"
	"recast/internal/logging"
	"recast/internal/match"
	"recast/internal/plan"
	"recast/internal/scope"
)

// State is the coordinator's progress through a rename.
type State string

const (
	StateCollecting       State = "collecting"
	StateClassifying      State = "classifying"
	StateConflictChecking State = "conflict-checking"
	StateBlocked          State = "blocked"
	StateReady            State = "ready"
	StateApplying         State = "applying"
	StateCommitted        State = "committed"
	StateRolledBack       State = "rolled-back"
)

// Conflict describes one reason a rename cannot proceed.
type Conflict struct {
	Kind      string `json:"kind"`
	File      string `json:"file"`
	StartByte int    `json:"startByte"`
	EndByte   int    `json:"endByte"`
	Message   string `json:"message"`
}

// Conflict kinds.
const (
	ConflictExistingBinding = "existing-binding"
	ConflictVisibleBinding  = "visible-binding"
	ConflictInnerShadow     = "inner-shadow-capture"
)

// Request describes a rename. The target symbol is identified either
// precisely, by a byte offset onto one of its occurrences in File, or
// by OldName, in which case every binding of that name in Paths is
// renamed. Paths also lists the additional files considered when a
// module-scoped target's unresolved references are included.
type Request struct {
	File              string
	Offset            int
	OldName           string
	NewName           string
	Paths             []string
	IncludeUnresolved bool
	Label             string
}

// byName reports whether the request targets a name rather than an
// anchored occurrence.
func (r Request) byName() bool {
	return r.File == "" && r.OldName != ""
}

// Outcome reports where the rename ended up. Conflicts is populated
// only in the blocked state; SessionID only after a committed apply.
type Outcome struct {
	State        State          `json:"state"`
	OldName      string         `json:"oldName"`
	NewName      string         `json:"newName"`
	SessionID    string         `json:"sessionId,omitempty"`
	FilesChanged int            `json:"filesChanged"`
	EditsApplied int            `json:"editsApplied"`
	Conflicts    []Conflict     `json:"conflicts,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
	Preview      *apply.Preview `json:"preview,omitempty"`
}

// Coordinator runs renames against one apply engine.
type Coordinator struct {
	engine *apply.Engine
	logger *logging.Logger
}

// NewCoordinator creates a rename coordinator.
func NewCoordinator(engine *apply.Engine, logger *logging.Logger) *Coordinator {
	return &Coordinator{engine: engine, logger: logger}
}

// Rename executes the full state machine and applies the edits.
func (c *Coordinator) Rename(ctx context.Context, req Request) (*Outcome, error) {
	outcome, batch, err := c.prepare(ctx, req)
	if err != nil || outcome.State != StateReady {
		return outcome, err
	}

	outcome.State = StateApplying
	res, err := c.engine.Apply(ctx, batch, "rename",
		labelOr(req.Label, fmt.Sprintf("rename %s -> %s", outcome.OldName, req.NewName)))
	if err != nil {
		if errors.Is(err, errors.PartialApplyRecovered) {
			outcome.State = StateRolledBack
		}
		return outcome, err
	}
	outcome.State = StateCommitted
	outcome.SessionID = res.SessionID
	outcome.FilesChanged = res.FilesChanged
	outcome.EditsApplied = res.EditsApplied
	c.logger.Info("rename committed", map[string]interface{}{
		"session": res.SessionID,
		"from":    outcome.OldName,
		"to":      req.NewName,
		"edits":   res.EditsApplied,
	})
	return outcome, nil
}

// Preview runs the state machine up to the plan and renders a dry run
// instead of applying. No session is created.
func (c *Coordinator) Preview(ctx context.Context, req Request) (*Outcome, error) {
	outcome, batch, err := c.prepare(ctx, req)
	if err != nil || outcome.State != StateReady {
		return outcome, err
	}
	preview, err := c.engine.DryRun(ctx, batch)
	if err != nil {
		return outcome, err
	}
	outcome.Preview = preview
	outcome.FilesChanged = len(preview.Files)
	outcome.EditsApplied = preview.TotalEdits
	return outcome, nil
}

// prepare runs collecting, classifying and conflict checking, and
// builds the edit batch for a rename that came out ready.
func (c *Coordinator) prepare(ctx context.Context, req Request) (*Outcome, *plan.Batch, error) {
	outcome := &Outcome{State: StateCollecting, NewName: req.NewName}

	if !lang.IsIdentifier(req.NewName) {
		return outcome, nil, errors.Newf(errors.InputError, "not a valid identifier: %q", req.NewName)
	}
	if req.byName() {
		return c.prepareByName(ctx, req, outcome)
	}
	language, ok := lang.FromExtension(filepath.Ext(req.File))
	if !ok {
		return outcome, nil, errors.Newf(errors.InputError, "unsupported file type: %s", req.File)
	}

	source, err := os.ReadFile(req.File)
	if err != nil {
		return outcome, nil, errors.Newf(errors.InputError, "cannot read %s: %v", req.File, err)
	}
	tree, err := scope.Build(ctx, source, language)
	if err != nil {
		return outcome, nil, err
	}

	declIdx := tree.DeclAt(req.Offset)
	if declIdx < 0 {
		return outcome, nil, errors.Newf(errors.InputError,
			"no resolvable symbol at byte %d in %s", req.Offset, req.File)
	}
	decl := tree.Decls[declIdx]
	outcome.OldName = decl.Name

	// Renaming a symbol to itself is complete by definition.
	if decl.Name == req.NewName {
		outcome.State = StateCommitted
		return outcome, nil, nil
	}

	outcome.State = StateClassifying
	occs := tree.OccurrencesOf(declIdx)
	if len(occs) == 0 {
		return outcome, nil, errors.Newf(errors.InternalError,
			"declaration of %s has no recorded occurrences", decl.Name)
	}

	outcome.State = StateConflictChecking
	conflicts := checkConflicts(tree, declIdx, req.NewName, req.File)

	// Module-scoped symbols may be referenced from other files, where
	// they appear as unresolved names.
	type extraFile struct {
		path   string
		source []byte
		spans  []scope.Span
	}
	var extras []extraFile
	if decl.Scope == 0 && req.IncludeUnresolved {
		for _, path := range req.Paths {
			if samePath(path, req.File) {
				continue
			}
			extraLang, ok := lang.FromExtension(filepath.Ext(path))
			if !ok || extraLang != language {
				continue
			}
			extraSource, err := os.ReadFile(path)
			if err != nil {
				return outcome, nil, errors.Newf(errors.InputError, "cannot read %s: %v", path, err)
			}
			extraTree, err := scope.Build(ctx, extraSource, language)
			if err != nil {
				return outcome, nil, err
			}
			spans := extraTree.Unresolved(decl.Name)
			if len(spans) == 0 {
				continue
			}
			conflicts = append(conflicts, checkCaptureAtSpans(extraTree, spans, req.NewName, path)...)
			extras = append(extras, extraFile{path: path, source: extraSource, spans: spans})
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf(
				"including %d unresolved occurrence(s) of %q in %s; they were not resolved to a declaration",
				len(spans), decl.Name, path))
		}
	}

	if len(conflicts) > 0 {
		outcome.State = StateBlocked
		outcome.Conflicts = conflicts
		return outcome, nil, nil
	}

	filePlans := make([]plan.FilePlan, 0, 1+len(extras))
	fp, err := plan.ForRename(req.File, source, toOccurrences(occs), decl.Name, req.NewName)
	if err != nil {
		return outcome, nil, err
	}
	filePlans = append(filePlans, fp)
	for _, ex := range extras {
		fp, err := plan.ForRename(ex.path, ex.source, toOccurrences(ex.spans), decl.Name, req.NewName)
		if err != nil {
			return outcome, nil, err
		}
		filePlans = append(filePlans, fp)
	}
	batch, err := plan.NewBatch(filePlans)
	if err != nil {
		return outcome, nil, err
	}

	outcome.State = StateReady
	return outcome, batch, nil
}

// prepareByName renames every binding of OldName across the listed
// files. Each file contributes the occurrences of its own declarations
// of the name; unresolved references join only when requested.
func (c *Coordinator) prepareByName(ctx context.Context, req Request, outcome *Outcome) (*Outcome, *plan.Batch, error) {
	outcome.OldName = req.OldName
	if !lang.IsIdentifier(req.OldName) {
		return outcome, nil, errors.Newf(errors.InputError, "not a valid identifier: %q", req.OldName)
	}
	if len(req.Paths) == 0 {
		return outcome, nil, errors.New(errors.InputError, "a name-targeted rename needs target paths", nil)
	}
	if req.OldName == req.NewName {
		outcome.State = StateCommitted
		return outcome, nil, nil
	}

	outcome.State = StateClassifying
	var conflicts []Conflict
	var filePlans []plan.FilePlan
	for _, path := range req.Paths {
		language, ok := lang.FromExtension(filepath.Ext(path))
		if !ok {
			continue
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return outcome, nil, errors.Newf(errors.InputError, "cannot read %s: %v", path, err)
		}
		tree, err := scope.Build(ctx, source, language)
		if err != nil {
			return outcome, nil, err
		}

		var spans []scope.Span
		for di := range tree.Decls {
			if tree.Decls[di].Name != req.OldName {
				continue
			}
			conflicts = append(conflicts, checkConflicts(tree, di, req.NewName, path)...)
			spans = append(spans, tree.OccurrencesOf(di)...)
		}
		if req.IncludeUnresolved {
			unresolved := tree.Unresolved(req.OldName)
			if len(unresolved) > 0 {
				conflicts = append(conflicts, checkCaptureAtSpans(tree, unresolved, req.NewName, path)...)
				spans = append(spans, unresolved...)
				outcome.Warnings = append(outcome.Warnings, fmt.Sprintf(
					"including %d unresolved occurrence(s) of %q in %s; they were not resolved to a declaration",
					len(unresolved), req.OldName, path))
			}
		}
		if len(spans) == 0 {
			continue
		}
		fp, err := plan.ForRename(path, source, toOccurrences(spans), req.OldName, req.NewName)
		if err != nil {
			return outcome, nil, err
		}
		filePlans = append(filePlans, fp)
	}

	outcome.State = StateConflictChecking
	if len(conflicts) > 0 {
		outcome.State = StateBlocked
		outcome.Conflicts = conflicts
		return outcome, nil, nil
	}
	if len(filePlans) == 0 {
		return outcome, nil, errors.Newf(errors.InputError,
			"no occurrences of %q in the target files", req.OldName)
	}
	batch, err := plan.NewBatch(filePlans)
	if err != nil {
		return outcome, nil, err
	}

	outcome.State = StateReady
	return outcome, batch, nil
}

// checkConflicts finds every way newName could collide in the file the
// declaration lives in. All conflicts are reported, not just the first.
func checkConflicts(tree *scope.Tree, declIdx int, newName, file string) []Conflict {
	var out []Conflict
	decl := tree.Decls[declIdx]

	// The target scope, or any scope the declaration is visible from,
	// already binding newName means the rename collides outright.
	if existing, ok := tree.VisibleFrom(newName, decl.Scope); ok {
		kind := ConflictVisibleBinding
		msg := fmt.Sprintf("%q is already bound in an enclosing scope; renaming would shadow it", newName)
		if tree.Decls[existing].Scope == decl.Scope {
			kind = ConflictExistingBinding
			msg = fmt.Sprintf("%q is already declared in the same scope", newName)
		}
		ex := tree.Decls[existing]
		out = append(out, Conflict{
			Kind: kind, File: file,
			StartByte: ex.StartByte, EndByte: ex.EndByte,
			Message: msg,
		})
	}

	// An inner scope declaring newName captures any occurrence of the
	// renamed symbol inside it.
	inner := map[int]bool{}
	for _, si := range tree.Subtree(decl.Scope) {
		if si == decl.Scope {
			continue
		}
		for _, di := range tree.Nodes[si].Decls {
			if tree.Decls[di].Name == newName {
				inner[si] = true
			}
		}
	}
	if len(inner) > 0 {
		for _, r := range tree.Refs {
			if r.Decl != declIdx {
				continue
			}
			if scopeWithin(tree, r.Scope, inner) {
				out = append(out, Conflict{
					Kind: ConflictInnerShadow, File: file,
					StartByte: r.StartByte, EndByte: r.EndByte,
					Message: fmt.Sprintf("occurrence would be captured by an inner declaration of %q", newName),
				})
			}
		}
	}
	return out
}

// checkCaptureAtSpans guards cross-file occurrences: an unresolved
// reference being renamed must not land inside a scope that binds
// newName locally.
func checkCaptureAtSpans(tree *scope.Tree, spans []scope.Span, newName, file string) []Conflict {
	var out []Conflict
	for _, r := range tree.Refs {
		if !spanListed(spans, r.StartByte, r.EndByte) {
			continue
		}
		if _, ok := tree.VisibleFrom(newName, r.Scope); ok {
			out = append(out, Conflict{
				Kind: ConflictInnerShadow, File: file,
				StartByte: r.StartByte, EndByte: r.EndByte,
				Message: fmt.Sprintf("occurrence would be captured by a local binding of %q", newName),
			})
		}
	}
	return out
}

// scopeWithin reports whether scopeIdx or any enclosing scope up to
// (not past) the shadowing set is one of the marked scopes.
func scopeWithin(tree *scope.Tree, scopeIdx int, marked map[int]bool) bool {
	for scopeIdx >= 0 {
		if marked[scopeIdx] {
			return true
		}
		scopeIdx = tree.Nodes[scopeIdx].Parent
	}
	return false
}

func spanListed(spans []scope.Span, start, end int) bool {
	for _, s := range spans {
		if s.StartByte == start && s.EndByte == end {
			return true
		}
	}
	return false
}

func toOccurrences(spans []scope.Span) []match.Occurrence {
	out := make([]match.Occurrence, len(spans))
	for i, s := range spans {
		out[i] = match.Occurrence{StartByte: s.StartByte, EndByte: s.EndByte}
	}
	return out
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return aa == bb
}

func labelOr(label, fallback string) string {
	if label != "" {
		return label
	}
	return fallback
}
