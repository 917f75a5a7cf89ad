// Package rewrite orchestrates pattern rewrites across file sets: it
// resolves target paths, matches the pattern in every candidate file,
// plans the edits, and hands the batch to the apply engine. Both the
// CLI and the MCP tools drive rewrites through this package.
package rewrite

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"recast/internal/apply"
	"recast/internal/errors"
	"recast/internal/lang"
	"recast/internal/logging"
	"recast/internal/match"
	"recast/internal/paths"
	"recast/internal/plan"
)

// Request describes one rewrite run.
type Request struct {
	Language lang.Language
	Pattern  string
	Template string
	// Paths are files or glob patterns relative to Root; empty means
	// the whole workspace.
	Paths []string
	Root  string
	Label string
	// MaxFileSizeBytes skips larger files; zero means no limit.
	MaxFileSizeBytes int64
	Workers          int
}

// Stats describes what a rewrite saw before applying anything.
type Stats struct {
	FilesScanned int `json:"filesScanned"`
	FilesMatched int `json:"filesMatched"`
	MatchCount   int `json:"matchCount"`
}

// Result reports a completed (or empty) rewrite.
type Result struct {
	Stats
	SessionID    string `json:"sessionId,omitempty"`
	FilesChanged int    `json:"filesChanged"`
	EditsApplied int    `json:"editsApplied"`
}

// PreviewResult is the dry-run counterpart of Result.
type PreviewResult struct {
	Stats
	Preview *apply.Preview `json:"preview"`
}

// Rewriter runs rewrites against one apply engine.
type Rewriter struct {
	engine *apply.Engine
	logger *logging.Logger
}

// NewRewriter creates a rewriter.
func NewRewriter(engine *apply.Engine, logger *logging.Logger) *Rewriter {
	return &Rewriter{engine: engine, logger: logger}
}

// Run matches and applies. Zero matches is a successful no-op: no
// session is created and no file is touched.
func (r *Rewriter) Run(ctx context.Context, req Request) (*Result, error) {
	batch, stats, err := r.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &Result{Stats: *stats}
	if batch.TotalEdits() == 0 {
		return result, nil
	}

	res, err := r.engine.Apply(ctx, batch, "rewrite", labelOr(req.Label, req.Pattern))
	if err != nil {
		return nil, err
	}
	result.SessionID = res.SessionID
	result.FilesChanged = res.FilesChanged
	result.EditsApplied = res.EditsApplied
	return result, nil
}

// Preview matches and renders diffs without writing. Zero matches
// yields an empty preview and, as with Run, no session.
func (r *Rewriter) Preview(ctx context.Context, req Request) (*PreviewResult, error) {
	batch, stats, err := r.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &PreviewResult{Stats: *stats, Preview: &apply.Preview{}}
	if batch.TotalEdits() == 0 {
		return result, nil
	}
	preview, err := r.engine.DryRun(ctx, batch)
	if err != nil {
		return nil, err
	}
	result.Preview = preview
	return result, nil
}

// Plan resolves targets, matches the pattern in parallel, and builds
// the edit batch.
func (r *Rewriter) Plan(ctx context.Context, req Request) (*plan.Batch, *Stats, error) {
	if req.Pattern == "" || req.Template == "" {
		return nil, nil, errors.New(errors.InputError, "pattern and replacement are required", nil)
	}
	targets, err := r.resolveTargets(req)
	if err != nil {
		return nil, nil, err
	}

	stats := &Stats{FilesScanned: len(targets)}
	filePlans := make([]plan.FilePlan, len(targets))
	planned := make([]bool, len(targets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	workers := req.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, target := range targets {
		g.Go(func() error {
			source, err := os.ReadFile(target)
			if err != nil {
				return errors.Newf(errors.InputError, "cannot read %s: %v", target, err)
			}
			records, err := match.NewMatcher().Match(gctx, target, source, req.Language, req.Pattern)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return nil
			}
			fp, err := plan.ForRewrite(target, source, records, req.Template)
			if err != nil {
				return err
			}
			filePlans[i] = fp
			planned[i] = true
			mu.Lock()
			stats.FilesMatched++
			stats.MatchCount += len(records)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	kept := make([]plan.FilePlan, 0, len(filePlans))
	for i, fp := range filePlans {
		if planned[i] {
			kept = append(kept, fp)
		}
	}
	batch, err := plan.NewBatch(kept)
	if err != nil {
		return nil, nil, err
	}
	return batch, stats, nil
}

// resolveTargets expands the request's path patterns and keeps only
// files whose extension maps to the requested language, within the
// size limit.
func (r *Rewriter) resolveTargets(req Request) ([]string, error) {
	patterns := req.Paths
	if len(patterns) == 0 {
		patterns = []string{"**/*"}
	}
	resolved, err := paths.ResolveTargets(req.Root, patterns)
	if err != nil {
		return nil, errors.New(errors.InputError, "failed to resolve target paths", err)
	}

	var out []string
	for _, target := range resolved {
		l, ok := lang.FromExtension(filepath.Ext(target))
		if !ok || l != req.Language {
			continue
		}
		if req.MaxFileSizeBytes > 0 {
			info, err := os.Stat(target)
			if err != nil || info.Size() > req.MaxFileSizeBytes {
				continue
			}
		}
		out = append(out, target)
	}
	return out, nil
}

func labelOr(label, fallback string) string {
	if label != "" {
		return label
	}
	return fallback
}
