// Package apply executes edit batches against the filesystem with
// snapshot-first ordering: every file is backed up and every file's
// content is re-verified against the plan before the first byte is
// written. A failure mid-batch restores the files already written.
package apply

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"recast/internal/backup"
	"recast/internal/errors"
	"recast/internal/logging"
	"recast/internal/match"
	"recast/internal/plan"
)

// Result reports a completed apply.
type Result struct {
	SessionID    string `json:"sessionId"`
	FilesChanged int    `json:"filesChanged"`
	EditsApplied int    `json:"editsApplied"`
}

// Engine applies plan batches. One engine serializes writes per path
// across concurrent callers via its lock table.
type Engine struct {
	backups *backup.Manager
	locks   *pathLocks
	logger  *logging.Logger
	workers int

	// writeFile is swapped out by tests to inject write failures.
	writeFile func(path string, content []byte) error
}

// NewEngine creates an apply engine backed by the given snapshot store.
// workers bounds read-phase parallelism; values below 1 mean serial.
func NewEngine(backups *backup.Manager, workers int, logger *logging.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		backups:   backups,
		locks:     newPathLocks(),
		logger:    logger,
		workers:   workers,
		writeFile: func(path string, content []byte) error { return atomicWrite(path, content) },
	}
}

// Apply executes a batch. Ordering is strict: lock, read and verify
// every file, snapshot every file, then write. Any error before the
// write phase leaves the filesystem untouched; an error during the
// write phase restores the files already written and reports
// PARTIAL_APPLY_RECOVERED.
func (e *Engine) Apply(ctx context.Context, batch *plan.Batch, operation, label string) (*Result, error) {
	if batch.TotalEdits() == 0 {
		return nil, errors.New(errors.InputError, "nothing to apply: batch has no edits", nil)
	}

	release := e.locks.acquire(batch.Paths())
	defer release()

	contents, err := e.readAndVerify(ctx, batch)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.New(errors.InputError, "apply cancelled before any write", err)
	}

	sessionID, err := e.backups.Begin(operation, label)
	if err != nil {
		return nil, err
	}
	for _, f := range batch.Files {
		if err := e.backups.Snapshot(sessionID, f.Path, contents[f.Path]); err != nil {
			return nil, err
		}
	}

	// Write phase. Cancellation is checked between files only: a file
	// write is never torn, and anything already written gets restored.
	written := make([]string, 0, len(batch.Files))
	for i := range batch.Files {
		f := &batch.Files[i]
		if err := ctx.Err(); err != nil {
			return nil, e.recover(sessionID, written, errors.New(errors.InputError, "apply cancelled", err))
		}
		edited := f.Render(contents[f.Path])
		if err := e.writeFile(f.Path, edited); err != nil {
			return nil, e.recover(sessionID, written,
				errors.Newf(errors.InternalError, "write failed for %s: %v", f.Path, err))
		}
		written = append(written, f.Path)
	}

	if err := e.backups.MarkCommitted(sessionID); err != nil {
		return nil, err
	}
	e.logger.Info("apply committed", map[string]interface{}{
		"session": sessionID,
		"files":   len(batch.Files),
		"edits":   batch.TotalEdits(),
	})
	return &Result{
		SessionID:    sessionID,
		FilesChanged: len(batch.Files),
		EditsApplied: batch.TotalEdits(),
	}, nil
}

// readAndVerify loads every file in the batch and checks its
// fingerprint against the plan. A single stale file fails the whole
// batch before any write.
func (e *Engine) readAndVerify(ctx context.Context, batch *plan.Batch) (map[string][]byte, error) {
	contents := make(map[string][]byte, len(batch.Files))
	results := make([][]byte, len(batch.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range batch.Files {
		f := &batch.Files[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(f.Path)
			if err != nil {
				return errors.Newf(errors.InputError, "cannot read %s: %v", f.Path, err)
			}
			if match.Fingerprint(content) != f.ContentHash {
				return errors.Newf(errors.StaleMatch,
					"%s changed since it was matched; re-run the query", f.Path)
			}
			results[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i := range batch.Files {
		contents[batch.Files[i].Path] = results[i]
	}
	return contents, nil
}

// recover restores the files already written in a failed apply. When
// restoration succeeds the caller gets PARTIAL_APPLY_RECOVERED wrapping
// the original cause; when it fails too, the session is marked unusable
// and the backup error wins.
func (e *Engine) recover(sessionID string, written []string, cause error) error {
	var restoreErr error
	for _, path := range written {
		content, err := e.backups.SnapshotContent(sessionID, path)
		if err == nil {
			err = atomicWrite(path, content)
		}
		if err != nil && restoreErr == nil {
			restoreErr = err
		}
	}
	if restoreErr != nil {
		reason := "restore after failed apply did not complete: " + restoreErr.Error()
		if err := e.backups.MarkUnusable(sessionID, reason); err != nil {
			e.logger.Error("failed to mark session unusable", map[string]interface{}{
				"session": sessionID,
				"error":   err.Error(),
			})
		}
		return errors.New(errors.BackupFailure, reason, cause)
	}
	if err := e.backups.MarkRolledBack(sessionID); err != nil {
		e.logger.Error("failed to record rollback", map[string]interface{}{
			"session": sessionID,
			"error":   err.Error(),
		})
	}
	e.logger.Warn("apply failed, all written files restored", map[string]interface{}{
		"session":  sessionID,
		"restored": len(written),
	})
	return errors.New(errors.PartialApplyRecovered,
		"apply failed partway; all written files were restored", cause)
}

// atomicWrite writes via a temp file in the target directory plus
// rename, preserving the original file's mode when it exists.
func atomicWrite(path string, content []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".recast-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
