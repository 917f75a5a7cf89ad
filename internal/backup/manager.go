// Package backup persists pre-edit file snapshots so an applied session
// can be rolled back byte for byte, including after a process restart.
// Session metadata lives in a SQLite journal; snapshot payloads are
// content-addressed zstd files next to it.
package backup

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"recast/internal/errors"
	"recast/internal/logging"
	"recast/internal/match"
)

// Session states recorded in the journal.
const (
	StateCreated    = "created"
	StateCommitted  = "committed"
	StateRolledBack = "rolled_back"
	StateUnusable   = "unusable"
)

// SessionInfo describes one recorded session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Label     string    `json:"label,omitempty"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	FileCount int       `json:"fileCount"`
	Reason    string    `json:"reason,omitempty"`
}

// FileRestore is the outcome of restoring a single file during rollback.
type FileRestore struct {
	Path     string `json:"path"`
	Restored bool   `json:"restored"`
	Error    string `json:"error,omitempty"`
}

// RestoreReport summarizes a rollback. Every file gets an entry even
// when some fail; rollback never aborts early.
type RestoreReport struct {
	SessionID string        `json:"sessionId"`
	Files     []FileRestore `json:"files"`
	Failed    int           `json:"failed"`
}

// Manager owns the session journal and snapshot store.
type Manager struct {
	conn     *sql.DB
	dir      string
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	logger   *logging.Logger
}

// Open opens or creates the backup store rooted at dir.
func Open(dir string, compress bool, logger *logging.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.New(errors.BackupFailure, "failed to create backup directory", err)
	}

	dbPath := filepath.Join(dir, "sessions.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.New(errors.BackupFailure, "failed to open session journal", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, errors.New(errors.BackupFailure, "failed to set pragma", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id          TEXT PRIMARY KEY,
			operation   TEXT NOT NULL,
			label       TEXT NOT NULL DEFAULT '',
			state       TEXT NOT NULL DEFAULT 'created',
			reason      TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS session_files (
			session_id    TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			path          TEXT NOT NULL,
			content_hash  TEXT NOT NULL,
			snapshot      TEXT NOT NULL,
			compressed    INTEGER NOT NULL,
			PRIMARY KEY (session_id, path)
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at DESC);
	`
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, errors.New(errors.BackupFailure, "failed to initialize session schema", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = conn.Close()
		return nil, errors.New(errors.InternalError, "failed to create zstd encoder", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = conn.Close()
		return nil, errors.New(errors.InternalError, "failed to create zstd decoder", err)
	}

	return &Manager{
		conn:     conn,
		dir:      dir,
		compress: compress,
		enc:      enc,
		dec:      dec,
		logger:   logger,
	}, nil
}

// Close releases the journal connection and codec resources.
func (m *Manager) Close() error {
	m.enc.Close()
	m.dec.Close()
	return m.conn.Close()
}

// Begin records a new session in the created state and returns its id.
func (m *Manager) Begin(operation, label string) (string, error) {
	id := uuid.NewString()
	_, err := m.conn.Exec(
		`INSERT INTO sessions (id, operation, label, state, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, operation, label, StateCreated, time.Now().Unix(),
	)
	if err != nil {
		return "", errors.New(errors.BackupFailure, "failed to record session", err)
	}
	m.logger.Debug("session started", map[string]interface{}{
		"session":   id,
		"operation": operation,
	})
	return id, nil
}

// Snapshot stores the pre-edit content of one file for a session. It is
// idempotent: a second snapshot of the same path in the same session is
// a no-op, so the first-seen content always wins. A failed snapshot
// marks the whole session unusable: its records are incomplete and a
// later restore over them could lose content.
func (m *Manager) Snapshot(sessionID, path string, content []byte) error {
	if err := m.snapshot(sessionID, path, content); err != nil {
		if markErr := m.MarkUnusable(sessionID, err.Error()); markErr != nil {
			m.logger.Warn("failed to mark session unusable", map[string]interface{}{
				"session": sessionID,
				"error":   markErr.Error(),
			})
		}
		return err
	}
	return nil
}

func (m *Manager) snapshot(sessionID, path string, content []byte) error {
	var existing string
	err := m.conn.QueryRow(
		`SELECT snapshot FROM session_files WHERE session_id = ? AND path = ?`,
		sessionID, path,
	).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return errors.New(errors.BackupFailure, "failed to check existing snapshot", err)
	}

	hash := match.Fingerprint(content)
	sessionDir := filepath.Join(m.dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return errors.New(errors.BackupFailure, "failed to create session directory", err)
	}

	payload := content
	name := hash + ".snap"
	compressed := 0
	if m.compress {
		payload = m.enc.EncodeAll(content, nil)
		name = hash + ".zst"
		compressed = 1
	}
	snapPath := filepath.Join(sessionDir, name)

	// Content-addressed: an existing file with this name already holds
	// the right bytes.
	if _, statErr := os.Stat(snapPath); statErr != nil {
		if err := atomicWrite(snapPath, payload, 0644); err != nil {
			return errors.New(errors.BackupFailure, "failed to write snapshot", err)
		}
	}

	_, err = m.conn.Exec(
		`INSERT INTO session_files (session_id, path, content_hash, snapshot, compressed) VALUES (?, ?, ?, ?, ?)`,
		sessionID, path, hash, name, compressed,
	)
	if err != nil {
		return errors.New(errors.BackupFailure, "failed to record snapshot", err)
	}
	return nil
}

// SnapshotContent returns the original bytes recorded for one file in a
// session.
func (m *Manager) SnapshotContent(sessionID, path string) ([]byte, error) {
	var name, hash string
	var compressed int
	err := m.conn.QueryRow(
		`SELECT snapshot, content_hash, compressed FROM session_files WHERE session_id = ? AND path = ?`,
		sessionID, path,
	).Scan(&name, &hash, &compressed)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.BackupFailure, "no snapshot recorded for %s", path)
	}
	if err != nil {
		return nil, errors.New(errors.BackupFailure, "failed to look up snapshot", err)
	}
	return m.readSnapshot(sessionID, name, hash, compressed == 1)
}

func (m *Manager) readSnapshot(sessionID, name, hash string, compressed bool) ([]byte, error) {
	payload, err := os.ReadFile(filepath.Join(m.dir, sessionID, name))
	if err != nil {
		return nil, errors.New(errors.BackupFailure, "failed to read snapshot", err)
	}
	content := payload
	if compressed {
		content, err = m.dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, errors.New(errors.BackupFailure, "failed to decompress snapshot", err)
		}
	}
	if match.Fingerprint(content) != hash {
		return nil, errors.Newf(errors.BackupFailure, "snapshot %s is corrupt", name)
	}
	return content, nil
}

// MarkCommitted moves a session from created to committed.
func (m *Manager) MarkCommitted(sessionID string) error {
	return m.setState(sessionID, StateCommitted, "")
}

// MarkRolledBack records that a session's files were restored.
func (m *Manager) MarkRolledBack(sessionID string) error {
	return m.setState(sessionID, StateRolledBack, "")
}

// MarkUnusable flags a session whose snapshots can no longer be
// trusted, with the reason preserved for listing.
func (m *Manager) MarkUnusable(sessionID, reason string) error {
	return m.setState(sessionID, StateUnusable, reason)
}

func (m *Manager) setState(sessionID, state, reason string) error {
	res, err := m.conn.Exec(
		`UPDATE sessions SET state = ?, reason = ? WHERE id = ?`,
		state, reason, sessionID,
	)
	if err != nil {
		return errors.New(errors.BackupFailure, "failed to update session state", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf(errors.SessionNotFound, "no session %s", sessionID)
	}
	return nil
}

// Get returns the recorded info for one session.
func (m *Manager) Get(sessionID string) (SessionInfo, error) {
	var info SessionInfo
	var created int64
	err := m.conn.QueryRow(
		`SELECT s.id, s.operation, s.label, s.state, s.reason, s.created_at,
		        (SELECT COUNT(*) FROM session_files f WHERE f.session_id = s.id)
		 FROM sessions s WHERE s.id = ?`,
		sessionID,
	).Scan(&info.ID, &info.Operation, &info.Label, &info.State, &info.Reason, &created, &info.FileCount)
	if err == sql.ErrNoRows {
		return SessionInfo{}, errors.Newf(errors.SessionNotFound, "no session %s", sessionID)
	}
	if err != nil {
		return SessionInfo{}, errors.New(errors.BackupFailure, "failed to look up session", err)
	}
	info.CreatedAt = time.Unix(created, 0)
	return info, nil
}

// List returns all sessions, most recent first.
func (m *Manager) List() ([]SessionInfo, error) {
	rows, err := m.conn.Query(
		`SELECT s.id, s.operation, s.label, s.state, s.reason, s.created_at,
		        (SELECT COUNT(*) FROM session_files f WHERE f.session_id = s.id)
		 FROM sessions s ORDER BY s.created_at DESC, s.id`)
	if err != nil {
		return nil, errors.New(errors.BackupFailure, "failed to list sessions", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var created int64
		if err := rows.Scan(&info.ID, &info.Operation, &info.Label, &info.State, &info.Reason, &created, &info.FileCount); err != nil {
			return nil, errors.New(errors.BackupFailure, "failed to scan session row", err)
		}
		info.CreatedAt = time.Unix(created, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Restore writes every snapshot in a session back to its original path.
// It attempts all files even when some fail; a partial outcome marks
// the session unusable so a later rollback cannot claim success.
func (m *Manager) Restore(sessionID string) (*RestoreReport, error) {
	info, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if info.State == StateUnusable {
		return nil, errors.Newf(errors.SessionUnusable, "session %s is unusable: %s", sessionID, info.Reason)
	}

	rows, err := m.conn.Query(
		`SELECT path, content_hash, snapshot, compressed FROM session_files WHERE session_id = ? ORDER BY path`,
		sessionID,
	)
	if err != nil {
		return nil, errors.New(errors.BackupFailure, "failed to list session files", err)
	}
	defer rows.Close()

	type entry struct {
		path, hash, name string
		compressed       bool
	}
	var entries []entry
	for rows.Next() {
		var e entry
		var compressed int
		if err := rows.Scan(&e.path, &e.hash, &e.name, &compressed); err != nil {
			return nil, errors.New(errors.BackupFailure, "failed to scan session file row", err)
		}
		e.compressed = compressed == 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.BackupFailure, "failed to read session files", err)
	}

	report := &RestoreReport{SessionID: sessionID}
	for _, e := range entries {
		fr := FileRestore{Path: e.path}
		content, err := m.readSnapshot(sessionID, e.name, e.hash, e.compressed)
		if err == nil {
			err = atomicWrite(e.path, content, 0644)
		}
		if err != nil {
			fr.Error = err.Error()
			report.Failed++
		} else {
			fr.Restored = true
		}
		report.Files = append(report.Files, fr)
	}

	if report.Failed > 0 {
		reason := fmt.Sprintf("%d of %d files failed to restore", report.Failed, len(report.Files))
		if err := m.MarkUnusable(sessionID, reason); err != nil {
			m.logger.Error("failed to mark session unusable", map[string]interface{}{
				"session": sessionID,
				"error":   err.Error(),
			})
		}
		return report, errors.Newf(errors.BackupFailure, "rollback of session %s incomplete: %s", sessionID, reason)
	}

	if err := m.MarkRolledBack(sessionID); err != nil {
		return report, err
	}
	m.logger.Info("session rolled back", map[string]interface{}{
		"session": sessionID,
		"files":   len(report.Files),
	})
	return report, nil
}

// atomicWrite writes content to a temp file in the target directory and
// renames it into place.
func atomicWrite(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".recast-*")
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
