// Package history archives terminal conversation turns in a local sqlite
// database so past sessions can be reviewed after the process exits. The
// in-memory turn store stays authoritative for the live session; archiving
// is best-effort.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"ragbench/internal/rag"
)

const schema = `
CREATE TABLE IF NOT EXISTS turn_archive (
	turn_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	sources_json TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turn_archive_session ON turn_archive(session_id, created_at);
`

// Archive is a sqlite-backed record of finished turns.
type Archive struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the archive database at path. ":memory:" works for
// tests.
func Open(path string, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return &Archive{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Record stores a terminal turn under sessionID. Inserting the same turn id
// twice is a silent no-op, so re-archiving after a retry is safe. Pending
// turns are rejected; only terminal states belong in the archive.
func (a *Archive) Record(sessionID string, turn rag.Turn) error {
	if !turn.Status.Terminal() {
		return fmt.Errorf("refusing to archive non-terminal turn %s", turn.ID)
	}
	sources, err := json.Marshal(turn.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = a.db.Exec(
		`INSERT OR IGNORE INTO turn_archive
		 (turn_id, session_id, question, answer, status, error_message, sources_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, sessionID, turn.Question, turn.Answer, string(turn.Status),
		turn.ErrorMessage, string(sources), turn.CreatedAt,
	)
	if err != nil {
		a.logger.Warn("turn archive write failed", zap.String("turn_id", turn.ID), zap.Error(err))
		return err
	}
	return nil
}

// Recent returns up to limit archived turns for sessionID, oldest first. An
// empty sessionID returns turns across all sessions.
func (a *Archive) Recent(sessionID string, limit int) ([]rag.Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	query := `SELECT turn_id, question, answer, status, error_message, sources_json, created_at
	          FROM turn_archive`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var turns []rag.Turn
	for rows.Next() {
		var t rag.Turn
		var status, sourcesJSON string
		if err := rows.Scan(&t.ID, &t.Question, &t.Answer, &status,
			&t.ErrorMessage, &sourcesJSON, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan archived turn: %w", err)
		}
		t.Status = rag.TurnStatus(status)
		if err := json.Unmarshal([]byte(sourcesJSON), &t.Sources); err != nil {
			t.Sources = nil
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first for display.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// SessionInfo summarizes one archived session.
type SessionInfo struct {
	SessionID string
	Turns     int
	LastAt    time.Time
}

// Sessions lists archived sessions, most recent activity first.
func (a *Archive) Sessions(limit int) ([]SessionInfo, error) {
	if limit <= 0 {
		limit = 20
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	rows, err := a.db.Query(
		`SELECT session_id, COUNT(*), MAX(created_at)
		 FROM turn_archive
		 GROUP BY session_id
		 ORDER BY MAX(created_at) DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.SessionID, &info.Turns, &info.LastAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}
