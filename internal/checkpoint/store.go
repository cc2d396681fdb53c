// Package checkpoint persists workflow state snapshots to SQLite so a
// session interrupted mid-run can resume from its last phase boundary.
package checkpoint

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agenthands/cartographer/internal/core/model"
)

// ErrNotFound is returned when a session has no snapshots.
var ErrNotFound = errors.New("checkpoint: session not found")

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT    NOT NULL,
	phase      TEXT    NOT NULL,
	iteration  INTEGER NOT NULL,
	created_at TEXT    NOT NULL,
	state_json TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id, id);
`

// Store writes one row per phase boundary. Snapshots are append-only;
// Latest picks the newest row for a session.
type Store struct {
	db *sql.DB
}

// Open creates or opens the checkpoint database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	// SQLite serializes writers; a single connection avoids lock errors
	// under concurrent sessions.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init checkpoint schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save appends a snapshot of the state.
func (s *Store) Save(state model.WorkflowState) error {
	if state.SessionID == "" {
		return fmt.Errorf("%w: snapshot has no session id", model.ErrInvalidInput)
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshots (session_id, phase, iteration, created_at, state_json) VALUES (?, ?, ?, ?, ?)`,
		state.SessionID, string(state.Phase), state.Iteration,
		time.Now().UTC().Format(time.RFC3339Nano), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot for a session. A snapshot that
// no longer validates is corrupt and cannot be resumed from.
func (s *Store) Latest(sessionID string) (model.WorkflowState, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT state_json FROM snapshots WHERE session_id = ? ORDER BY id DESC LIMIT 1`,
		sessionID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WorkflowState{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return model.WorkflowState{}, fmt.Errorf("load snapshot: %w", err)
	}

	var state model.WorkflowState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return model.WorkflowState{}, fmt.Errorf("%w: snapshot for %s does not parse: %v", model.ErrStateCorruption, sessionID, err)
	}
	if err := state.Validate(); err != nil {
		return model.WorkflowState{}, err
	}
	return state, nil
}

// Sessions lists known session ids, newest first.
func (s *Store) Sessions() ([]string, error) {
	rows, err := s.db.Query(`SELECT session_id FROM snapshots GROUP BY session_id ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
