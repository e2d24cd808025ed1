// Package history is a queryable, durable companion to the flat
// AURA_DATA_DIR/logs/utterances.jsonl audit trail: every utterance the
// Orchestrator resolves is also indexed into a local sqlite database so
// `aura history` can search past commands by tool or outcome
// without scanning the JSONL file. Grounded on the teacher's
// internal/northstar.Store (database/sql over github.com/mattn/go-sqlite3,
// WAL journal mode, a single RWMutex guarding reads vs writes).
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one indexed utterance record.
type Entry struct {
	ID        uint64
	Utterance string
	Layer     string
	Tool      string
	OK        bool
	ElapsedMs int64
	Error     string
	Timestamp time.Time
}

// Store is the sqlite-backed utterance history index.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open creates or opens dataDir/history.db and ensures its schema exists.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("history: creating data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "history.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: initializing schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS utterances (
		id INTEGER PRIMARY KEY,
		utterance TEXT NOT NULL,
		layer TEXT NOT NULL,
		tool TEXT,
		ok INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_utterances_tool ON utterances(tool);
	CREATE INDEX IF NOT EXISTS idx_utterances_layer ON utterances(layer);
	CREATE INDEX IF NOT EXISTS idx_utterances_created_at ON utterances(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record indexes one utterance outcome.
func (s *Store) Record(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO utterances (id, utterance, layer, tool, ok, elapsed_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Utterance, e.Layer, e.Tool, boolToInt(e.OK), e.ElapsedMs, e.Error, e.Timestamp)
	if err != nil {
		return fmt.Errorf("history: recording entry: %w", err)
	}
	return nil
}

// SearchByTool returns the most recent entries that invoked tool, newest
// first, capped at limit.
func (s *Store) SearchByTool(tool string, limit int) ([]Entry, error) {
	return s.query(`
		SELECT id, utterance, layer, tool, ok, elapsed_ms, error, created_at
		FROM utterances WHERE tool = ? ORDER BY created_at DESC LIMIT ?
	`, tool, limit)
}

// Recent returns the most recent entries across every layer, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	return s.query(`
		SELECT id, utterance, layer, tool, ok, elapsed_ms, error, created_at
		FROM utterances ORDER BY created_at DESC LIMIT ?
	`, limit)
}

// Failures returns the most recent failed entries, newest first.
func (s *Store) Failures(limit int) ([]Entry, error) {
	return s.query(`
		SELECT id, utterance, layer, tool, ok, elapsed_ms, error, created_at
		FROM utterances WHERE ok = 0 ORDER BY created_at DESC LIMIT ?
	`, limit)
}

func (s *Store) query(q string, args ...any) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: querying: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var tool, errMsg sql.NullString
		var ok int
		if err := rows.Scan(&e.ID, &e.Utterance, &e.Layer, &tool, &ok, &e.ElapsedMs, &errMsg, &e.Timestamp); err != nil {
			continue
		}
		e.Tool = tool.String
		e.Error = errMsg.String
		e.OK = ok != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
