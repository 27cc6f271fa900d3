package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"slashsense/internal/logging"
)

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore persists detection events for the stats command. Pure-Go
// driver, no cgo.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the detection database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// initialize creates the detections table.
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS detections (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		input_preview TEXT,
		command_id TEXT,
		confidence REAL,
		method TEXT,
		action TEXT NOT NULL,
		tier_latencies TEXT,
		total_latency_ms REAL
	);
	CREATE INDEX IF NOT EXISTS idx_detections_command ON detections(command_id);
	CREATE INDEX IF NOT EXISTS idx_detections_method ON detections(method);
	CREATE INDEX IF NOT EXISTS idx_detections_time ON detections(timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Emit records one event. Failures are logged, never surfaced: telemetry
// must not affect detection.
func (s *SQLiteStore) Emit(ev Event) {
	latencies, _ := json.Marshal(ev.TierLatencies)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO detections
		(id, timestamp, input_preview, command_id, confidence, method, action, tier_latencies, total_latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Timestamp, ev.InputPreview, ev.CommandID, ev.Confidence,
		string(ev.Method), string(ev.Action), string(latencies), ev.TotalLatencyMs)
	if err != nil {
		logging.Get(logging.CategoryTelemetry).Warn("failed to record detection: %v", err)
	}
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// =============================================================================
// STATS
// =============================================================================

// Stats is an aggregate view over recorded detections.
type Stats struct {
	Total        int64            `json:"total"`
	ByMethod     map[string]int64 `json:"by_method"`
	ByAction     map[string]int64 `json:"by_action"`
	TopCommands  []CommandCount   `json:"top_commands"`
	AvgLatencyMs float64          `json:"avg_latency_ms"`
}

// CommandCount pairs a command id with its detection count.
type CommandCount struct {
	CommandID string `json:"command_id"`
	Count     int64  `json:"count"`
}

// Stats aggregates everything recorded so far.
func (s *SQLiteStore) Stats(topN int) (*Stats, error) {
	if topN <= 0 {
		topN = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := &Stats{
		ByMethod: make(map[string]int64),
		ByAction: make(map[string]int64),
	}

	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(AVG(total_latency_ms), 0) FROM detections`)
	if err := row.Scan(&out.Total, &out.AvgLatencyMs); err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}

	if err := s.countBy("method", out.ByMethod); err != nil {
		return nil, err
	}
	if err := s.countBy("action", out.ByAction); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT command_id, COUNT(*) AS n FROM detections
		WHERE command_id != ''
		GROUP BY command_id ORDER BY n DESC, command_id ASC LIMIT ?`, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to query top commands: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc CommandCount
		if err := rows.Scan(&cc.CommandID, &cc.Count); err != nil {
			return nil, err
		}
		out.TopCommands = append(out.TopCommands, cc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) countBy(column string, dest map[string]int64) error {
	// column comes from a fixed caller set, never user input.
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM detections WHERE %s != '' GROUP BY %s`, column, column, column))
	if err != nil {
		return fmt.Errorf("failed to query by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dest[key] = n
	}
	return rows.Err()
}
