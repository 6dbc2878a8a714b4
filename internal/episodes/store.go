// Package episodes records simulated session outcomes in a local SQLite
// database so runs can be compared across policies and tunings.
package episodes

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Episode is one completed (or truncated) simulated session.
type Episode struct {
	SessionID   string
	Policy      string
	Steps       int
	Reps        int
	TotalReward float64
	MeanQuality float64
	Termination string
}

// Store persists episode summaries.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the episode database at dir/episodes.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating episodes dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "episodes.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening episodes db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS episodes (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   TEXT NOT NULL,
		policy       TEXT NOT NULL,
		steps        INTEGER NOT NULL,
		reps         INTEGER NOT NULL,
		total_reward REAL NOT NULL,
		mean_quality REAL NOT NULL,
		termination  TEXT NOT NULL,
		recorded_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating episodes table: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends one episode summary.
func (s *Store) Record(ep Episode) error {
	_, err := s.db.Exec(
		`INSERT INTO episodes (session_id, policy, steps, reps, total_reward, mean_quality, termination)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ep.SessionID, ep.Policy, ep.Steps, ep.Reps, ep.TotalReward, ep.MeanQuality, ep.Termination,
	)
	if err != nil {
		return fmt.Errorf("recording episode %s: %w", ep.SessionID, err)
	}
	return nil
}

// List returns the most recent episodes, newest first.
func (s *Store) List(limit int) ([]Episode, error) {
	rows, err := s.db.Query(
		`SELECT session_id, policy, steps, reps, total_reward, mean_quality, termination
		 FROM episodes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing episodes: %w", err)
	}
	defer rows.Close()

	var eps []Episode
	for rows.Next() {
		var ep Episode
		if err := rows.Scan(&ep.SessionID, &ep.Policy, &ep.Steps, &ep.Reps,
			&ep.TotalReward, &ep.MeanQuality, &ep.Termination); err != nil {
			return nil, fmt.Errorf("scanning episode: %w", err)
		}
		eps = append(eps, ep)
	}
	return eps, rows.Err()
}

// Close closes the episode database.
func (s *Store) Close() error {
	return s.db.Close()
}
