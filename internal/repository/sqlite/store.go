package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	phase TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	result BLOB
);
CREATE INDEX IF NOT EXISTS idx_analyses_finished ON analyses(finished_at);
`

// Store implements app.HistoryRepository using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the SQLite database at path (creating parent dirs and schema) and returns a HistoryRepository.
func New(path string) (app.HistoryRepository, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database connection. Call on shutdown for clean exit.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SaveAnalysis inserts rec, replacing any record with the same ID.
func (s *Store) SaveAnalysis(rec *domain.AnalysisRecord) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("record has no id")
	}
	var result any
	if len(rec.Result) > 0 {
		result = rec.Result
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO analyses (id, filename, phase, error, started_at, finished_at, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, string(rec.Phase), rec.Error,
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt), result)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", rec.ID, err)
	}
	return nil
}

// ListAnalyses returns the most recent records first, without result payloads.
// A limit of zero or less returns every record.
func (s *Store) ListAnalyses(limit int) ([]domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT id, filename, phase, error, started_at, finished_at
		FROM analyses ORDER BY finished_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalysisRecord
	for rows.Next() {
		var rec domain.AnalysisRecord
		var phase, started, finished string
		if err := rows.Scan(&rec.ID, &rec.Filename, &phase, &rec.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("list analyses: %w", err)
		}
		rec.Phase = domain.Phase(phase)
		if rec.StartedAt, err = parseTime(started, "analyses.started_at"); err != nil {
			return nil, err
		}
		if rec.FinishedAt, err = parseTime(finished, "analyses.finished_at"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetAnalysis returns one record including its result payload.
func (s *Store) GetAnalysis(id string) (*domain.AnalysisRecord, error) {
	var rec domain.AnalysisRecord
	var phase, started, finished string
	var result []byte
	err := s.db.QueryRow(`SELECT id, filename, phase, error, started_at, finished_at, result
		FROM analyses WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Filename, &phase, &rec.Error, &started, &finished, &result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAnalysisNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	rec.Phase = domain.Phase(phase)
	rec.Result = result
	if rec.StartedAt, err = parseTime(started, "analyses.started_at"); err != nil {
		return nil, err
	}
	if rec.FinishedAt, err = parseTime(finished, "analyses.finished_at"); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PruneAnalyses removes records older than maxAgeDays and then all but the
// newest maxCount. Zero disables either rule. Returns the number removed.
func (s *Store) PruneAnalyses(maxCount, maxAgeDays int) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var pruned int64
	if maxAgeDays > 0 {
		cutoff := formatTime(s.now().AddDate(0, 0, -maxAgeDays))
		res, err := tx.Exec("DELETE FROM analyses WHERE finished_at < ?", cutoff)
		if err != nil {
			return 0, fmt.Errorf("prune analyses by age: %w", err)
		}
		n, _ := res.RowsAffected()
		pruned += n
	}
	if maxCount > 0 {
		res, err := tx.Exec(`DELETE FROM analyses WHERE id NOT IN (
			SELECT id FROM analyses ORDER BY finished_at DESC, id LIMIT ?)`, maxCount)
		if err != nil {
			return 0, fmt.Errorf("prune analyses by count: %w", err)
		}
		n, _ := res.RowsAffected()
		pruned += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(pruned), nil
}

// timeLayout is fixed width so that timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses RFC3339Nano or returns zero time and error.
func parseTime(s, context string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: parse timestamp %q: %w", context, s, err)
	}
	return t, nil
}
