package metrics

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Mode names one scan counter.
type Mode string

const (
	// ModeScan counts Init calls.
	ModeScan Mode = "scan"
	// ModeRows counts rows buffered by successful scans.
	ModeRows Mode = "rows"
	// ModeFailure counts Init calls that returned an error.
	ModeFailure Mode = "failure"
)

// Modes lists every counter in display order.
var Modes = []Mode{ModeScan, ModeRows, ModeFailure}

const dateLayout = "2006-01-02"

// Store persists daily scan counters in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (creating if needed) the counter database at dbPath.
// The parent directory is created as well.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("metrics: database path is empty")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS scan_counts (
			mode TEXT NOT NULL,
			date TEXT NOT NULL,
			count INTEGER DEFAULT 0,
			PRIMARY KEY (mode, date)
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Add adds n to today's counter for mode. Non-positive n is a no-op.
func (s *Store) Add(mode Mode, n int64) error {
	if n <= 0 {
		return nil
	}

	upsertSQL := `
		INSERT INTO scan_counts (mode, date, count)
		VALUES (?, ?, ?)
		ON CONFLICT(mode, date) DO UPDATE SET count = count + excluded.count;
	`
	if _, err := s.db.Exec(upsertSQL, string(mode), s.now().Format(dateLayout), n); err != nil {
		return fmt.Errorf("failed to add to %s count: %w", mode, err)
	}
	return nil
}

// RecordScan updates the counters for one finished scan.
func (s *Store) RecordScan(rows int, scanErr error) error {
	if err := s.Add(ModeScan, 1); err != nil {
		return err
	}
	if scanErr != nil {
		return s.Add(ModeFailure, 1)
	}
	return s.Add(ModeRows, int64(rows))
}

// TotalByMode returns the cumulative count for mode across all dates.
func (s *Store) TotalByMode(mode Mode) (int64, error) {
	var total int64
	row := s.db.QueryRow(
		"SELECT COALESCE(SUM(count), 0) FROM scan_counts WHERE mode = ?",
		string(mode),
	)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to get total for mode %s: %w", mode, err)
	}
	return total, nil
}

// Totals returns cumulative counts for every mode; modes never recorded report 0.
func (s *Store) Totals() (map[Mode]int64, error) {
	result := make(map[Mode]int64, len(Modes))
	for _, mode := range Modes {
		result[mode] = 0
	}

	rows, err := s.db.Query("SELECT mode, COALESCE(SUM(count), 0) FROM scan_counts GROUP BY mode")
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			mode  string
			total int64
		)
		if err := rows.Scan(&mode, &total); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result[Mode(mode)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// CountByDate returns the counter for mode on date (YYYY-MM-DD).
func (s *Store) CountByDate(mode Mode, date string) (int64, error) {
	var count int64
	row := s.db.QueryRow(
		"SELECT count FROM scan_counts WHERE mode = ? AND date = ?",
		string(mode), date,
	)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get count: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
