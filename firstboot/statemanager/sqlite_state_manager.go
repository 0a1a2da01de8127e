package statemanager

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteStateManager struct {
	db *sql.DB
}

// New opens the journal at dbPath and creates the schema if needed.
// Use ":memory:" for an in-memory journal.
func New(dbPath string) (*SQLiteStateManager, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStateManager{db: db}
	if err := s.CreateSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStateManager) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateSchema creates all tables and indexes.
func (s *SQLiteStateManager) CreateSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStateManager) Save(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	missing, err := json.Marshal(run.Missing)
	if err != nil {
		return "", fmt.Errorf("failed to marshal missing packages: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO runs
		(id, hostname, profile, started_at, duration_ns, outcome, missing, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.Hostname,
		run.Profile,
		run.StartedAt.UTC().Format(timeLayout),
		int64(run.Duration),
		string(run.Outcome),
		string(missing),
		run.Error,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run for %s: %w", run.Hostname, err)
	}

	return run.ID, nil
}

func (s *SQLiteStateManager) Latest(ctx context.Context, hostname string) (Run, error) {
	query := `
		SELECT id, hostname, profile, started_at, duration_ns, outcome, missing, error
		FROM runs
		WHERE hostname = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, hostname))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w for %s", ErrNotFound, hostname)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get latest run for %s: %w", hostname, err)
	}
	return run, nil
}

func (s *SQLiteStateManager) List(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, hostname, profile, started_at, duration_ns, outcome, missing, error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		durationNs int64
		outcome    string
		profile    sql.NullString
		missing    sql.NullString
		runErr     sql.NullString
	)

	if err := row.Scan(&run.ID, &run.Hostname, &profile, &startedAt, &durationNs, &outcome, &missing, &runErr); err != nil {
		return Run{}, err
	}

	var err error
	run.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("failed to parse started_at for %s: %w", run.ID, err)
	}
	if missing.Valid && missing.String != "" && missing.String != "null" {
		if err := json.Unmarshal([]byte(missing.String), &run.Missing); err != nil {
			return Run{}, fmt.Errorf("failed to unmarshal missing packages for %s: %w", run.ID, err)
		}
	}
	run.Profile = profile.String
	run.Duration = time.Duration(durationNs)
	run.Outcome = Outcome(outcome)
	run.Error = runErr.String
	return run, nil
}
