// Package history persists command invocations in SQLite. It uses
// modernc.org/sqlite for pure-Go, CGO-free database access.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schema.sql
var schema string

// Outcome values recorded per invocation.
const (
	OutcomeExecuted = "executed"
	OutcomeBlocked  = "blocked"
	OutcomeFailed   = "failed"
)

// Record is one row of command history.
type Record struct {
	ID         int64
	RequestID  string
	SessionID  string
	Command    string
	Verb       string
	Tier       string
	Platform   string
	Outcome    string
	ExitCode   int
	DurationMs int64
	Error      string
	ExecutedAt time.Time
}

// Store provides access to the history database.
type Store struct {
	db *sql.DB
}

// Open creates the history database under dataDir, initializing the
// schema if needed.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}

	if err := store.initPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}

	return store, nil
}

func (s *Store) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",   // concurrent reads during writes
		"PRAGMA synchronous = NORMAL", // balance safety and performance
		"PRAGMA busy_timeout = 5000",  // wait 5 seconds if locked
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// migrate applies the embedded schema. Idempotent.
func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute statement: %w\nSQL: %s", err, stmt)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	return nil
}

// Append inserts one record. A zero ExecutedAt is set to now.
func (s *Store) Append(ctx context.Context, rec *Record) error {
	if rec.Command == "" {
		return fmt.Errorf("record command cannot be empty")
	}
	if rec.Outcome == "" {
		return fmt.Errorf("record outcome cannot be empty")
	}

	executedAt := rec.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO command_history (
			request_id, session_id, command, verb, tier,
			platform, outcome, exit_code, duration_ms, error, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		rec.RequestID, rec.SessionID, rec.Command, rec.Verb, rec.Tier,
		rec.Platform, rec.Outcome, rec.ExitCode, rec.DurationMs, rec.Error, executedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	rec.ExecutedAt = executedAt

	return nil
}

// Recent returns the newest records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, request_id, session_id, command, verb, tier,
		       platform, outcome, exit_code, duration_ms, error, executed_at
		FROM command_history
		ORDER BY executed_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent history: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Search returns records whose command contains substr, newest first.
func (s *Store) Search(ctx context.Context, substr string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, request_id, session_id, command, verb, tier,
		       platform, outcome, exit_code, duration_ms, error, executed_at
		FROM command_history
		WHERE command LIKE ? ESCAPE '\'
		ORDER BY executed_at DESC, id DESC
		LIMIT ?
	`

	pattern := "%" + escapeLike(substr) + "%"

	rows, err := s.db.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// PurgeOlderThan deletes records older than the given age and returns
// the number removed.
func (s *Store) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM command_history WHERE executed_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count purged rows: %w", err)
	}

	return n, nil
}

// Count returns the total number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM command_history").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Stats summarizes the stored history.
type Stats struct {
	Total       int64
	ByOutcome   map[string]int64
	ByTier      map[string]int64
	TotalExecMs int64
	Oldest      time.Time
	Newest      time.Time
}

// Stats aggregates every stored record for reporting.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		ByOutcome: make(map[string]int64),
		ByTier:    make(map[string]int64),
	}

	if err := s.groupCounts(ctx,
		"SELECT outcome, COUNT(*) FROM command_history GROUP BY outcome",
		st.ByOutcome); err != nil {
		return nil, fmt.Errorf("aggregate outcomes: %w", err)
	}
	for _, n := range st.ByOutcome {
		st.Total += n
	}

	if err := s.groupCounts(ctx,
		"SELECT tier, COUNT(*) FROM command_history WHERE tier != '' GROUP BY tier",
		st.ByTier); err != nil {
		return nil, fmt.Errorf("aggregate tiers: %w", err)
	}

	var oldest, newest sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(duration_ms), 0), MIN(executed_at), MAX(executed_at)
		FROM command_history`).Scan(&st.TotalExecMs, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("aggregate totals: %w", err)
	}
	if oldest.Valid {
		st.Oldest = oldest.Time
	}
	if newest.Valid {
		st.Newest = newest.Time
	}

	return st, nil
}

func (s *Store) groupCounts(ctx context.Context, query string, into map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}

// Health checks that the database answers queries.
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close flushes the WAL and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: WAL checkpoint failed: %v\n", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	return nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.RequestID, &rec.SessionID, &rec.Command, &rec.Verb, &rec.Tier,
			&rec.Platform, &rec.Outcome, &rec.ExitCode, &rec.DurationMs, &rec.Error, &rec.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return records, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
