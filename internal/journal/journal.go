// Package journal persists dedup claims in SQLite so a restarted
// process keeps rejecting bundles it already applied.
//
// The scheduler calls Claim under its lock; every statement here is a
// single local write, kept short by WAL mode and a primary-key insert.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Journal is a durable log of claimed bundle identifiers.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path. The database is
// configured with WAL mode for cheap writes, NORMAL synchronous, a busy
// timeout for lock contention, and a single connection (SQLite supports
// one writer at a time). Idempotent.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Claim records id as seen and reports whether it was previously
// unclaimed. The primary-key INSERT OR IGNORE makes the check-and-set a
// single atomic statement: of two racing claimers exactly one inserts.
func (j *Journal) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO claims (id, claimed_at) VALUES (?, ?)`,
		id, at.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", id, err)
	}
	return n > 0, nil
}

// Seen reports whether id has ever been claimed.
func (j *Journal) Seen(ctx context.Context, id string) (bool, error) {
	var one int
	err := j.db.QueryRowContext(ctx,
		`SELECT 1 FROM claims WHERE id = ?`, id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", id, err)
	}
	return true, nil
}

// SweepBefore deletes claims recorded before cutoff and returns the
// number removed.
func (j *Journal) SweepBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM claims WHERE claimed_at < ?`, cutoff.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep journal: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of recorded claims.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return n, nil
}
