// Package journal records shadow traffic to SQLite for later inspection.
//
// The journal is write-mostly: the agent appends one entry per decoded
// inbound message and per outbound publish, the status API and CLI read the
// most recent entries. Entries are never replayed into the engine.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// timeLayout is fixed width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000Z"
)

// ErrInvalidEntry is returned when an entry lacks a direction or kind.
var ErrInvalidEntry = errors.New("invalid journal entry")

// Entry is one journal row.
type Entry struct {
	ID          int64     `json:"id"`
	Direction   string    `json:"direction"`
	Kind        string    `json:"kind"`
	Version     *uint64   `json:"version,omitempty"`
	ClientToken string    `json:"client_token,omitempty"`
	Payload     string    `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Direction string // optional
	Kind      string // optional
	Limit     int    // default 50, max 200
}

// Repository is the journal store.
type Repository interface {
	Record(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository stores entries in the shadow_journal table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an already migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Record inserts entry and fills in its ID and, when zero, CreatedAt.
func (r *SQLiteRepository) Record(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidEntry)
	}
	if entry.Direction != DirectionInbound && entry.Direction != DirectionOutbound {
		return fmt.Errorf("%w: direction %q", ErrInvalidEntry, entry.Direction)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	var version any
	if entry.Version != nil {
		version = int64(*entry.Version) //nolint:gosec // shadow versions fit in int64
	}
	var token any
	if entry.ClientToken != "" {
		token = entry.ClientToken
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO shadow_journal (direction, kind, version, client_token, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Direction, entry.Kind, version, token, entry.Payload,
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading journal entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// List returns entries newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, direction, kind, version, client_token, payload, created_at
		 FROM shadow_journal
		 WHERE (? = '' OR direction = ?) AND (? = '' OR kind = ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		filter.Direction, filter.Direction,
		filter.Kind, filter.Kind,
		filter.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, filter.Limit)
	for rows.Next() {
		var e Entry
		var version sql.NullInt64
		var token sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.Direction, &e.Kind, &version, &token, &e.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		if version.Valid {
			v := uint64(version.Int64) //nolint:gosec // written from uint64
			e.Version = &v
		}
		e.ClientToken = token.String

		e.CreatedAt, err = parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := r.now().Add(-olderThan).UTC().Format(timeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM shadow_journal WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at %q: %w", value, err)
	}
	return t, nil
}
