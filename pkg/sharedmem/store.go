// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package sharedmem

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/agentic-reserve/ordo/pkg/logger"
)

// Store is the SQLite-backed shared memory substrate. It serialises
// writes to the same id through the database; the change feed is
// dispatched in-process after each committed write.
type Store struct {
	db   *sql.DB
	feed *feed

	// now is injectable for TTL tests.
	now func() time.Time
}

// NewStore opens (and initialises) a store at dbPath. Use ":memory:"
// for an ephemeral store.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sharedmem: open %s: %w", dbPath, err)
	}
	// Serialise writers; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, feed: newFeed(), now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS shared_memory (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		metadata TEXT NOT NULL,
		agent_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_shared_memory_key ON shared_memory(key, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_shared_memory_agent ON shared_memory(agent_id);`)
	if err != nil {
		return fmt.Errorf("sharedmem: init schema: %w", err)
	}
	return nil
}

// Close releases the database and drops all subscribers.
func (s *Store) Close() error {
	s.feed.close()
	return s.db.Close()
}

// Store creates a new entry with a fresh id. Prior entries for the same
// key are kept as older versions. expiresAt of zero means no TTL.
func (s *Store) Store(ctx context.Context, key string, value any, meta Metadata, agentID string, expiresAt int64) (*Entry, error) {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("sharedmem: encode value: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("sharedmem: encode metadata: %w", err)
	}

	now := s.now().UnixMilli()
	entry := &Entry{
		ID:        fmt.Sprintf("mem-%s", uuid.New().String()[:8]),
		Key:       key,
		Value:     value,
		Metadata:  meta,
		AgentID:   agentID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shared_memory (id, key, value, metadata, agent_id, created_at, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Key, string(valueJSON), string(metaJSON),
		nullable(agentID), entry.CreatedAt, entry.UpdatedAt, nullableInt(expiresAt))
	if err != nil {
		return nil, fmt.Errorf("sharedmem: store %s: %w", key, err)
	}

	s.feed.publish(Change{Type: ChangeInsert, Entry: *entry})
	return entry, nil
}

// Get returns the latest non-expired entry for key, or nil when none
// is live.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, value, metadata, agent_id, created_at, updated_at, expires_at
		 FROM shared_memory
		 WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at DESC, seq DESC LIMIT 1`,
		key, s.now().UnixMilli())

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// GetAll returns every live entry for key, newest first.
func (s *Store) GetAll(ctx context.Context, key string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, value, metadata, agent_id, created_at, updated_at, expires_at
		 FROM shared_memory
		 WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at DESC, seq DESC`,
		key, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sharedmem: getAll %s: %w", key, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// GetByID returns a specific entry regardless of expiry, or nil.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, value, metadata, agent_id, created_at, updated_at, expires_at
		 FROM shared_memory WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// Update mutates the value (and optionally metadata) of a specific
// entry in place and bumps updated_at. The id must exist.
func (s *Store) Update(ctx context.Context, id string, value any, meta *Metadata) (*Entry, error) {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("sharedmem: encode value: %w", err)
	}

	now := s.now().UnixMilli()
	var res sql.Result
	if meta != nil {
		metaJSON, err := json.Marshal(*meta)
		if err != nil {
			return nil, fmt.Errorf("sharedmem: encode metadata: %w", err)
		}
		res, err = s.db.ExecContext(ctx,
			`UPDATE shared_memory SET value = ?, metadata = ?, updated_at = ? WHERE id = ?`,
			string(valueJSON), string(metaJSON), now, id)
		if err != nil {
			return nil, fmt.Errorf("sharedmem: update %s: %w", id, err)
		}
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE shared_memory SET value = ?, updated_at = ? WHERE id = ?`,
			string(valueJSON), now, id)
		if err != nil {
			return nil, fmt.Errorf("sharedmem: update %s: %w", id, err)
		}
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	entry, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.feed.publish(Change{Type: ChangeUpdate, Entry: *entry})
	return entry, nil
}

// Delete hard-removes an entry by id. The id must exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	entry, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM shared_memory WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sharedmem: delete %s: %w", id, err)
	}
	s.feed.publish(Change{Type: ChangeDelete, Entry: *entry})
	return nil
}

// DeleteByKey hard-removes every version of a key and returns how many
// entries were removed. Removing an absent key is not an error.
func (s *Store) DeleteByKey(ctx context.Context, key string) (int, error) {
	entries, err := s.GetAll(ctx, key)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM shared_memory WHERE key = ?`, key)
	if err != nil {
		return 0, fmt.Errorf("sharedmem: deleteByKey %s: %w", key, err)
	}
	n, _ := res.RowsAffected()

	for _, e := range entries {
		s.feed.publish(Change{Type: ChangeDelete, Entry: *e})
	}
	return int(n), nil
}

// Query returns live entries matching every provided filter. Tags
// require all listed tags to be present on the entry. Default order is
// created_at descending.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]*Entry, error) {
	q := `SELECT id, key, value, metadata, agent_id, created_at, updated_at, expires_at
	      FROM shared_memory WHERE (expires_at IS NULL OR expires_at > ?)`
	args := []any{s.now().UnixMilli()}

	if filter.AgentID != "" {
		q += ` AND agent_id = ?`
		args = append(args, filter.AgentID)
	}

	orderBy := "created_at"
	if filter.OrderBy == "updated_at" {
		orderBy = "updated_at"
	}
	orderDir := "DESC"
	if filter.OrderDir == "asc" {
		orderDir = "ASC"
	}
	q += fmt.Sprintf(` ORDER BY %s %s, seq %s`, orderBy, orderDir, orderDir)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sharedmem: query: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	// Context and tag containment are checked on the decoded metadata.
	filtered := entries[:0]
	for _, e := range entries {
		if filter.Context != "" && e.Metadata.Context != filter.Context {
			continue
		}
		if !hasAllTags(e.Metadata.Tags, filter.Tags) {
			continue
		}
		filtered = append(filtered, e)
	}

	if filter.Limit > 0 && len(filtered) > filter.Limit {
		filtered = filtered[:filter.Limit]
	}
	return filtered, nil
}

// Subscribe registers a change-feed callback. Delivery is at-least-once
// per subscriber; the handle's Unsubscribe is idempotent.
func (s *Store) Subscribe(cb func(Change), filter SubscriptionFilter) *FeedSubscription {
	return s.feed.subscribe(cb, filter)
}

// CleanupExpired deletes entries whose TTL has elapsed and returns the
// number removed.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM shared_memory WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("sharedmem: cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.InfoCF("sharedmem", "Expired entries removed", map[string]any{"count": n})
	}
	return int(n), nil
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var valueJSON, metaJSON string
	var agentID sql.NullString
	var expiresAt sql.NullInt64

	if err := row.Scan(&e.ID, &e.Key, &valueJSON, &metaJSON, &agentID, &e.CreatedAt, &e.UpdatedAt, &expiresAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(valueJSON), &e.Value); err != nil {
		return nil, fmt.Errorf("sharedmem: decode value of %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
		return nil, fmt.Errorf("sharedmem: decode metadata of %s: %w", e.ID, err)
	}
	if agentID.Valid {
		e.AgentID = agentID.String
	}
	if expiresAt.Valid {
		e.ExpiresAt = expiresAt.Int64
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
