// Package store is the persistence port: whole JSON collections keyed by
// name, written and reloaded as single rows. There are no transactional
// guarantees across keys, and concurrent sessions sharing one database
// resolve conflicts by last-save-wins.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"freshnest/internal/fault"
	"freshnest/internal/log"
)

// Collection keys. One logical record per key, holding a JSON array of
// entities owned by a single store.
const (
	KeyRequests      = "requests"
	KeyConversations = "conversations"
	KeyMessages      = "messages"
	KeyNotifications = "notifications"
)

type Store struct {
	DB  *sql.DB
	Now func() time.Time
	Log zerolog.Logger
}

func New(conn *sql.DB) Store {
	return Store{
		DB:  conn,
		Now: time.Now,
		Log: log.WithComponent("store"),
	}
}

// Load decodes the collection stored under key into out and reports whether
// anything usable was found. Missing, unreadable, or malformed payloads all
// count as absent so the caller can substitute its seed default; corrupt
// data is logged rather than surfaced.
func (s Store) Load(ctx context.Context, key string, out any) bool {
	var payload string
	err := s.DB.QueryRowContext(ctx, `SELECT payload_json FROM collections WHERE key=?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		s.Log.Warn().Err(err).Str("key", key).Msg("load collection failed, falling back to seed")
		return false
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		s.Log.Warn().Err(err).Str("key", key).Msg("corrupt collection payload, falling back to seed")
		return false
	}
	return true
}

// Save replaces the collection stored under key. A failure is returned as a
// PersistenceError for the caller to report; the caller's in-memory state
// is already mutated and is not rolled back.
func (s Store) Save(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return &fault.PersistenceError{Key: key, Err: err}
	}
	now := s.now().UTC().Format(time.RFC3339)
	_, err = s.DB.ExecContext(ctx, `INSERT INTO collections(key,payload_json,updated_at) VALUES (?,?,?)
ON CONFLICT(key) DO UPDATE SET payload_json=excluded.payload_json, updated_at=excluded.updated_at`, key, string(payload), now)
	if err != nil {
		return &fault.PersistenceError{Key: key, Err: err}
	}
	return nil
}

// Delete removes the collection stored under key. Used by reset flows.
func (s Store) Delete(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM collections WHERE key=?`, key); err != nil {
		return &fault.PersistenceError{Key: key, Err: err}
	}
	return nil
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
