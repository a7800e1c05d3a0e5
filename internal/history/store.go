// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package history keeps an append-only record of applied settings revisions.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/dpmon/internal/persistence/sqlite"
	"github.com/ManuGH/dpmon/internal/settings"
)

const schemaVersion = 1

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// Revision is one recorded settings document.
type Revision struct {
	ID        int64             `json:"id"`
	Hash      string            `json:"hash"`
	Epoch     uint64            `json:"epoch"`
	Source    string            `json:"source"`
	Document  settings.Document `json:"document"`
	AppliedAt time.Time         `json:"applied_at"`
}

// Store persists revisions in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history store: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	current, err := sqlite.UserVersion(s.db)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS settings_revisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL,
		epoch INTEGER NOT NULL,
		source TEXT NOT NULL,
		body TEXT NOT NULL,
		applied_at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_settings_revisions_hash ON settings_revisions(hash);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Record appends snap unless it matches the newest stored revision.
// It reports whether a row was written.
func (s *Store) Record(ctx context.Context, snap *settings.Snapshot) (bool, error) {
	if snap == nil {
		return false, errors.New("history: nil snapshot")
	}

	var last string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM settings_revisions ORDER BY id DESC LIMIT 1`).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("history: read last revision: %w", err)
	case last == snap.Revision:
		return false, nil
	}

	body, err := json.Marshal(snap.Document)
	if err != nil {
		return false, fmt.Errorf("history: encode document: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings_revisions (hash, epoch, source, body, applied_at_ms) VALUES (?, ?, ?, ?, ?)`,
		snap.Revision, int64(snap.Epoch), snap.Source, string(body), snap.LoadedAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("history: insert revision: %w", err)
	}
	return true, nil
}

// List returns up to limit revisions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hash, epoch, source, body, applied_at_ms FROM settings_revisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Revision
	for rows.Next() {
		var (
			r     Revision
			epoch int64
			body  string
			ms    int64
		)
		if err := rows.Scan(&r.ID, &r.Hash, &epoch, &r.Source, &body, &ms); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		// Stored bodies were produced by json.Marshal of a Document, so the
		// lenient decoder is enough here.
		if err := json.Unmarshal([]byte(body), &r.Document); err != nil {
			return nil, fmt.Errorf("history: decode revision %d: %w", r.ID, err)
		}
		r.Epoch = uint64(epoch)
		r.AppliedAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Verify runs an integrity check on the database file.
func (s *Store) Verify(full bool) ([]string, error) {
	mode := "quick"
	if full {
		mode = "full"
	}
	return sqlite.VerifyIntegrity(s.path, mode)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Publisher adapts the store to settings.Publisher.
func (s *Store) Publisher() settings.Publisher { return publisher{s} }

type publisher struct{ s *Store }

func (p publisher) Name() string { return "history" }

func (p publisher) Publish(ctx context.Context, snap *settings.Snapshot) error {
	_, err := p.s.Record(ctx, snap)
	return err
}
