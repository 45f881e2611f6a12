// Package sessionstore persists the remote browser profile (context) and
// session ids per source, so a login survives across process runs.
package sessionstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"milesfare-backend/internal/components/assert"
	"milesfare-backend/internal/components/chrono"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Profile struct {
	ContextID string
	SessionID string
	UpdatedAt time.Time
}

type Store struct {
	db         *sql.DB
	clock      chrono.API
	sessionTTL time.Duration
}

// Open opens (creating if needed) the sqlite database at path, ":memory:"
// is accepted. Session ids older than sessionTTL are not returned.
func Open(ctx context.Context, path string, sessionTTL time.Duration, clock chrono.API) (*Store, error) {
	assert.NotNil(clock)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a :memory: database lives only as long as its connection
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, Schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, clock: clock, sessionTTL: sessionTTL}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, source string, profile Profile) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into browser_profile(source, context_id, session_id, updated_at)
		values (?, ?, ?, ?)
		on conflict(source) do update set
			context_id = excluded.context_id,
			session_id = excluded.session_id,
			updated_at = excluded.updated_at`,
		source, profile.ContextID, profile.SessionID, s.clock.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save profile %s: %w", source, err)
	}
	return nil
}

// Get returns the stored profile for source, the bool is false when nothing
// is stored. An expired session id is returned as empty.
func (s *Store) Get(ctx context.Context, source string) (Profile, bool, error) {
	var profile Profile
	var updatedAt int64
	err := s.db.QueryRowContext(
		ctx,
		`select context_id, session_id, updated_at from browser_profile where source = ?`,
		source,
	).Scan(&profile.ContextID, &profile.SessionID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("get profile %s: %w", source, err)
	}

	profile.UpdatedAt = time.Unix(updatedAt, 0)
	if s.sessionTTL > 0 && s.clock.Now().Sub(profile.UpdatedAt) > s.sessionTTL {
		profile.SessionID = ""
	}
	return profile, true, nil
}

func (s *Store) ClearSession(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(
		ctx,
		`update browser_profile set session_id = '', updated_at = ? where source = ?`,
		s.clock.Now().Unix(), source,
	)
	if err != nil {
		return fmt.Errorf("clear session %s: %w", source, err)
	}
	return nil
}
