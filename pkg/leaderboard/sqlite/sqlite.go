// Package sqlite keeps leaderboard entries in a local sqlite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/db/migrate"
	"github.com/mpapenbr/nebula-racers-go/pkg/leaderboard"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

type (
	Option func(*Store)
	Store  struct {
		db  *sql.DB
		l   *log.Logger
		now func() time.Time
	}
)

var _ leaderboard.Store = (*Store)(nil)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.l = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (or creates) the sqlite file at path and applies the schema.
// Use ":memory:" for a throw-away store.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// sqlite allows one writer, and ":memory:" is per connection
	db.SetMaxOpenConns(1)
	if err := migrate.MigrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite %s: %w", path, err)
	}
	ret := &Store{
		db:  db,
		l:   log.Default().Named("leaderboard.sqlite"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context, laps int) ([]model.LeaderboardEntry, error) {
	if err := leaderboard.ValidateLaps(laps); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT name, time_ms, position, laps, created_at FROM leaderboard
WHERE laps = ? ORDER BY time_ms, rowid LIMIT ?`, laps, model.LeaderboardCap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		var created int64
		if err := rows.Scan(&e.Name, &e.Time, &e.Position, &e.Laps, &created); err != nil {
			return nil, err
		}
		e.Date = time.UnixMilli(created).UTC()
		ret = append(ret, e)
	}
	return ret, rows.Err()
}

func (s *Store) Add(ctx context.Context, laps int, sub leaderboard.Submission) error {
	if err := leaderboard.ValidateLaps(laps); err != nil {
		return err
	}
	if err := leaderboard.ValidateSubmission(sub); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	//nolint:errcheck // rollback after commit is a no-op
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO leaderboard (id, laps, name, time_ms, position, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), laps, sub.Name, sub.Time, sub.Position,
		s.now().UnixMilli()); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
DELETE FROM leaderboard WHERE laps = ? AND rowid NOT IN (
	SELECT rowid FROM leaderboard WHERE laps = ? ORDER BY time_ms, rowid LIMIT ?)`,
		laps, laps, model.LeaderboardCap)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.l.Debug("trimmed leaderboard", log.Int("laps", laps), log.Int64("removed", n))
	}
	return tx.Commit()
}
