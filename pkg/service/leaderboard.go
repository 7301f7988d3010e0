package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/leaderboard"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	lbrepos "github.com/mpapenbr/nebula-racers-go/pkg/repository/leaderboard"
)

// LeaderboardService is a leaderboard.Store on postgres.
type LeaderboardService struct {
	pool *pgxpool.Pool
	l    *log.Logger
}

var _ leaderboard.Store = (*LeaderboardService)(nil)

func NewLeaderboardService(pool *pgxpool.Pool) *LeaderboardService {
	return &LeaderboardService{pool: pool, l: log.Default().Named("service.leaderboard")}
}

//nolint:whitespace // can't make both editor and linter happy
func (s *LeaderboardService) List(
	ctx context.Context,
	laps int,
) ([]model.LeaderboardEntry, error) {
	if err := leaderboard.ValidateLaps(laps); err != nil {
		return nil, err
	}
	items, err := lbrepos.LoadByLaps(ctx, s.pool, laps, model.LeaderboardCap)
	if err != nil {
		return nil, err
	}
	ret := make([]model.LeaderboardEntry, len(items))
	for i := range items {
		ret[i] = items[i].LeaderboardEntry
	}
	return ret, nil
}

// Add stores the entry and trims the lap count's leaderboard in one transaction.
func (s *LeaderboardService) Add(ctx context.Context, laps int, sub leaderboard.Submission) error {
	if err := leaderboard.ValidateLaps(laps); err != nil {
		return err
	}
	if err := leaderboard.ValidateSubmission(sub); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		entry := leaderboard.Entry(laps, sub, time.Time{})
		created, err := lbrepos.Create(ctx, tx, &entry)
		if err != nil {
			return err
		}
		num, err := lbrepos.Trim(ctx, tx, laps, model.LeaderboardCap)
		if err != nil {
			return err
		}
		s.l.Debug("added leaderboard entry",
			log.String("id", created.ID.String()),
			log.Int("laps", laps),
			log.Int("trimmed", num))
		return nil
	})
}
