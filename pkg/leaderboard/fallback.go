package leaderboard

import (
	"context"
	"errors"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

type (
	FallbackOption func(*Fallback)
	// Fallback uses remote and switches to local whenever remote fails.
	// Invalid lap counts are not retried locally.
	Fallback struct {
		remote Store
		local  Store
		l      *log.Logger
	}
)

var _ Store = (*Fallback)(nil)

func WithFallbackLogger(l *log.Logger) FallbackOption {
	return func(f *Fallback) {
		f.l = l
	}
}

func NewFallback(remote, local Store, opts ...FallbackOption) *Fallback {
	ret := &Fallback{
		remote: remote,
		local:  local,
		l:      log.Default().Named("leaderboard"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (f *Fallback) List(ctx context.Context, laps int) ([]model.LeaderboardEntry, error) {
	if err := ValidateLaps(laps); err != nil {
		return nil, err
	}
	ret, err := f.remote.List(ctx, laps)
	if err == nil {
		return ret, nil
	}
	f.l.Warn("fetching leaderboard failed, using local store",
		log.Int("laps", laps), log.ErrorField(err))
	return f.local.List(ctx, laps)
}

func (f *Fallback) Add(ctx context.Context, laps int, s Submission) error {
	if err := ValidateLaps(laps); err != nil {
		return err
	}
	err := f.remote.Add(ctx, laps, s)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMissingField) {
		return err
	}
	f.l.Warn("submitting leaderboard entry failed, using local store",
		log.Int("laps", laps), log.ErrorField(err))
	return f.local.Add(ctx, laps, s)
}
