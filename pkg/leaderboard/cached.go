package leaderboard

import (
	"context"
	"slices"
	"time"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/utils/cache"
	"github.com/mpapenbr/nebula-racers-go/pkg/utils/cache/loadercache"
)

// Cached keeps listed leaderboards for a while. Adding an entry drops the
// cached list of its lap count.
type Cached struct {
	store Store
	lists cache.Cache[int, []model.LeaderboardEntry]
}

var _ Store = (*Cached)(nil)

func NewCached(store Store, ttl time.Duration) *Cached {
	return &Cached{
		store: store,
		lists: loadercache.New(
			loadercache.WithExpiration[int, []model.LeaderboardEntry](ttl),
			loadercache.WithLogger[int, []model.LeaderboardEntry](
				log.Default().Named("leaderboard.cache")),
			loadercache.WithLoader(
				func(ctx context.Context, laps int) (*[]model.LeaderboardEntry, error) {
					entries, err := store.List(ctx, laps)
					if err != nil {
						return nil, err
					}
					return &entries, nil
				}),
		),
	}
}

func (c *Cached) List(ctx context.Context, laps int) ([]model.LeaderboardEntry, error) {
	if err := ValidateLaps(laps); err != nil {
		return nil, err
	}
	entries, err := c.lists.Get(ctx, laps)
	if err != nil {
		return nil, err
	}
	return slices.Clone(*entries), nil
}

func (c *Cached) Add(ctx context.Context, laps int, s Submission) error {
	defer c.lists.Invalidate(ctx, laps)
	return c.store.Add(ctx, laps, s)
}
