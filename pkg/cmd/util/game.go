package util

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/leaderboard"
	"github.com/mpapenbr/nebula-racers-go/pkg/leaderboard/sqlite"
	mpnats "github.com/mpapenbr/nebula-racers-go/pkg/multiplayer/nats"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/race"
	"github.com/mpapenbr/nebula-racers-go/pkg/terminal"
	"github.com/mpapenbr/nebula-racers-go/pkg/utils"
)

const (
	leaderboardCheckTimeout = 5 * time.Second
	menuCacheTTL            = 30 * time.Second
)

// Game bundles what the frontends need to create races: the leaderboard
// store and an optional connection to the multiplayer broker.
type Game struct {
	Store   leaderboard.Store
	Menu    leaderboard.Store
	conn    *nats.Conn
	closers []func() error
}

// NewGame opens the leaderboard and, if a nats url is configured, connects
// to the broker. Without a leaderboard url only the local fallback file is
// used. Without a fallback file results are kept in memory.
func NewGame() (*Game, error) {
	ret := &Game{}
	var local leaderboard.Store
	if config.FallbackFile != "" {
		store, err := sqlite.Open(config.FallbackFile)
		if err != nil {
			return nil, err
		}
		ret.closers = append(ret.closers, store.Close)
		local = store
	} else {
		local = leaderboard.NewMemory()
	}
	ret.Store = local
	if config.LeaderboardURL != "" {
		checkLeaderboard(config.LeaderboardURL)
		ret.Store = leaderboard.NewFallback(leaderboard.NewClient(config.LeaderboardURL), local)
	}
	ret.Menu = leaderboard.NewCached(ret.Store, menuCacheTTL)

	if config.NatsURL != "" {
		WaitForServices(utils.ExtractFromNatsURL(config.NatsURL))
		conn, err := nats.Connect(config.NatsURL)
		if err != nil {
			ret.Close()
			return nil, err
		}
		ret.conn = conn
		ret.closers = append(ret.closers, func() error {
			return conn.Drain()
		})
	}
	return ret, nil
}

// checkLeaderboard only reports an unreachable service, races fall back to
// the local store anyway.
func checkLeaderboard(url string) {
	if err := utils.WaitForHTTPResponse(context.Background(), url, leaderboardCheckTimeout); err != nil {
		log.Warn("leaderboard service not reachable, using local store",
			log.String("url", url), log.ErrorField(err))
	}
}

func (g *Game) Online() bool {
	return g.conn != nil
}

// SessionFactory creates sessions that submit to the game's store. The
// session id is also the multiplayer id of the player.
func (g *Game) SessionFactory(l *log.Logger) terminal.SessionFactory {
	return func(_ context.Context, cfg config.RaceConfig) (*race.Session, error) {
		id := uuid.NewString()
		opts := []race.Option{
			race.WithID(id),
			race.WithLogger(l.Named("race")),
			race.WithLeaderboard(g.Menu),
		}
		if g.conn != nil {
			opts = append(opts, race.WithTransport(
				mpnats.NewTransport(g.conn, id,
					mpnats.WithRoom(config.Room),
					mpnats.WithLogger(l.Named("nats")))))
		}
		return race.NewSession(cfg, opts...)
	}
}

func (g *Game) Close() error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		errs = append(errs, g.closers[i]())
	}
	return errors.Join(errs...)
}
