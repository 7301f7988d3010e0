package terminal

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/leaderboard"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/race"
)

const (
	DefaultFPS = 20

	hideCursor  = "\x1b[?25l"
	showCursor  = "\x1b[?25h"
	clearScreen = "\x1b[2J"
)

var ErrQuit = errors.New("player quit")

// SessionFactory creates the session for the next race.
type SessionFactory func(ctx context.Context, cfg config.RaceConfig) (*race.Session, error)

// SizeFunc reports the terminal size in columns and rows.
type SizeFunc func() (cols, rows int)

type (
	ArcadeOption func(*Arcade)
	Arcade       struct {
		keys       *Keys
		out        io.Writer
		size       SizeFunc
		newSession SessionFactory
		store      leaderboard.Store
		race       config.RaceConfig
		fps        int
		online     bool
		l          *log.Logger

		entries []model.LeaderboardEntry
		message string
	}
)

func WithSize(f SizeFunc) ArcadeOption {
	return func(a *Arcade) {
		a.size = f
	}
}

// WithMenuLeaderboard is listed in the menu.
func WithMenuLeaderboard(store leaderboard.Store) ArcadeOption {
	return func(a *Arcade) {
		a.store = store
	}
}

// WithRaceConfig is the template for every race. The lap count is chosen
// in the menu.
func WithRaceConfig(cfg config.RaceConfig) ArcadeOption {
	return func(a *Arcade) {
		a.race = cfg
	}
}

func WithFPS(fps int) ArcadeOption {
	return func(a *Arcade) {
		a.fps = fps
	}
}

// WithOnline marks races as multiplayer in the menu.
func WithOnline(online bool) ArcadeOption {
	return func(a *Arcade) {
		a.online = online
	}
}

func WithArcadeLogger(l *log.Logger) ArcadeOption {
	return func(a *Arcade) {
		a.l = l
	}
}

func WithKeysOptions(opts ...KeysOption) ArcadeOption {
	return func(a *Arcade) {
		for _, opt := range opts {
			opt(a.keys)
		}
	}
}

func NewArcade(in io.Reader, out io.Writer, newSession SessionFactory, opts ...ArcadeOption) *Arcade {
	ret := &Arcade{
		keys:       NewKeys(in),
		out:        out,
		size:       func() (int, int) { return 80, 24 },
		newSession: newSession,
		race:       config.DefaultRaceConfig(),
		fps:        DefaultFPS,
		l:          log.Default().Named("arcade"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Run shows the menu and runs races until the player quits, the input
// ends or ctx is done.
func (a *Arcade) Run(ctx context.Context) error {
	a.write(hideCursor + clearScreen)
	defer a.write(showCursor)
	a.refreshEntries(ctx)

	ticker := time.NewTicker(time.Second / time.Duration(a.fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			cmds, _ := a.keys.Poll(now)
			if a.keys.Closed() {
				return nil
			}
			for _, cmd := range cmds {
				switch cmd {
				case CmdQuit:
					return nil
				case CmdLaps3, CmdLaps5, CmdLaps10:
					a.race.Laps = lapsOf(cmd)
					a.refreshEntries(ctx)
				case CmdStart:
					err := a.playRace(ctx)
					if errors.Is(err, ErrQuit) {
						return nil
					}
					if err != nil {
						a.l.Warn("race failed", log.ErrorField(err))
						a.message = "Race could not be started: " + err.Error()
					}
					a.write(clearScreen)
					a.refreshEntries(ctx)
				case CmdNone, CmdReset, CmdMenu:
				}
			}
			cols, rows := a.size()
			a.write(Frame(RenderMenu(MenuView{
				Name:    a.race.PlayerName,
				Laps:    a.race.Laps,
				Entries: a.entries,
				Message: a.message,
				Online:  a.online,
			}, cols, rows), cols))
		}
	}
}

func lapsOf(cmd Command) int {
	switch cmd {
	case CmdLaps5:
		return 5
	case CmdLaps10:
		return 10
	default:
		return 3
	}
}

func (a *Arcade) refreshEntries(ctx context.Context) {
	if a.store == nil {
		return
	}
	entries, err := a.store.List(ctx, a.race.Laps)
	if err != nil {
		a.l.Warn("could not load leaderboard", log.ErrorField(err))
		a.message = "Leaderboard unavailable"
		return
	}
	a.entries = entries
}

//nolint:funlen,cyclop // race loop
func (a *Arcade) playRace(ctx context.Context) error {
	a.message = ""
	session, err := a.newSession(ctx, a.race)
	if err != nil {
		return err
	}
	controls := &processing.Controls{}
	runner := processing.NewRunner(session,
		processing.WithControls(controls),
		processing.WithLogger(a.l.Named("runner")))
	sub := runner.Snapshots().Subscribe()

	raceCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- runner.Run(raceCtx) }()
	stop := func() {
		cancel()
		if err := <-done; err != nil {
			a.l.Warn("runner stopped", log.ErrorField(err))
		}
		runner.Close()
		if err := session.Close(); err != nil {
			a.l.Debug("session close", log.ErrorField(err))
		}
	}
	a.write(clearScreen)

	view := RaceView{Track: session.Track(), Layout: session.Layout()}
	ticker := time.NewTicker(time.Second / time.Duration(a.fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			stop()
			return nil
		case snap, ok := <-sub:
			if !ok {
				stop()
				return nil
			}
			view.Snapshot = snap
		case now := <-ticker.C:
			cmds, in := a.keys.Poll(now)
			controls.Set(in)
			if a.keys.Closed() {
				stop()
				return ErrQuit
			}
			for _, cmd := range cmds {
				switch cmd {
				case CmdQuit:
					stop()
					return ErrQuit
				case CmdMenu:
					stop()
					return nil
				case CmdStart:
					if view.Snapshot.State == model.StateFinished {
						stop()
						return nil
					}
				case CmdReset:
					if err := runner.Do(ctx, resetSession(a.l)); err != nil {
						stop()
						return err
					}
				case CmdNone, CmdLaps3, CmdLaps5, CmdLaps10:
				}
			}
			view.Throttle = a.keys.Throttle()
			cols, rows := a.size()
			a.write(Frame(RenderRace(view, cols, rows), cols))
		}
	}
}

func resetSession(l *log.Logger) func(*race.Session) {
	return func(s *race.Session) {
		if err := s.Reset(); err != nil {
			l.Debug("reset ignored", log.ErrorField(err))
		}
	}
}

func (a *Arcade) write(s string) {
	if _, err := io.WriteString(a.out, s); err != nil {
		a.l.Debug("write failed", log.ErrorField(err))
	}
}
