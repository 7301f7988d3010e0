//nolint:funlen // ok for tests
package race

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/leaderboard"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/multiplayer"
	"github.com/mpapenbr/nebula-racers-go/pkg/multiplayer/local"
	"github.com/mpapenbr/nebula-racers-go/pkg/track"
)

const countdown = 2

// fakeTransport records everything the session sends.
type fakeTransport struct {
	mu       sync.Mutex
	id       string
	state    model.ConnectionState
	joins    []multiplayer.PlayerJoin
	updates  []multiplayer.PlayerUpdate
	resets   []multiplayer.BroadcastReset
	closed   bool
	queue    *multiplayer.Queue
	failJoin error
}

var _ multiplayer.Transport = (*fakeTransport)(nil)

func newFakeTransport(id string) *fakeTransport {
	return &fakeTransport{id: id, state: model.ConnectionDisconnected}
}

func (f *fakeTransport) ID() string { return f.id }

func (f *fakeTransport) Connect(_ context.Context, q *multiplayer.Queue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = q
	f.state = model.ConnectionConnected
	return nil
}

func (f *fakeTransport) Join(_ context.Context, msg multiplayer.PlayerJoin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, msg)
	return f.failJoin
}

func (f *fakeTransport) Update(_ context.Context, msg multiplayer.PlayerUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, msg)
	return nil
}

func (f *fakeTransport) BroadcastReset(_ context.Context, msg multiplayer.BroadcastReset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, msg)
	return nil
}

func (f *fakeTransport) State() model.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.state = model.ConnectionDisconnected
	return nil
}

func raceConfig() config.RaceConfig {
	cfg := config.DefaultRaceConfig()
	cfg.CountdownTicks = countdown
	cfg.Seed = 42
	return cfg
}

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{
		WithLogger(log.NewNop()),
		WithLayoutOptions(track.WithObstacleCount(0), track.WithoutObstruction()),
	}, opts...)
	s, err := NewSession(raceConfig(), opts...)
	require.NoError(t, err)
	return s
}

func ticks(s *Session, n int, in model.ControlInput) model.Snapshot {
	var snap model.Snapshot
	for range n {
		snap = s.Tick(in)
	}
	return snap
}

func startRacing(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.Start(context.Background()))
	ticks(s, countdownPhases*countdown, model.ControlInput{})
	require.Equal(t, model.StateRacing, s.State())
}

func TestNewSessionSanitizesConfig(t *testing.T) {
	cfg := raceConfig()
	cfg.Laps = 4
	cfg.PlayerName = ""
	s, err := NewSession(cfg, WithLogger(log.NewNop()))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Config().Laps)
	assert.Equal(t, "Player", s.Local().Name)
	assert.Equal(t, model.StateMenu, s.State())
	assert.Len(t, s.Racers(), 1+NumAI)
}

func TestCountdown(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	start := s.Local().Position

	var labels []string
	forward := model.ControlInput{Forward: true}
	for range countdownPhases * countdown {
		labels = append(labels, s.CountdownLabel())
		snap := s.Tick(forward)
		if snap.State == model.StateCountdown {
			assert.Equal(t, start, snap.Local.Position, "controls are disabled")
		}
	}
	assert.Equal(t, []string{"3", "3", "2", "2", "1", "1", "GO!", "GO!"}, labels)
	assert.Equal(t, model.StateRacing, s.State())
	assert.Equal(t, int64(0), s.ElapsedMs())

	ticks(s, 60, forward)
	assert.Equal(t, int64(1000), s.ElapsedMs())
	assert.NotEqual(t, start, s.Local().Position)
}

func TestLanesAreUnique(t *testing.T) {
	s := newSession(t)
	for range 5 {
		if s.State() == model.StateMenu {
			require.NoError(t, s.Start(context.Background()))
		} else {
			require.NoError(t, s.Reset())
		}
		seen := map[int]bool{}
		for _, r := range s.Racers() {
			require.GreaterOrEqual(t, r.Lane, 1)
			require.LessOrEqual(t, r.Lane, track.NumLanes)
			require.False(t, seen[r.Lane], "lane %d used twice", r.Lane)
			seen[r.Lane] = true
		}
	}
}

func TestResetIsIdempotent(t *testing.T) {
	s := newSession(t)
	require.ErrorIs(t, s.Reset(), ErrNotStarted)
	startRacing(t, s)
	ticks(s, 200, model.ControlInput{Forward: true, Boost: true})
	require.Less(t, s.Local().BoostAmount, 100.0)
	s.Layout().Boosts[0].Active = false

	require.NoError(t, s.Reset())
	require.NoError(t, s.Reset())
	for _, r := range s.Racers() {
		assert.Equal(t, 0, r.Lap, r.ID)
		assert.InDelta(t, 0.0, r.Progress, 1e-9, r.ID)
		assert.InDelta(t, 100.0, r.BoostAmount, 1e-9, r.ID)
	}
	assert.Equal(t, model.StateCountdown, s.State())
	assert.Equal(t, int64(0), s.ElapsedMs())
	assert.True(t, s.Layout().Boosts[0].Active)
	assert.Equal(t, "3", s.CountdownLabel())
}

func TestSpeedAndBoostBoundsDuringRace(t *testing.T) {
	s := newSession(t)
	startRacing(t, s)
	inputs := []model.ControlInput{
		{Forward: true, Boost: true},
		{Forward: true, TurnLeft: true},
		{Brake: true, TurnRight: true},
		{Forward: true, Boost: true, TurnLeft: true},
	}
	for i := range 2000 {
		snap := s.Tick(inputs[(i/97)%len(inputs)])
		for _, r := range snap.Racers {
			require.GreaterOrEqual(t, r.BoostAmount, 0.0, r.ID)
			require.LessOrEqual(t, r.BoostAmount, 100.0, r.ID)
		}
		require.LessOrEqual(t, snap.Local.Velocity.Len(), 4.0+1e-9)
	}
}

func TestFullRaceWithAutopilot(t *testing.T) {
	store := leaderboard.NewMemory()
	var (
		mu        sync.Mutex
		submitted []model.Result
	)
	s := newSession(t,
		WithLeaderboard(store),
		WithSubmitHandler(func(res model.Result, err error) {
			mu.Lock()
			defer mu.Unlock()
			assert.NoError(t, err)
			submitted = append(submitted, res)
		}))
	startRacing(t, s)
	ap := NewAutopilot(s.Track(), s.Layout())
	ap.Lane(s.Local().Lane)

	for range 20000 {
		if s.State() != model.StateRacing {
			break
		}
		s.Tick(ap.Input(s.Local()))
	}
	require.Equal(t, model.StateFinished, s.State())
	res := s.Result()
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Laps)
	assert.Equal(t, "Player", res.Name)
	assert.Positive(t, res.TimeMs)
	assert.GreaterOrEqual(t, res.Position, 1)
	assert.LessOrEqual(t, res.Position, 1+NumAI)
	assert.Zero(t, s.Snapshot().RejectedLaps)

	// finished sessions stand still, AI racers included
	before := s.Local().Position
	aiBefore := lo.Map(s.aiRacers, func(r *model.Racer, _ int) model.Racer { return *r })
	ticks(s, 10, model.ControlInput{Forward: true})
	assert.Equal(t, before, s.Local().Position)
	for i, r := range s.aiRacers {
		assert.Equal(t, aiBefore[i].Position, r.Position, r.Name)
		assert.Equal(t, aiBefore[i].Lap, r.Lap, r.Name)
		assert.InDelta(t, aiBefore[i].Progress, r.Progress, 0, r.Name)
	}

	s.Wait()
	mu.Lock()
	assert.Len(t, submitted, 1)
	mu.Unlock()
	entries, err := store.List(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, leaderboard.IsOwnEntry(entries[0], res.Name, res.TimeMs, res.Laps))
}

func TestPortal(t *testing.T) {
	s := newSession(t, WithLayoutOptions(track.WithPortal("https://portal.example/")),
		WithReferrer("https://nebula.example/?x=1"))
	startRacing(t, s)
	s.Local().Position = s.Layout().Portal.Position
	snap := s.Tick(model.ControlInput{})
	assert.True(t, snap.PortalEntered)
	assert.Contains(t, snap.PortalURL, "https://portal.example/?")
	assert.Contains(t, snap.PortalURL, "username=Player")
	assert.Contains(t, snap.PortalURL, "speed=0.0")
	assert.Contains(t, snap.PortalURL, "ref=https%3A%2F%2Fnebula.example%2F")
	assert.NotContains(t, snap.PortalURL, "x%3D1")
}

func TestPortalURL(t *testing.T) {
	r := &model.Racer{Name: "", Color: "ff0000", Speed: 2.345}
	got := PortalURL(&model.Portal{URL: "https://portal.example/"}, r, "")
	assert.Equal(t, "https://portal.example/?color=%23ff0000&speed=2.3&username=Player", got)
	assert.Empty(t, PortalURL(nil, r, ""))
}

func TestMultiplayerStart(t *testing.T) {
	ft := newFakeTransport("me")
	s := newSession(t, WithTransport(ft))
	assert.Equal(t, "me", s.ID())
	assert.Equal(t, model.ConnectionDisconnected, s.Connection())

	startRacing(t, s)
	assert.Equal(t, model.ConnectionConnected, s.Connection())
	require.Len(t, ft.joins, 1)
	assert.Equal(t, "Player", ft.joins[0].Name)
	assert.InDelta(t, 1.0, ft.joins[0].Position.Y, 1e-9)

	ticks(s, 5, model.ControlInput{Forward: true})
	// the tick that ends the countdown already races
	assert.Len(t, ft.updates, 6)
	assert.True(t, ft.updates[5].Racing)
	assert.Empty(t, ft.resets)
}

func TestInboundMessages(t *testing.T) {
	name := "Remote"
	lap := 2
	ft := newFakeTransport("me")
	s := newSession(t, WithTransport(ft))
	startRacing(t, s)

	s.Inbox().Push(multiplayer.ExistingPlayers{Players: map[string]multiplayer.PlayerState{
		"me":    {Name: &name},
		"other": {Name: &name},
	}})
	s.Tick(model.ControlInput{})
	require.Equal(t, 1, s.Roster().Len())
	other, ok := s.Roster().Get("other")
	require.True(t, ok)
	assert.Equal(t, "Remote", other.Name)
	assert.Equal(t, model.StateRacing, s.State())

	s.Inbox().Push(multiplayer.PlayerMoved{ID: "other", PlayerState: multiplayer.PlayerState{
		Position: &multiplayer.Vec3{X: 10, Y: 1, Z: 0},
		Lap:      &lap,
	}})
	s.Tick(model.ControlInput{})
	assert.InDelta(t, 3.0, other.Position.X, 1e-9)
	assert.Equal(t, 2, other.Lap)
	assert.Len(t, s.Snapshot().Standings, 2+NumAI)

	s.Inbox().Push(multiplayer.PlayerLeft{ID: "other"})
	s.Tick(model.ControlInput{})
	assert.Equal(t, 0, s.Roster().Len())
}

func TestJoinWhileRacingResets(t *testing.T) {
	ft := newFakeTransport("me")
	s := newSession(t, WithTransport(ft))
	startRacing(t, s)
	ticks(s, 30, model.ControlInput{Forward: true})

	s.Inbox().Push(multiplayer.PlayerJoined{ID: "late"})
	snap := s.Tick(model.ControlInput{Forward: true})
	assert.Equal(t, model.StateCountdown, snap.State)
	assert.Equal(t, 1, s.Roster().Len())
	assert.Contains(t, snap.Notifications, NoticeJoinedReset)
	require.Len(t, ft.resets, 1)
	assert.Equal(t, "me", ft.resets[0].Initiator)
}

func TestJoinDuringCountdownIsQueued(t *testing.T) {
	ft := newFakeTransport("me")
	s := newSession(t, WithTransport(ft))
	require.NoError(t, s.Start(context.Background()))

	s.Inbox().Push(multiplayer.PlayerJoined{ID: "early"})
	s.Inbox().Push(multiplayer.PlayerJoined{ID: "early"})
	s.Tick(model.ControlInput{})
	assert.Equal(t, 0, s.Roster().Len())
	assert.Len(t, s.pending, 1)

	ticks(s, countdownPhases*countdown-1, model.ControlInput{})
	// queued joins are applied and everybody restarts from the line
	assert.Equal(t, model.StateCountdown, s.State())
	assert.Equal(t, 1, s.Roster().Len())
	assert.Empty(t, s.pending)
	assert.Contains(t, s.Snapshot().Notifications, NoticePendingReset)
	require.Len(t, ft.resets, 1)

	ticks(s, countdownPhases*countdown, model.ControlInput{})
	assert.Equal(t, model.StateRacing, s.State())
	assert.Len(t, ft.resets, 1)
}

func TestRemoteReset(t *testing.T) {
	ft := newFakeTransport("me")
	s := newSession(t, WithTransport(ft))
	startRacing(t, s)
	ticks(s, 30, model.ControlInput{Forward: true})

	s.Inbox().Push(multiplayer.RaceReset{Initiator: "me", Timestamp: 1})
	snap := s.Tick(model.ControlInput{Forward: true})
	assert.Equal(t, model.StateRacing, snap.State)
	assert.Empty(t, snap.Notifications)

	s.Inbox().Push(multiplayer.RaceReset{Initiator: "other", Timestamp: 2})
	snap = s.Tick(model.ControlInput{Forward: true})
	assert.Equal(t, model.StateCountdown, snap.State)
	assert.Contains(t, snap.Notifications, NoticeRemoteReset)
	assert.Empty(t, ft.resets, "a followed reset is not broadcast again")
	assert.Equal(t, int64(0), snap.ElapsedMs)
}

func TestDisconnect(t *testing.T) {
	name := "Remote"
	ft := newFakeTransport("me")
	s := newSession(t, WithTransport(ft))
	startRacing(t, s)
	s.Inbox().Push(multiplayer.PlayerJoined{ID: "a", PlayerState: multiplayer.PlayerState{Name: &name}})
	s.Tick(model.ControlInput{})
	require.Equal(t, 1, s.Roster().Len())
	require.NoError(t, s.Reset())
	ticks(s, countdownPhases*countdown, model.ControlInput{})

	s.Inbox().Push(multiplayer.Disconnect{Reason: "test"})
	snap := s.Tick(model.ControlInput{Forward: true})
	assert.Equal(t, 0, s.Roster().Len())
	assert.Equal(t, model.StateRacing, snap.State, "the race goes on")

	require.NoError(t, s.Disconnect())
	assert.True(t, ft.closed)
	assert.Equal(t, model.ConnectionDisconnected, s.Connection())
	require.NoError(t, s.ReturnToMenu())
	assert.Equal(t, model.StateMenu, s.State())
}

func TestNotificationsExpire(t *testing.T) {
	s := newSession(t)
	startRacing(t, s)
	s.notify("hello")
	snap := s.Tick(model.ControlInput{})
	assert.Equal(t, []string{"hello"}, snap.Notifications)
	snap = ticks(s, noticeSeconds*s.Config().TickRate, model.ControlInput{})
	assert.Empty(t, snap.Notifications)
}

// tickUntil ticks s until cond holds. Delivery through the hub is async.
func tickUntil(t *testing.T, s *Session, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		require.True(t, time.Now().Before(deadline), "condition not met in time")
		s.Tick(model.ControlInput{Forward: true})
		time.Sleep(time.Millisecond)
	}
}

func TestTwoSessionsInOneRoom(t *testing.T) {
	hub := local.NewHub("room", local.WithLogger(log.NewNop()))
	defer hub.Close()
	a := newSession(t, WithTransport(hub.NewTransport("a")))
	b := newSession(t, WithTransport(hub.NewTransport("b")))
	defer a.Close()
	defer b.Close()

	startRacing(t, a)
	require.NoError(t, b.Start(context.Background()))

	// a sees the newcomer while racing, restarts and tells b
	tickUntil(t, a, func() bool { return a.Roster().Len() == 1 })
	assert.Equal(t, model.StateCountdown, a.State())
	tickUntil(t, b, func() bool {
		return lo.Contains(b.Snapshot().Notifications, NoticeRemoteReset)
	})
	assert.Equal(t, model.StateCountdown, b.State())
	_, ok := b.Roster().Get("a")
	assert.True(t, ok)
}
