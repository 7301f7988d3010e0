// Package race drives a race session: countdown, the fixed step tick for
// the local, AI and remote racers, resets and the finish.
package race

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/leaderboard"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/multiplayer"
	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/ai"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/collision"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/lap"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/motion"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/ranking"
	"github.com/mpapenbr/nebula-racers-go/pkg/track"
)

// NumAI is the number of AI opponents of every race.
const NumAI = 7

const (
	countdownPhases = 4
	noticeSeconds   = 3
	inboxLimit      = 1024
	submitTimeout   = 10 * time.Second
	defaultPosition = track.NumLanes
)

const (
	NoticeJoinedReset    = "New player joined! Race reset."
	NoticePendingReset   = "New player(s) joined! Race reset."
	NoticeRemoteReset    = "Race reset by another player!"
	NoticeDisconnected   = "Disconnected from server"
	NoticeConnectFailure = "Multiplayer unavailable, racing offline"
)

var (
	ErrNotStarted     = errors.New("session not started")
	ErrAlreadyStarted = errors.New("session already started")
)

type (
	Option        func(*Session)
	SubmitHandler func(model.Result, error)
	notice        struct {
		text  string
		ticks int
	}
)

// Session owns the track, the racers and the race state. All methods except
// Wait must be called from the goroutine that drives Tick.
type Session struct {
	cfg        config.RaceConfig
	id         string
	track      *track.Track
	layout     *model.TrackLayout
	laps       *lap.Tracker
	integrator *motion.Integrator
	resolver   *collision.Resolver
	ai         *ai.Controller
	rnd        *rand.Rand
	l          *log.Logger

	layoutOpts []track.LayoutOption
	trackOpts  []track.Option
	referrer   string

	local    *model.Racer
	aiRacers []*model.Racer
	roster   *multiplayer.Roster
	pending  []multiplayer.PlayerJoined

	transport multiplayer.Transport
	inbox     *multiplayer.Queue
	ctx       context.Context

	store    leaderboard.Store
	onSubmit SubmitHandler
	wg       sync.WaitGroup

	state          model.SessionState
	countdownTicks int
	tick           uint64
	raceTicks      int64
	notices        []notice
	result         *model.Result
	portalURL      string
	portalEntered  bool
	obstacleHits   int
	offTrackTicks  int
	rejectedLaps   int
}

// WithID sets the local identity. Defaults to the transport id or a random uuid.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		s.l = l
	}
}

// WithTransport enables multiplayer.
func WithTransport(t multiplayer.Transport) Option {
	return func(s *Session) {
		s.transport = t
	}
}

// WithLeaderboard sets the store finished races are submitted to.
func WithLeaderboard(store leaderboard.Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithSubmitHandler is called with the outcome of every leaderboard submission.
func WithSubmitHandler(h SubmitHandler) Option {
	return func(s *Session) {
		s.onSubmit = h
	}
}

func WithLayoutOptions(opts ...track.LayoutOption) Option {
	return func(s *Session) {
		s.layoutOpts = append(s.layoutOpts, opts...)
	}
}

// WithReferrer is passed on as ref when the racer enters the portal.
func WithReferrer(ref string) Option {
	return func(s *Session) {
		s.referrer = ref
	}
}

func WithTrackOptions(opts ...track.Option) Option {
	return func(s *Session) {
		s.trackOpts = append(s.trackOpts, opts...)
	}
}

// NewSession creates a session in the menu state. Invalid race settings are
// replaced by their defaults.
func NewSession(cfg config.RaceConfig, opts ...Option) (*Session, error) {
	s := &Session{
		cfg:    cfg.Sanitized(),
		state:  model.StateMenu,
		roster: multiplayer.NewRoster(),
		inbox:  multiplayer.NewQueue(inboxLimit),
		ctx:    context.Background(),
		l:      log.Default().Named("race"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		if s.transport != nil {
			s.id = s.transport.ID()
		} else {
			s.id = uuid.NewString()
		}
	}
	seed := s.cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	var err error
	s.track, err = track.New(s.cfg.TrackLength, s.cfg.TrackWidth, s.trackOpts...)
	if err != nil {
		return nil, err
	}
	s.layout = s.track.GenerateLayout(s.rnd, s.layoutOpts...)
	s.laps = lap.NewTracker(
		lap.WithTotalLaps(s.cfg.Laps),
		lap.WithStrictValidation(!s.cfg.LenientLaps),
		lap.WithLogger(s.l.Named("lap")),
	)
	s.integrator = motion.NewIntegrator()
	s.resolver = collision.NewResolver(s.track, s.layout)
	s.ai = ai.NewController(s.track, s.resolver, s.laps,
		ai.WithRand(s.rnd),
		ai.WithLogger(s.l.Named("ai")),
	)
	s.local = &model.Racer{
		ID:    s.id,
		Name:  s.cfg.PlayerName,
		Kind:  model.KindHuman,
		Color: s.cfg.ShipColor,
	}
	s.aiRacers = s.ai.NewRacers(NumAI)
	return s, nil
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) State() model.SessionState   { return s.state }
func (s *Session) Track() *track.Track         { return s.track }
func (s *Session) Layout() *model.TrackLayout  { return s.layout }
func (s *Session) Config() config.RaceConfig   { return s.cfg }
func (s *Session) Local() *model.Racer         { return s.local }
func (s *Session) Roster() *multiplayer.Roster { return s.roster }

// Result is set once the local racer finished.
func (s *Session) Result() *model.Result { return s.result }

func (s *Session) Connection() model.ConnectionState {
	if s.transport == nil {
		return model.ConnectionDisconnected
	}
	return s.transport.State()
}

func (s *Session) connected() bool {
	return s.Connection() == model.ConnectionConnected
}

// Racers returns the local, AI and remote racers.
func (s *Session) Racers() []*model.Racer {
	ret := make([]*model.Racer, 0, 1+len(s.aiRacers)+s.roster.Len())
	ret = append(ret, s.local)
	ret = append(ret, s.aiRacers...)
	return append(ret, s.roster.Racers()...)
}

// ElapsedMs is the race time, counted from the end of the countdown.
func (s *Session) ElapsedMs() int64 {
	return s.raceTicks * 1000 / int64(s.cfg.TickRate)
}

// Start leaves the menu and begins the countdown. A failing transport does
// not prevent the start, the race continues without multiplayer.
func (s *Session) Start(ctx context.Context) error {
	if s.state != model.StateMenu {
		return ErrAlreadyStarted
	}
	s.ctx = ctx
	s.resetLocal()
	if s.transport != nil && s.transport.State() == model.ConnectionDisconnected {
		s.connect(ctx)
	}
	return nil
}

func (s *Session) connect(ctx context.Context) {
	if err := s.transport.Connect(ctx, s.inbox); err != nil {
		s.l.Warn("could not connect to multiplayer", log.ErrorField(err))
		s.notify(NoticeConnectFailure)
		return
	}
	join := multiplayer.PlayerJoin{
		Name:      s.local.Name,
		Position:  position3(s.local),
		Rotation:  rotation(s.local),
		ShipColor: s.local.Color,
	}
	if err := s.transport.Join(ctx, join); err != nil {
		s.l.Warn("could not join room", log.ErrorField(err))
	}
}

// Reset puts every racer back on the start line, restarts the countdown and
// tells the other participants to do the same.
func (s *Session) Reset() error {
	if s.state == model.StateMenu {
		return ErrNotStarted
	}
	s.resetAndBroadcast()
	return nil
}

func (s *Session) resetAndBroadcast() {
	s.resetLocal()
	if !s.connected() {
		return
	}
	msg := multiplayer.BroadcastReset{Initiator: s.id, Timestamp: time.Now().UnixMilli()}
	if err := s.transport.BroadcastReset(s.ctx, msg); err != nil {
		s.l.Warn("could not broadcast reset", log.ErrorField(err))
	}
}

// resetLocal is idempotent, it never emits anything.
func (s *Session) resetLocal() {
	s.state = model.StateCountdown
	s.countdownTicks = countdownPhases * s.cfg.CountdownTicks
	s.raceTicks = 0
	s.result = nil
	s.portalEntered = false
	s.portalURL = ""
	s.obstacleHits = 0
	s.offTrackTicks = 0
	s.rejectedLaps = 0

	lane := 1 + s.rnd.IntN(track.NumLanes)
	r := s.local
	s.laps.Reset(r)
	r.Lane = lane
	r.Position, r.Heading = s.track.StartPosition(lane)
	r.Height = 1
	r.Tilt = 0
	r.Velocity = physics.Vec2{}
	r.Speed = 0
	r.BoostAmount = s.integrator.Params().MaxBoost
	r.Boosting = false
	r.Racing = false

	s.ai.Reset(s.aiRacers, lane)
	s.layout.ResetBoosts()
	s.roster.ResetAll()
	for _, p := range s.pending {
		s.roster.Add(p.ID, p.PlayerState)
	}
	s.pending = nil
	s.l.Debug("race reset", log.Int("lane", lane))
}

// Disconnect leaves the room and drops all remote racers.
func (s *Session) Disconnect() error {
	if s.transport == nil {
		return nil
	}
	err := s.transport.Close()
	s.transport = nil
	s.roster.Clear()
	s.pending = nil
	return err
}

// ReturnToMenu ends the race. Multiplayer is disconnected.
func (s *Session) ReturnToMenu() error {
	err := s.Disconnect()
	s.state = model.StateMenu
	s.local.Racing = false
	for _, r := range s.aiRacers {
		r.Racing = false
	}
	return err
}

// Close disconnects and waits for pending leaderboard submissions.
func (s *Session) Close() error {
	err := s.Disconnect()
	s.wg.Wait()
	return err
}

// Wait blocks until all leaderboard submissions are done.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Tick advances the session by one fixed step.
func (s *Session) Tick(in model.ControlInput) model.Snapshot {
	s.tick++
	s.drainInbox()
	s.ageNotices()

	switch s.state {
	case model.StateCountdown:
		s.countdownTicks--
		if s.countdownTicks <= 0 {
			s.startRacing()
		}
	case model.StateRacing:
		s.raceTicks++
		s.stepLocal(in)
		if s.state == model.StateRacing {
			s.stepAI()
		}
	case model.StateMenu, model.StateFinished:
	}

	if s.state == model.StateRacing && s.connected() {
		s.sendUpdate()
	}
	return s.Snapshot()
}

func (s *Session) startRacing() {
	s.state = model.StateRacing
	s.raceTicks = 0
	s.local.Racing = true
	if len(s.pending) > 0 && s.connected() {
		s.notify(NoticePendingReset)
		s.resetAndBroadcast()
	}
}

// nowMs is the simulated time since the session was created.
func (s *Session) nowMs() float64 {
	return float64(s.tick) * 1000 / float64(s.cfg.TickRate)
}

func (s *Session) stepLocal(in model.ControlInput) {
	r := s.local
	prev := s.integrator.Step(r, in)

	out := s.resolver.ResolveHuman(r)
	switch {
	case out.Portal:
		if !s.portalEntered {
			s.portalEntered = true
			s.portalURL = PortalURL(s.layout.Portal, r, s.referrer)
			s.l.Info("portal entered", log.String("url", s.portalURL))
		}
	case out.Blocking:
		r.Position = prev
		s.integrator.Damp(r, 0.5)
		s.obstacleHits++
	}
	if s.resolver.NudgeIntoTrack(r) {
		s.integrator.Damp(r, 0.95)
		s.offTrackTicks++
	}

	progress := s.track.ClosestProgress(r.Position)
	forward := r.Velocity.Dot(s.track.TangentAt(progress))
	r.LastProgress = r.Progress
	switch s.laps.Update(r, progress, forward) {
	case lap.EventRejected:
		s.rejectedLaps++
		s.l.Info("lap not credited, circuit incomplete", log.Int("lap", r.Lap))
	case lap.EventCompleted:
		s.l.Debug("lap completed", log.Int("lap", r.Lap), log.Int("of", s.cfg.Laps))
	case lap.EventFinished:
		s.finish()
	case lap.EventNone:
	}
}

func (s *Session) stepAI() {
	standings := ranking.Rank(s.Racers())
	position := func(r *model.Racer) int {
		return ranking.Position(standings, r.ID)
	}
	now := s.nowMs()
	for _, r := range s.aiRacers {
		s.ai.Step(r, now, position)
	}
}

func (s *Session) finish() {
	s.state = model.StateFinished
	s.local.Racing = false
	racers := s.Racers()
	pos := defaultPosition
	if p := ranking.PositionOf(racers, s.local.ID); p <= len(racers) {
		pos = p
	}
	s.result = &model.Result{
		Name:     s.local.Name,
		TimeMs:   s.ElapsedMs(),
		Position: pos,
		Laps:     s.cfg.Laps,
	}
	s.l.Info("race finished",
		log.String("name", s.result.Name),
		log.Int64("time", s.result.TimeMs),
		log.Int("position", s.result.Position),
		log.Int("laps", s.result.Laps))
	s.submit(*s.result)
}

// submit posts the result in the background.
func (s *Session) submit(res model.Result) {
	if s.store == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		err := s.store.Add(ctx, res.Laps, leaderboard.Submission{
			Name:     res.Name,
			Time:     res.TimeMs,
			Position: res.Position,
		})
		if err != nil {
			s.l.Warn("leaderboard submission failed", log.ErrorField(err))
		}
		if s.onSubmit != nil {
			s.onSubmit(res, err)
		}
	}()
}

func (s *Session) sendUpdate() {
	r := s.local
	msg := multiplayer.PlayerUpdate{
		Position: position3(r),
		Rotation: rotation(r),
		Lap:      r.Lap,
		Progress: r.Progress,
		Racing:   r.Racing,
	}
	if err := s.transport.Update(s.ctx, msg); err != nil {
		s.l.Debug("could not send update", log.ErrorField(err))
	}
}

func (s *Session) notify(text string) {
	s.notices = append(s.notices, notice{text: text, ticks: noticeSeconds * s.cfg.TickRate})
}

func (s *Session) ageNotices() {
	kept := s.notices[:0]
	for _, n := range s.notices {
		n.ticks--
		if n.ticks > 0 {
			kept = append(kept, n)
		}
	}
	s.notices = kept
}

// CountdownLabel is the text shown for the current countdown phase.
func (s *Session) CountdownLabel() string {
	if s.state != model.StateCountdown {
		return ""
	}
	elapsed := countdownPhases*s.cfg.CountdownTicks - s.countdownTicks
	switch elapsed / s.cfg.CountdownTicks {
	case 0:
		return "3"
	case 1:
		return "2"
	case 2:
		return "1"
	}
	return "GO!"
}

func position3(r *model.Racer) multiplayer.Vec3 {
	return multiplayer.Vec3{X: r.Position.X, Y: r.Height, Z: r.Position.Z}
}

func rotation(r *model.Racer) multiplayer.Rotation {
	return multiplayer.Rotation{Y: r.Heading, Z: r.Tilt}
}
