// Package processing runs race sessions in real time and publishes their
// snapshots to subscribers.
package processing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/race"
	"github.com/mpapenbr/nebula-racers-go/pkg/utils/broadcast"
)

const (
	snapshotBuffer = 8
	commandBuffer  = 16
)

// Controls holds the latest input of a player. Frontends write it from their
// own goroutine, the runner reads it once per tick.
type Controls struct {
	mu sync.Mutex
	in model.ControlInput
}

func (c *Controls) Set(in model.ControlInput) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.in = in
}

func (c *Controls) Get() model.ControlInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.in
}

type (
	InputFunc func() model.ControlInput
	Option    func(*Runner)
)

// Runner drives a session with a fixed step and publishes a snapshot after
// every tick.
type Runner struct {
	session      *race.Session
	interval     time.Duration
	input        InputFunc
	stopOnFinish bool
	source       chan model.Snapshot
	snapshots    broadcast.Server[model.Snapshot]
	cmds         chan func(*race.Session)
	l            *log.Logger

	lastLap   int
	lastState model.SessionState
	attrs     metric.MeasurementOption
	ticks     metric.Int64Counter
	laps      metric.Int64Counter
	finished  metric.Int64Counter
	active    metric.Int64UpDownCounter
}

func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		r.l = l
	}
}

// WithInterval sets the wall clock time between ticks. Zero runs the
// session as fast as possible.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		r.interval = d
	}
}

func WithInput(f InputFunc) Option {
	return func(r *Runner) {
		r.input = f
	}
}

func WithControls(c *Controls) Option {
	return WithInput(c.Get)
}

// WithAutopilot lets the local racer drive itself.
func WithAutopilot() Option {
	return func(r *Runner) {
		ap := race.NewAutopilot(r.session.Track(), r.session.Layout())
		r.input = func() model.ControlInput {
			return ap.Input(r.session.Local())
		}
	}
}

// WithStopOnFinish ends Run once the local racer finished.
func WithStopOnFinish() Option {
	return func(r *Runner) {
		r.stopOnFinish = true
	}
}

func NewRunner(session *race.Session, opts ...Option) *Runner {
	ret := &Runner{
		session:  session,
		interval: time.Second / time.Duration(session.Config().TickRate),
		input:    func() model.ControlInput { return model.ControlInput{} },
		source:   make(chan model.Snapshot, snapshotBuffer),
		cmds:     make(chan func(*race.Session), commandBuffer),
		l:        log.Default().Named("runner"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.snapshots = broadcast.NewServer(
		"snapshot", session.ID(), ret.source,
		broadcast.WithLogger[model.Snapshot](ret.l.Named("broadcast")),
		broadcast.WithBuffer[model.Snapshot](snapshotBuffer),
		broadcast.WithTelemetry[model.Snapshot](),
	)
	ret.setupMetrics()
	return ret
}

func (r *Runner) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("nrg.race")
	r.attrs = metric.WithAttributes(
		attribute.String("session", r.session.ID()),
		attribute.Int("laps", r.session.Config().Laps),
	)
	var err error
	if r.ticks, err = meter.Int64Counter("nrg.race.ticks",
		metric.WithDescription("Number of simulated ticks")); err != nil {
		r.l.Error("failed to register metric", log.ErrorField(err))
	}
	if r.laps, err = meter.Int64Counter("nrg.race.laps",
		metric.WithDescription("Number of laps completed by local racers")); err != nil {
		r.l.Error("failed to register metric", log.ErrorField(err))
	}
	if r.finished, err = meter.Int64Counter("nrg.race.finished",
		metric.WithDescription("Number of finished races")); err != nil {
		r.l.Error("failed to register metric", log.ErrorField(err))
	}
	if r.active, err = meter.Int64UpDownCounter("nrg.race.active",
		metric.WithDescription("Number of running sessions")); err != nil {
		r.l.Error("failed to register metric", log.ErrorField(err))
	}
}

// Snapshots is where the state after every tick is published.
func (r *Runner) Snapshots() broadcast.Server[model.Snapshot] {
	return r.snapshots
}

func (r *Runner) Session() *race.Session {
	return r.session
}

// Do hands f to the goroutine driving the session. It runs before the next
// tick, session methods must not be called from anywhere else while Run is
// active.
func (r *Runner) Do(ctx context.Context, f func(*race.Session)) error {
	select {
	case r.cmds <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) runCommands() {
	for {
		select {
		case f := <-r.cmds:
			f(r.session)
		default:
			return
		}
	}
}

// Step performs a single tick. A snapshot nobody picks up in time is dropped.
func (r *Runner) Step(ctx context.Context) model.Snapshot {
	snap := r.session.Tick(r.input())
	if r.ticks != nil {
		r.ticks.Add(ctx, 1, r.attrs)
	}
	if snap.Local.Lap > r.lastLap && r.laps != nil {
		r.laps.Add(ctx, int64(snap.Local.Lap-r.lastLap), r.attrs)
	}
	r.lastLap = snap.Local.Lap
	finished := snap.State == model.StateFinished && r.lastState != model.StateFinished
	if finished && r.finished != nil {
		r.finished.Add(ctx, 1, r.attrs)
	}
	r.lastState = snap.State

	select {
	case r.source <- snap:
	default:
		r.l.Debug("snapshot dropped", log.Uint64("tick", snap.Tick))
	}
	return snap
}

// Run starts the session if needed and ticks it until ctx is done. With
// WithStopOnFinish it returns once the race is finished.
func (r *Runner) Run(ctx context.Context) error {
	if r.session.State() == model.StateMenu {
		if err := r.session.Start(ctx); err != nil {
			return err
		}
	}
	if r.active != nil {
		r.active.Add(ctx, 1, r.attrs)
		defer r.active.Add(context.Background(), -1, r.attrs)
	}
	r.l.Info("session running",
		log.String("id", r.session.ID()),
		log.Duration("interval", r.interval))

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		r.runCommands()
		snap := r.Step(ctx)
		if r.stopOnFinish && snap.State == model.StateFinished {
			r.l.Info("session finished", log.String("id", r.session.ID()))
			return nil
		}
	}
}

// Close stops publishing and closes all subscriptions.
func (r *Runner) Close() {
	r.snapshots.Close()
}
