package lap

import (
	"math"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

const DefaultCheckpointCount = 8

type Event int

const (
	EventNone Event = iota
	// EventCompleted is a credited lap that does not end the race.
	EventCompleted
	// EventRejected is a start line crossing that did not count.
	EventRejected
	// EventFinished is a credited lap that reached the lap target.
	EventFinished
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventCompleted:
		return "completed"
	case EventRejected:
		return "rejected"
	case EventFinished:
		return "finished"
	}
	return "unknown"
}

// Tracker applies the checkpoint rules to a racer. It keeps no per racer
// state, everything lives in model.Racer.
type Tracker struct {
	checkpoints int
	strict      bool
	totalLaps   int
	logger      *log.Logger
}

type Option func(*Tracker)

func WithCheckpointCount(n int) Option {
	return func(t *Tracker) {
		if n > 1 {
			t.checkpoints = n
		}
	}
}

// WithStrictValidation requires every checkpoint of a lap before it counts.
func WithStrictValidation(strict bool) Option {
	return func(t *Tracker) {
		t.strict = strict
	}
}

func WithTotalLaps(laps int) Option {
	return func(t *Tracker) {
		t.totalLaps = laps
	}
}

func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

func NewTracker(opts ...Option) *Tracker {
	ret := &Tracker{
		checkpoints: DefaultCheckpointCount,
		strict:      true,
		totalLaps:   3,
		logger:      log.Default().Named("lap"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (t *Tracker) CheckpointCount() int { return t.checkpoints }
func (t *Tracker) TotalLaps() int       { return t.totalLaps }
func (t *Tracker) Strict() bool         { return t.strict }

// CheckpointIndex maps progress to its checkpoint.
func (t *Tracker) CheckpointIndex(progress float64) int {
	idx := int(math.Floor(progress * float64(t.checkpoints)))
	return min(max(idx, 0), t.checkpoints-1)
}

// Reset puts r back on the start line of lap 0.
func (t *Tracker) Reset(r *model.Racer) {
	r.Lap = 0
	r.Progress = 0
	r.LastProgress = 0
	r.LastCheckpoint = 0
	r.Checkpoints = model.CheckpointRecord{}
	r.Checkpoints.Ensure(0, t.checkpoints)[0] = true
}

// Update records progress for r. forward is the velocity component in the
// direction of travel, a crossing only counts if it is positive.
func (t *Tracker) Update(r *model.Racer, progress, forward float64) Event {
	if r.Checkpoints == nil {
		r.Checkpoints = model.CheckpointRecord{}
	}
	r.Progress = progress
	cur := t.CheckpointIndex(progress)
	r.Checkpoints.Ensure(r.Lap, t.checkpoints)[cur] = true

	ev := EventNone
	if cur == 0 && r.LastCheckpoint == t.checkpoints-1 {
		ev = t.handleCrossing(r, forward)
	}
	r.LastCheckpoint = cur
	return ev
}

func (t *Tracker) handleCrossing(r *model.Racer, forward float64) Event {
	if forward <= 0 {
		// reversing over the line
		return EventNone
	}
	if t.strict && !r.Checkpoints.AllPassed(r.Lap) {
		t.logger.Debug("lap rejected, circuit incomplete",
			log.String("racer", r.ID),
			log.Int("lap", r.Lap),
			log.Any("checkpoints", r.Checkpoints[r.Lap]))
		return EventRejected
	}
	r.Lap++
	rec := make([]bool, t.checkpoints)
	rec[0] = true
	r.Checkpoints[r.Lap] = rec
	t.logger.Debug("lap completed", log.String("racer", r.ID), log.Int("lap", r.Lap))
	if r.Lap >= t.totalLaps {
		return EventFinished
	}
	return EventCompleted
}

// Finished reports whether the racer has reached the lap target.
func (t *Tracker) Finished(r *model.Racer) bool {
	return r.Lap >= t.totalLaps
}
