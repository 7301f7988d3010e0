package race

import (
	"math"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
	"github.com/mpapenbr/nebula-racers-go/pkg/track"
)

// Autopilot drives the local racer for headless races. It follows its
// start lane and swerves around obstacles on the way to its lookahead point.
type Autopilot struct {
	track     *track.Track
	layout    *model.TrackLayout
	lookahead float64 // in progress units
	deadband  float64 // heading error ignored, rad
	offset    float64 // current lateral offset from the centerline
	lane      int
}

type AutopilotOption func(*Autopilot)

func WithLookahead(progress float64) AutopilotOption {
	return func(a *Autopilot) {
		a.lookahead = progress
	}
}

func NewAutopilot(t *track.Track, layout *model.TrackLayout, opts ...AutopilotOption) *Autopilot {
	ret := &Autopilot{
		track:     t,
		layout:    layout,
		lookahead: 0.015,
		deadband:  0.02,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Lane resets the preferred offset to the center of lane.
func (a *Autopilot) Lane(lane int) {
	a.lane = lane
	a.offset = a.track.LaneRadius(lane) - a.track.Radius()
}

// Input computes the controls for r for the next tick. A lane change after
// a reset moves the preferred offset along.
func (a *Autopilot) Input(r *model.Racer) model.ControlInput {
	if r.Lane != a.lane {
		a.Lane(r.Lane)
	}
	p := a.track.ClosestProgress(r.Position)
	ahead := physics.Wrap01(p + a.lookahead)
	a.offset = a.clearOffset(r.Position, ahead)
	target := a.pointAt(ahead, a.offset)

	desired := physics.YawOf(target.Sub(r.Position))
	diff := physics.NormalizeAngle(desired - r.Heading)
	in := model.ControlInput{Forward: true}
	switch {
	case diff > a.deadband:
		in.TurnLeft = true
	case diff < -a.deadband:
		in.TurnRight = true
	}
	straight := math.Abs(diff) < 0.1
	in.Boost = straight && r.BoostAmount > 20
	return in
}

func (a *Autopilot) pointAt(p, offset float64) physics.Vec2 {
	radial := a.track.PointAt(p).Normalize()
	return radial.Scale(a.track.Radius() + offset)
}

// clearOffset keeps the current offset if the path is free, otherwise it
// picks the nearest free offset within the track.
func (a *Autopilot) clearOffset(from physics.Vec2, ahead float64) float64 {
	limit := a.track.Width()/2 - 4
	if a.pathClear(from, a.pointAt(ahead, a.offset)) {
		return a.offset
	}
	for step := 4.0; step <= 2*limit; step += 4 {
		for _, off := range []float64{a.offset - step, a.offset + step} {
			if math.Abs(off) > limit {
				continue
			}
			if a.pathClear(from, a.pointAt(ahead, off)) {
				return off
			}
		}
	}
	return a.offset
}

func (a *Autopilot) pathClear(from, to physics.Vec2) bool {
	for _, o := range a.layout.Obstacles {
		if segmentDistance(o.Position, from, to) < o.Radius+3 {
			return false
		}
	}
	return true
}

// segmentDistance is the distance from p to the segment a-b.
func segmentDistance(p, a, b physics.Vec2) float64 {
	ab := b.Sub(a)
	lenSq := ab.LenSq()
	if lenSq == 0 {
		return physics.Distance(p, a)
	}
	t := physics.Clamp(p.Sub(a).Dot(ab)/lenSq, 0, 1)
	return physics.Distance(p, a.Add(ab.Scale(t)))
}
