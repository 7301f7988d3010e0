package collision

import (
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
	"github.com/mpapenbr/nebula-racers-go/pkg/track"
)

// Params holds the clearances and responses of the resolver.
type Params struct {
	ObstacleClearance    float64
	PickupClearance      float64
	ObstructionClearance float64
	ObstructionDamping   float64
	PickupAmount         float64
	MaxBoost             float64
	BoundaryNudge        float64
}

func DefaultParams() Params {
	return Params{
		ObstacleClearance:    1.5,
		PickupClearance:      2,
		ObstructionClearance: 2,
		ObstructionDamping:   0.3,
		PickupAmount:         30,
		MaxBoost:             100,
		BoundaryNudge:        0.02,
	}
}

// Outcome describes what happened during one ResolveHuman call.
type Outcome struct {
	// Portal is set when the racer entered the exit portal. No other
	// checks run in that case.
	Portal      bool
	Blocking    bool
	Obstruction bool
	Obstacle    int // index of the obstacle hit, -1 if none
	Pickups     int
}

type Resolver struct {
	track  *track.Track
	layout *model.TrackLayout
	params Params
}

type Option func(*Resolver)

func WithParams(p Params) Option {
	return func(r *Resolver) {
		r.params = p
	}
}

func NewResolver(t *track.Track, layout *model.TrackLayout, opts ...Option) *Resolver {
	ret := &Resolver{track: t, layout: layout, params: DefaultParams()}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// ResolveHuman runs the portal, obstruction, obstacle and pickup checks for
// the velocity driven racer. The caller restores the prior position and
// damps the velocity if the outcome is blocking.
func (c *Resolver) ResolveHuman(r *model.Racer) Outcome {
	out := Outcome{Obstacle: -1}
	if p := c.layout.Portal; p != nil {
		if physics.Distance(r.Position, p.Position) < p.Radius {
			out.Portal = true
			return out
		}
	}
	if o := c.layout.Obstruction; o != nil {
		limit := o.Radius + c.params.ObstructionClearance
		if physics.Distance(r.Position, o.Center) < limit {
			dir := r.Position.Sub(o.Center).Normalize()
			if dir == (physics.Vec2{}) {
				dir = physics.V(1, 0)
			}
			r.Position = o.Center.Add(dir.Scale(limit))
			r.Velocity = r.Velocity.Scale(c.params.ObstructionDamping)
			r.Speed = r.Velocity.Len()
			out.Obstruction = true
			out.Blocking = true
		}
	}
	if idx := c.ObstacleHit(r.Position); idx >= 0 {
		out.Obstacle = idx
		out.Blocking = true
	}
	out.Pickups = c.CollectPickups(r)
	return out
}

// ObstacleHit returns the index of the first obstacle overlapping pos or -1.
func (c *Resolver) ObstacleHit(pos physics.Vec2) int {
	for i := range c.layout.Obstacles {
		o := &c.layout.Obstacles[i]
		if physics.Distance(pos, o.Position) < o.Radius+c.params.ObstacleClearance {
			return i
		}
	}
	return -1
}

// CollectPickups deactivates every active boost item in reach of r and
// refills its reserve.
func (c *Resolver) CollectPickups(r *model.Racer) int {
	n := 0
	for i := range c.layout.Boosts {
		b := &c.layout.Boosts[i]
		if !b.Active {
			continue
		}
		if physics.Distance(r.Position, b.Position) < b.Radius+c.params.PickupClearance {
			b.Active = false
			r.BoostAmount = physics.Clamp(r.BoostAmount+c.params.PickupAmount, 0, c.params.MaxBoost)
			n++
		}
	}
	return n
}

// NudgeIntoTrack moves an off track racer slightly back towards the track.
// It reports whether the racer was off track.
func (c *Resolver) NudgeIntoTrack(r *model.Racer) bool {
	d := c.track.DistanceFromCenter(r.Position)
	dir := r.Position.Sub(c.track.Center()).Normalize()
	switch {
	case d < c.track.InnerBoundary():
		r.Position = r.Position.Add(dir.Scale(c.params.BoundaryNudge))
	case d > c.track.OuterBoundary():
		r.Position = r.Position.Sub(dir.Scale(c.params.BoundaryNudge))
	default:
		return false
	}
	return true
}
