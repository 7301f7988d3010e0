package track

import (
	"errors"
	"fmt"
	"math"

	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
)

const (
	MinSamples = 100
	NumLanes   = 8
)

var ErrInvalidDimensions = errors.New("invalid track dimensions")

// Track is a closed circular centerline around the origin.
// Progress 0 is the start/finish line at (R, 0), travel is counter clockwise
// in the x/z plane.
type Track struct {
	radius  float64
	width   float64
	samples int
	refine  bool
}

type Option func(*Track)

// WithSamples sets the number of samples used by ClosestProgress.
// Values below MinSamples are raised to MinSamples.
func WithSamples(n int) Option {
	return func(t *Track) {
		t.samples = max(n, MinSamples)
	}
}

// WithRefinement enables a local search around the best sample.
func WithRefinement(enabled bool) Option {
	return func(t *Track) {
		t.refine = enabled
	}
}

// New creates a track from the length of its centerline.
func New(length, width float64, opts ...Option) (*Track, error) {
	return NewWithRadius(length/(2*math.Pi), width, opts...)
}

func NewWithRadius(radius, width float64, opts ...Option) (*Track, error) {
	if width <= 0 || radius-width/2 <= 0 {
		return nil, fmt.Errorf("%w: radius=%v width=%v", ErrInvalidDimensions, radius, width)
	}
	t := &Track{radius: radius, width: width, samples: MinSamples}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Track) Radius() float64        { return t.radius }
func (t *Track) Width() float64         { return t.width }
func (t *Track) InnerBoundary() float64 { return t.radius - t.width/2 }
func (t *Track) OuterBoundary() float64 { return t.radius + t.width/2 }
func (t *Track) Center() physics.Vec2   { return physics.Vec2{} }

// PointAt returns the centerline position at progress p (taken modulo 1).
func (t *Track) PointAt(p float64) physics.Vec2 {
	a := 2 * math.Pi * physics.Wrap01(p)
	return physics.V(t.radius*math.Cos(a), t.radius*math.Sin(a))
}

// TangentAt returns the unit direction of travel at progress p.
func (t *Track) TangentAt(p float64) physics.Vec2 {
	a := 2 * math.Pi * physics.Wrap01(p)
	return physics.V(-math.Sin(a), math.Cos(a))
}

// NormalAt is the tangent rotated by 90 degrees, it points to the track center.
func (t *Track) NormalAt(p float64) physics.Vec2 {
	return t.TangentAt(p).Perp()
}

func (t *Track) DistanceFromCenter(pos physics.Vec2) float64 {
	return physics.Distance(pos, t.Center())
}

// Contains reports whether pos lies between the inner and outer boundary.
func (t *Track) Contains(pos physics.Vec2) bool {
	d := t.DistanceFromCenter(pos)
	return d >= t.InnerBoundary() && d <= t.OuterBoundary()
}

// ClampToTrack moves pos radially into [inner+margin, outer-margin].
func (t *Track) ClampToTrack(pos physics.Vec2, margin float64) physics.Vec2 {
	d := t.DistanceFromCenter(pos)
	dir := pos.Normalize()
	switch {
	case d < t.InnerBoundary():
		return dir.Scale(t.InnerBoundary() + margin)
	case d > t.OuterBoundary():
		return dir.Scale(t.OuterBoundary() - margin)
	}
	return pos
}

// LaneWidth is the width of one of the eight start lanes.
func (t *Track) LaneWidth() float64 {
	return t.width / NumLanes
}

// LaneRadius returns the distance from the center of lane (1 = inner edge).
func (t *Track) LaneRadius(lane int) float64 {
	return t.InnerBoundary() + (float64(lane)-0.5)*t.LaneWidth()
}

// StartPosition returns the grid slot of lane on the start/finish line
// together with the heading that faces the direction of travel.
func (t *Track) StartPosition(lane int) (pos physics.Vec2, heading float64) {
	dir := t.PointAt(0).Normalize()
	return dir.Scale(t.LaneRadius(lane)), physics.YawOf(t.TangentAt(0))
}
