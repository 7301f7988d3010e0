package track

import (
	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
)

const refineIterations = 24

// ClosestProgress returns the progress of the centerline point nearest to pos.
// The curve is sampled at fixed resolution. With refinement enabled the result
// is narrowed by a golden section search between the neighbouring samples.
func (t *Track) ClosestProgress(pos physics.Vec2) float64 {
	best := 0.0
	bestDist := -1.0
	for i := range t.samples {
		p := float64(i) / float64(t.samples)
		d := physics.DistanceSquared(pos, t.PointAt(p))
		if bestDist < 0 || d < bestDist {
			best, bestDist = p, d
		}
	}
	if !t.refine {
		return best
	}
	step := 1.0 / float64(t.samples)
	return physics.Wrap01(t.refineAround(pos, best-step, best+step))
}

//nolint:mnd // golden ratio
func (t *Track) refineAround(pos physics.Vec2, lo, hi float64) float64 {
	const invPhi = 0.6180339887498949
	dist := func(p float64) float64 {
		return physics.DistanceSquared(pos, t.PointAt(p))
	}
	a, b := lo, hi
	c := b - (b-a)*invPhi
	d := a + (b-a)*invPhi
	for range refineIterations {
		if dist(c) < dist(d) {
			b = d
		} else {
			a = c
		}
		c = b - (b-a)*invPhi
		d = a + (b-a)*invPhi
	}
	return (a + b) / 2
}
