//nolint:funlen,lll // ok for tests
package track

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
)

const eps = 1e-6

func defaultTrack(t *testing.T, opts ...Option) *Track {
	t.Helper()
	tr, err := New(1000, 100, opts...)
	require.NoError(t, err)
	return tr
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		length  float64
		width   float64
		wantErr bool
	}{
		{"default", 1000, 100, false},
		{"narrow", 1000, 1, false},
		{"zero width", 1000, 0, true},
		{"inner boundary collapses", 100, 40, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.length, tt.width)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDimensions)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTrackBoundaries(t *testing.T) {
	tr := defaultTrack(t)
	assert.InDelta(t, 159.154943, tr.Radius(), eps)
	assert.InDelta(t, 109.154943, tr.InnerBoundary(), eps)
	assert.InDelta(t, 209.154943, tr.OuterBoundary(), eps)
	assert.InDelta(t, 12.5, tr.LaneWidth(), eps)
}

func TestPointAtAndTangent(t *testing.T) {
	tr := defaultTrack(t)
	r := tr.Radius()
	tests := []struct {
		p       float64
		point   physics.Vec2
		tangent physics.Vec2
	}{
		{0, physics.V(r, 0), physics.V(0, 1)},
		{0.25, physics.V(0, r), physics.V(-1, 0)},
		{0.5, physics.V(-r, 0), physics.V(0, -1)},
		{1, physics.V(r, 0), physics.V(0, 1)},
		{-0.75, physics.V(0, r), physics.V(-1, 0)},
	}
	for _, tt := range tests {
		pt := tr.PointAt(tt.p)
		tg := tr.TangentAt(tt.p)
		assert.InDelta(t, tt.point.X, pt.X, eps, "p=%v", tt.p)
		assert.InDelta(t, tt.point.Z, pt.Z, eps, "p=%v", tt.p)
		assert.InDelta(t, tt.tangent.X, tg.X, eps, "p=%v", tt.p)
		assert.InDelta(t, tt.tangent.Z, tg.Z, eps, "p=%v", tt.p)
		assert.InDelta(t, 1.0, tg.Len(), eps)
	}
}

func TestNormalPointsToCenter(t *testing.T) {
	tr := defaultTrack(t)
	for _, p := range []float64{0, 0.1, 0.37, 0.5, 0.9} {
		inward := tr.PointAt(p).Add(tr.NormalAt(p))
		assert.Less(t, tr.DistanceFromCenter(inward), tr.Radius())
	}
}

func TestClosestProgress(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		pos    func(tr *Track) physics.Vec2
		want   float64
		within float64
	}{
		{
			name:   "start line",
			pos:    func(tr *Track) physics.Vec2 { return tr.PointAt(0) },
			want:   0,
			within: 0.01,
		},
		{
			name:   "quarter on outer edge",
			pos:    func(tr *Track) physics.Vec2 { return physics.V(0, tr.OuterBoundary()) },
			want:   0.25,
			within: 0.01,
		},
		{
			name:   "between samples without refinement",
			pos:    func(tr *Track) physics.Vec2 { return tr.PointAt(0.4137) },
			want:   0.41,
			within: 0.01,
		},
		{
			name:   "between samples with refinement",
			opts:   []Option{WithRefinement(true)},
			pos:    func(tr *Track) physics.Vec2 { return tr.PointAt(0.4137) },
			want:   0.4137,
			within: 1e-4,
		},
		{
			name:   "finer sampling",
			opts:   []Option{WithSamples(1000)},
			pos:    func(tr *Track) physics.Vec2 { return tr.PointAt(0.4137) },
			want:   0.414,
			within: 1e-3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := defaultTrack(t, tt.opts...)
			got := tr.ClosestProgress(tt.pos(tr))
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 1.0)
			assert.InDelta(t, tt.want, got, tt.within)
		})
	}
}

func TestClosestProgressNearWrap(t *testing.T) {
	tr := defaultTrack(t, WithRefinement(true))
	got := tr.ClosestProgress(tr.PointAt(0.9999))
	// either side of the start line is acceptable
	assert.True(t, got > 0.999 || got < 0.001, "got %v", got)
}

func TestWithSamplesMinimum(t *testing.T) {
	tr := defaultTrack(t, WithSamples(10))
	assert.Equal(t, MinSamples, tr.samples)
}

func TestContains(t *testing.T) {
	tr := defaultTrack(t)
	assert.True(t, tr.Contains(tr.PointAt(0)))
	assert.True(t, tr.Contains(physics.V(tr.InnerBoundary(), 0)))
	assert.False(t, tr.Contains(physics.V(tr.InnerBoundary()-0.1, 0)))
	assert.False(t, tr.Contains(physics.V(0, tr.OuterBoundary()+0.1)))
}

func TestClampToTrack(t *testing.T) {
	tr := defaultTrack(t)
	in := tr.ClampToTrack(physics.V(50, 0), 1)
	assert.InDelta(t, tr.InnerBoundary()+1, in.Len(), eps)
	out := tr.ClampToTrack(physics.V(0, -300), 1)
	assert.InDelta(t, tr.OuterBoundary()-1, out.Len(), eps)
	assert.InDelta(t, 0, out.X, eps)
	on := physics.V(150, 10)
	assert.Equal(t, on, tr.ClampToTrack(on, 1))
}

func TestStartPosition(t *testing.T) {
	tr := defaultTrack(t)
	for lane := 1; lane <= NumLanes; lane++ {
		pos, heading := tr.StartPosition(lane)
		assert.InDelta(t, 0, heading, eps)
		assert.InDelta(t, 0, pos.Z, eps)
		assert.True(t, tr.Contains(pos), "lane %d", lane)
		assert.InDelta(t, tr.InnerBoundary()+(float64(lane)-0.5)*12.5, pos.X, eps)
	}
}

func TestGenerateLayout(t *testing.T) {
	tr := defaultTrack(t)
	rnd := rand.New(rand.NewPCG(1, 2))
	l := tr.GenerateLayout(rnd, WithPortal("https://portal.example"))

	// only the obstacle at angle 0 falls into the start zone
	assert.Len(t, l.Obstacles, 19)
	assert.Len(t, l.Boosts, 10)
	for _, o := range l.Obstacles {
		angle := math.Atan2(o.Position.Z, o.Position.X)
		assert.Greater(t, math.Abs(angle), startSafeAngle-eps)
		assert.GreaterOrEqual(t, o.Radius, 2.0)
		assert.Less(t, o.Radius, 5.0)
		assert.InDelta(t, tr.Radius(), o.Position.Len(), 0.35*tr.Width()+eps)
	}
	for _, b := range l.Boosts {
		assert.True(t, b.Active)
		assert.True(t, tr.Contains(b.Position))
	}
	require.NotNil(t, l.Obstruction)
	assert.InDelta(t, 0.6*tr.Radius(), l.Obstruction.Radius, eps)
	require.NotNil(t, l.Portal)
	assert.InDelta(t, 2*tr.Radius(), l.Portal.Position.Len(), eps)
	assert.Equal(t, "https://portal.example", l.Portal.URL)
}

func TestGenerateLayoutDeterministic(t *testing.T) {
	tr := defaultTrack(t)
	a := tr.GenerateLayout(rand.New(rand.NewPCG(7, 7)), WithoutObstruction())
	b := tr.GenerateLayout(rand.New(rand.NewPCG(7, 7)), WithoutObstruction())
	assert.Equal(t, a, b)
	assert.Nil(t, a.Obstruction)
	assert.Nil(t, a.Portal)
}
