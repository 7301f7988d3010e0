package track

import (
	"math"
	"math/rand/v2"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
)

const (
	obstacleCount   = 20
	boostItemCount  = 10
	startSafeAngle  = 0.3
	placementSpread = 0.7
	boostItemRadius = 1.5
	planetFactor    = 0.6
	portalDistance  = 2.0
	portalAngle     = math.Pi / 4
	portalRadius    = 5.0
)

type LayoutOption func(*layoutConfig)

type layoutConfig struct {
	portalURL   string
	withPlanet  bool
	withPortal  bool
	obstacles   int
	boostItems int
}

// WithPortal places an exit portal that redirects to url.
func WithPortal(url string) LayoutOption {
	return func(c *layoutConfig) {
		c.withPortal = true
		c.portalURL = url
	}
}

// WithoutObstruction omits the central planet.
func WithoutObstruction() LayoutOption {
	return func(c *layoutConfig) {
		c.withPlanet = false
	}
}

func WithObstacleCount(n int) LayoutOption {
	return func(c *layoutConfig) {
		c.obstacles = n
	}
}

func WithBoostItemCount(n int) LayoutOption {
	return func(c *layoutConfig) {
		c.boostItems = n
	}
}

// GenerateLayout places obstacles and boost items evenly around the circuit
// with a random radial offset. No obstacle is placed near the start line.
func (t *Track) GenerateLayout(rnd *rand.Rand, opts ...LayoutOption) *model.TrackLayout {
	cfg := &layoutConfig{
		withPlanet:  true,
		obstacles:   obstacleCount,
		boostItems: boostItemCount,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	layout := &model.TrackLayout{}
	for i := range cfg.obstacles {
		angle := float64(i) / float64(cfg.obstacles) * 2 * math.Pi
		if math.Abs(angle) < startSafeAngle || math.Abs(angle-2*math.Pi) < startSafeAngle {
			continue
		}
		pos := t.scatter(rnd, angle)
		layout.Obstacles = append(layout.Obstacles, model.Obstacle{
			Position: pos,
			Radius:   2 + rnd.Float64()*3,
		})
	}
	for i := range cfg.boostItems {
		angle := float64(i) / float64(cfg.boostItems) * 2 * math.Pi
		layout.Boosts = append(layout.Boosts, model.BoostItem{
			Position: t.scatter(rnd, angle),
			Radius:   boostItemRadius,
			Active:   true,
		})
	}
	if cfg.withPlanet {
		layout.Obstruction = &model.Obstruction{
			Center: t.Center(),
			Radius: planetFactor * t.radius,
		}
	}
	if cfg.withPortal {
		d := portalDistance * t.radius
		layout.Portal = &model.Portal{
			Position: physics.V(d*math.Cos(portalAngle), d*math.Sin(portalAngle)),
			Radius:   portalRadius,
			URL:      cfg.portalURL,
		}
	}
	return layout
}

func (t *Track) scatter(rnd *rand.Rand, angle float64) physics.Vec2 {
	r := t.radius + (rnd.Float64()-0.5)*placementSpread*t.width
	return physics.V(r*math.Cos(angle), r*math.Sin(angle))
}
