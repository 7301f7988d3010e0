package ai

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/samber/lo"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/collision"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/lap"
	"github.com/mpapenbr/nebula-racers-go/pkg/track"
)

var Names = []string{
	"Celestial1", "Nova2", "Voyager3", "Orion4", "Galileo5", "Aether6", "Cosmos7",
}

// PositionFunc returns the current race position (1-based) of a racer.
type PositionFunc func(r *model.Racer) int

// Controller moves AI racers along the track by progress instead of
// integrating a velocity.
type Controller struct {
	track    *track.Track
	resolver *collision.Resolver
	laps     *lap.Tracker
	rnd      *rand.Rand
	params   Params
	logger   *log.Logger
}

type Option func(*Controller)

func WithParams(p Params) Option {
	return func(c *Controller) {
		c.params = p
	}
}

func WithRand(rnd *rand.Rand) Option {
	return func(c *Controller) {
		c.rnd = rnd
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

//nolint:whitespace // can't make the linters happy
func NewController(
	t *track.Track,
	resolver *collision.Resolver,
	laps *lap.Tracker,
	opts ...Option,
) *Controller {
	ret := &Controller{
		track:    t,
		resolver: resolver,
		laps:     laps,
		params:   DefaultParams(),
		logger:   log.Default().Named("ai"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.rnd == nil {
		ret.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return ret
}

// NewRacers creates count AI racers. Lanes are assigned by Reset.
func (c *Controller) NewRacers(count int) []*model.Racer {
	count = min(count, len(Names))
	ret := make([]*model.Racer, 0, count)
	for i := range count {
		ret = append(ret, &model.Racer{
			ID:        fmt.Sprintf("ai-%d", i),
			Name:      Names[i],
			Kind:      model.KindAI,
			Index:     i,
			Color:     fmt.Sprintf("#%06x", c.rnd.IntN(0x1000000)),
			BaseSpeed: c.params.baseSpeed(i),
		})
	}
	return ret
}

// Reset puts the AI racers on the start grid. Lanes are shuffled and never
// collide with playerLane.
func (c *Controller) Reset(racers []*model.Racer, playerLane int) {
	lanes := lo.Without(lo.RangeFrom(1, track.NumLanes), playerLane)
	c.rnd.Shuffle(len(lanes), func(i, j int) { lanes[i], lanes[j] = lanes[j], lanes[i] })
	for i, r := range racers {
		c.laps.Reset(r)
		r.Lane = lanes[i%len(lanes)]
		r.Position, r.Heading = c.track.StartPosition(r.Lane)
		r.Height = 1
		r.Tilt = 0
		r.Speed = r.BaseSpeed
		r.BoostAmount = c.params.MaxBoost
		r.Boosting = false
		r.BoostCooldown = 0
		r.BoostChance = c.params.BoostChanceMin + c.rnd.Float64()*c.params.BoostChanceSpread
		r.Racing = true
	}
}

// Step advances one AI racer by a tick. nowMs is the simulated race time.
func (c *Controller) Step(r *model.Racer, nowMs float64, position PositionFunc) lap.Event {
	p := &c.params
	prev := r.Position
	c.decideBoost(r, position)

	speed := r.Speed + math.Sin(nowMs*p.VarianceFreq+float64(r.Index))*p.VarianceAmp
	if r.Boosting && r.BoostAmount > 0 {
		speed *= p.BoostFactor
		r.BoostAmount -= p.BoostDrain
		if r.BoostAmount <= 0 {
			r.BoostAmount = 0
			r.Boosting = false
			r.BoostCooldown = p.BoostCooldown
		}
	} else {
		if r.BoostAmount < p.MaxBoost && !r.Boosting {
			r.BoostAmount = min(r.BoostAmount+p.BoostRegen, p.MaxBoost)
		}
		if r.BoostCooldown > 0 {
			r.BoostCooldown--
		}
	}

	ev := c.advance(r, speed)

	target, weave := c.targetPosition(r, nowMs, speed)
	r.Heading = physics.YawOf(c.track.TangentAt(r.Progress))
	r.Tilt = physics.Lerp(r.Tilt, -weave*p.TiltFactor, p.TiltSmoothing)
	r.Height = 1 + math.Sin(nowMs*p.BobFreq+float64(r.Index))*p.BobAmp*(0.5+speed/p.MaxSpeed)

	if c.resolver.ObstacleHit(target) >= 0 {
		r.Position = prev
		r.Speed *= p.ObstacleDamping
		r.Boosting = false
	} else {
		r.Position = target
		if recovery := p.recoverySpeed(r.Index); r.Speed < recovery {
			r.Speed = physics.Lerp(r.Speed, recovery, p.RecoverySmoothing)
		}
	}
	c.resolver.CollectPickups(r)
	return ev
}

// advance moves the progress forward and feeds the lap tracker. A wrap only
// counts as forward movement if the racer was in the final part of the lap.
func (c *Controller) advance(r *model.Racer, speed float64) lap.Event {
	next := r.Progress + speed*c.params.ProgressScale
	forward := 0.0
	if next >= 1 && r.LastProgress > c.params.LapGate {
		forward = speed
	}
	ev := c.laps.Update(r, physics.Wrap01(next), forward)
	r.LastProgress = r.Progress
	if ev == lap.EventCompleted || ev == lap.EventFinished {
		c.logger.Debug("ai lap", log.String("racer", r.Name), log.Int("lap", r.Lap))
	}
	return ev
}

func (c *Controller) targetPosition(r *model.Racer, nowMs, speed float64) (physics.Vec2, float64) {
	p := &c.params
	progress := r.Progress
	laneWidth := c.track.LaneWidth()
	safeWidth := c.track.Width() * p.SafeWidth
	offset := -safeWidth/2 + float64(r.Lane)*laneWidth + laneWidth/2

	idx := float64(r.Index)
	freq := p.WeaveFreq + idx*p.WeaveFreqStep
	phase := idx * math.Pi / 4
	speedFactor := 0.5 + speed/p.MaxSpeed
	scale := p.WeaveScale - math.Abs(math.Sin(progress*2*math.Pi))*p.WeaveCurveReduction
	primary := math.Sin(nowMs*freq+phase) * laneWidth * scale
	secondary := math.Sin(nowMs*freq*2.7+phase*1.5) * laneWidth * scale * 0.3
	weave := (primary + secondary) * speedFactor

	normal := c.track.NormalAt(progress)
	pos := c.track.PointAt(progress).Add(normal.Scale(offset + weave))
	d := c.track.DistanceFromCenter(pos)
	if d < c.track.InnerBoundary() || d > c.track.OuterBoundary() {
		pos = c.track.ClampToTrack(pos, p.BoundaryMargin)
	}
	return pos, weave
}

func (c *Controller) decideBoost(r *model.Racer, position PositionFunc) {
	p := &c.params
	if r.BoostCooldown > 0 || r.Boosting || r.BoostAmount < p.MinReserve {
		return
	}
	straight := math.Sin(r.Progress*2*math.Pi) < p.StraightThreshold
	random := c.rnd.Float64() < r.BoostChance
	behind := position != nil && position(r) > p.BehindPosition && c.rnd.Float64() < p.BehindChance
	finalLap := r.Lap == c.laps.TotalLaps()-1 && r.Progress > 0.5
	if (random && straight) || behind || finalLap {
		r.Boosting = true
		r.BoostAmount = max(p.MinReserve, r.BoostAmount)
	}
}
