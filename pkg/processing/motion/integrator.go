package motion

import (
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
)

// Params holds the tuning values of the velocity model.
type Params struct {
	MaxSpeed        float64
	Acceleration    float64
	Friction        float64
	BrakeFactor     float64
	BoostSpeed      float64
	BoostImpulse    float64
	BoostDecay      float64
	MaxBoost        float64
	RotationSpeed   float64
	TurnSensitivity float64
	MaxTilt         float64
	TiltSmoothing   float64
}

func DefaultParams() Params {
	return Params{
		MaxSpeed:        2.5,
		Acceleration:    0.02,
		Friction:        0.98,
		BrakeFactor:     0.95,
		BoostSpeed:      4,
		BoostImpulse:    0.1,
		BoostDecay:      0.5,
		MaxBoost:        100,
		RotationSpeed:   0.05,
		TurnSensitivity: 1.5,
		MaxTilt:         0.2,
		TiltSmoothing:   0.1,
	}
}

type Integrator struct {
	params Params
}

type Option func(*Integrator)

func WithParams(p Params) Option {
	return func(i *Integrator) {
		i.params = p
	}
}

func NewIntegrator(opts ...Option) *Integrator {
	ret := &Integrator{params: DefaultParams()}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (i *Integrator) Params() Params {
	return i.params
}

// Step advances the velocity model of r by one tick and returns the position
// before integration so the caller can restore it on a blocking collision.
func (i *Integrator) Step(r *model.Racer, in model.ControlInput) (prev physics.Vec2) {
	p := &i.params
	prev = r.Position
	forward := physics.HeadingVector(r.Heading)

	if in.Forward {
		r.Velocity = r.Velocity.Add(forward.Scale(p.Acceleration))
	} else if in.Brake {
		r.Velocity = r.Velocity.Scale(p.BrakeFactor)
	}
	r.Velocity = r.Velocity.Scale(p.Friction)
	speed := r.Velocity.Len()

	r.Boosting = in.Boost && r.BoostAmount > 0
	if r.Boosting {
		r.Velocity = r.Velocity.Add(forward.Scale(p.BoostImpulse)).ClampLen(p.BoostSpeed)
		r.BoostAmount = physics.Clamp(r.BoostAmount-p.BoostDecay, 0, p.MaxBoost)
	} else {
		r.Velocity = r.Velocity.ClampLen(p.MaxSpeed)
	}

	turnFactor := 0.5 + 0.5*speed/p.MaxSpeed
	turn := p.RotationSpeed * p.TurnSensitivity * turnFactor
	targetTilt := 0.0
	// left wins when both directions are pressed
	switch {
	case in.TurnLeft:
		r.Heading += turn
		targetTilt = p.MaxTilt * speed / p.MaxSpeed
	case in.TurnRight:
		r.Heading -= turn
		targetTilt = -p.MaxTilt * speed / p.MaxSpeed
	}
	r.Heading = physics.NormalizeAngle(r.Heading)

	r.Position = r.Position.Add(r.Velocity)
	r.Speed = r.Velocity.Len()
	r.Tilt = physics.Lerp(r.Tilt, targetTilt, p.TiltSmoothing)
	return prev
}

// Damp scales the velocity, used for collision and off track responses.
func (i *Integrator) Damp(r *model.Racer, factor float64) {
	r.Velocity = r.Velocity.Scale(factor)
	r.Speed = r.Velocity.Len()
}

// AddBoost refills the reserve, capped at MaxBoost.
func (i *Integrator) AddBoost(r *model.Racer, amount float64) {
	r.BoostAmount = physics.Clamp(r.BoostAmount+amount, 0, i.params.MaxBoost)
}
