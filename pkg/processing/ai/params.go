package ai

// Params holds the tuning values of the AI motion model.
type Params struct {
	BaseSpeed         float64
	RecoverySpeed     float64
	SpeedStep         float64 // added per AI index
	SpeedMultiplier   float64
	MaxSpeed          float64
	ProgressScale     float64
	LapGate           float64
	VarianceFreq      float64
	VarianceAmp       float64
	BoostFactor       float64
	BoostDrain        float64
	BoostRegen        float64
	BoostCooldown     int
	MaxBoost          float64
	MinReserve        float64
	BoostChanceMin    float64
	BoostChanceSpread float64
	StraightThreshold float64
	BehindPosition    int
	BehindChance      float64

	SafeWidth           float64
	WeaveFreq           float64
	WeaveFreqStep       float64
	WeaveScale          float64
	WeaveCurveReduction float64
	TiltFactor          float64
	TiltSmoothing       float64
	BobFreq             float64
	BobAmp              float64
	BoundaryMargin      float64

	ObstacleDamping   float64
	RecoverySmoothing float64
}

func DefaultParams() Params {
	return Params{
		BaseSpeed:         0.4,
		RecoverySpeed:     0.6,
		SpeedStep:         0.05,
		SpeedMultiplier:   1.25,
		MaxSpeed:          2.5,
		ProgressScale:     0.001,
		LapGate:           0.85,
		VarianceFreq:      0.001,
		VarianceAmp:       0.1,
		BoostFactor:       1.5,
		BoostDrain:        0.5,
		BoostRegen:        0.1,
		BoostCooldown:     100,
		MaxBoost:          100,
		MinReserve:        30,
		BoostChanceMin:    0.002,
		BoostChanceSpread: 0.003,
		StraightThreshold: 0.3,
		BehindPosition:    4,
		BehindChance:      0.1,

		SafeWidth:           0.85,
		WeaveFreq:           0.0003,
		WeaveFreqStep:       0.00005,
		WeaveScale:          0.25,
		WeaveCurveReduction: 0.15,
		TiltFactor:          0.03,
		TiltSmoothing:       0.1,
		BobFreq:             0.002,
		BobAmp:              0.08,
		BoundaryMargin:      1,

		ObstacleDamping:   0.8,
		RecoverySmoothing: 0.1,
	}
}

func (p Params) baseSpeed(idx int) float64 {
	return (p.BaseSpeed + float64(idx)*p.SpeedStep) * p.SpeedMultiplier
}

func (p Params) recoverySpeed(idx int) float64 {
	return (p.RecoverySpeed + float64(idx)*p.SpeedStep) * p.SpeedMultiplier
}
