package model

import "github.com/mpapenbr/nebula-racers-go/pkg/physics"

type RacerKind int

const (
	KindHuman RacerKind = iota
	KindAI
	KindRemote
)

func (k RacerKind) String() string {
	switch k {
	case KindHuman:
		return "human"
	case KindAI:
		return "ai"
	case KindRemote:
		return "remote"
	}
	return "unknown"
}

// Racer is any participant of a race. Velocity is only integrated for
// human racers, AI and remote racers are placed by progress.
type Racer struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Kind  RacerKind `json:"kind"`
	Index int       `json:"index"` // AI slot, staggers the base speed
	Lane  int       `json:"lane"`  // 1..8, unique within a session
	Color string    `json:"color"`

	Position physics.Vec2 `json:"position"`
	Height   float64      `json:"height"`
	Heading  float64      `json:"heading"` // yaw
	Tilt     float64      `json:"tilt"`    // bank angle
	Velocity physics.Vec2 `json:"velocity"`
	Speed    float64      `json:"speed"`

	Lap            int              `json:"lap"`
	Progress       float64          `json:"progress"`
	LastProgress   float64          `json:"lastProgress"`
	LastCheckpoint int              `json:"lastCheckpoint"`
	Checkpoints    CheckpointRecord `json:"-"`

	BoostAmount   float64 `json:"boostAmount"`
	Boosting      bool    `json:"boosting"`
	BoostCooldown int     `json:"boostCooldown"`
	BaseSpeed     float64 `json:"baseSpeed"` // AI only
	BoostChance   float64 `json:"-"`         // AI only, per tick probability

	Racing bool `json:"racing"` // remote racers report their own racing flag
}

// CheckpointRecord maps a lap number to the visited flags of its checkpoints.
type CheckpointRecord map[int][]bool

// Ensure creates the record for lap if missing.
func (c CheckpointRecord) Ensure(lap, count int) []bool {
	if rec, ok := c[lap]; ok && len(rec) == count {
		return rec
	}
	rec := make([]bool, count)
	c[lap] = rec
	return rec
}

// AllPassed reports whether every checkpoint of lap was visited.
// A lap without a record has not been passed.
func (c CheckpointRecord) AllPassed(lap int) bool {
	rec, ok := c[lap]
	if !ok || len(rec) == 0 {
		return false
	}
	for _, passed := range rec {
		if !passed {
			return false
		}
	}
	return true
}

// RaceStanding is the ranking view of a racer.
type RaceStanding struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Kind     RacerKind `json:"kind"`
	Lap      int       `json:"lap"`
	Progress float64   `json:"progress"`
	Position int       `json:"position"`
}
