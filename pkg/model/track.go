package model

import "github.com/mpapenbr/nebula-racers-go/pkg/physics"

type Obstacle struct {
	Position physics.Vec2 `json:"position"`
	Radius   float64      `json:"radius"`
}

// BoostItem stays inert after collection until the session resets.
type BoostItem struct {
	Position physics.Vec2 `json:"position"`
	Radius   float64      `json:"radius"`
	Active   bool         `json:"active"`
}

// Obstruction is the blocking body in the middle of the track.
type Obstruction struct {
	Center physics.Vec2 `json:"center"`
	Radius float64      `json:"radius"`
}

// Portal leads out of the game. Entering it is reported, not simulated.
type Portal struct {
	Position physics.Vec2 `json:"position"`
	Radius   float64      `json:"radius"`
	URL      string       `json:"url"`
}

type TrackLayout struct {
	Obstacles   []Obstacle   `json:"obstacles"`
	Boosts      []BoostItem  `json:"boosts"`
	Obstruction *Obstruction `json:"obstruction,omitempty"`
	Portal      *Portal      `json:"portal,omitempty"`
}

// ResetBoosts reactivates all collected boost items.
func (l *TrackLayout) ResetBoosts() {
	for i := range l.Boosts {
		l.Boosts[i].Active = true
	}
}
