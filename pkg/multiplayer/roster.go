package multiplayer

import (
	"slices"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
)

const (
	DefaultRemoteName  = "Player"
	DefaultRemoteColor = "#ffffff"
	// PositionSmoothing is the share of the distance to the reported
	// position covered per update.
	PositionSmoothing = 0.3
)

// Roster holds the remote racers of a room keyed by id.
type Roster struct {
	racers map[string]*model.Racer
	order  []string
}

func NewRoster() *Roster {
	return &Roster{racers: make(map[string]*model.Racer)}
}

func (r *Roster) Get(id string) (*model.Racer, bool) {
	ret, ok := r.racers[id]
	return ret, ok
}

func (r *Roster) Len() int { return len(r.order) }

// Racers returns the remote racers in join order.
func (r *Roster) Racers() []*model.Racer {
	ret := make([]*model.Racer, 0, len(r.order))
	for _, id := range r.order {
		ret = append(ret, r.racers[id])
	}
	return ret
}

// Add creates a remote racer from a full state. A known id keeps its racer
// untouched.
func (r *Roster) Add(id string, st PlayerState) *model.Racer {
	if existing, ok := r.racers[id]; ok {
		return existing
	}
	racer := &model.Racer{
		ID:    id,
		Name:  DefaultRemoteName,
		Kind:  model.KindRemote,
		Color: DefaultRemoteColor,
	}
	if st.Name != nil && *st.Name != "" {
		racer.Name = *st.Name
	}
	if st.ShipColor != nil && *st.ShipColor != "" {
		racer.Color = *st.ShipColor
	}
	if st.Position != nil {
		racer.Position = physics.V(st.Position.X, st.Position.Z)
		racer.Height = st.Position.Y
	}
	applyRotation(racer, st.Rotation)
	applyRaceState(racer, st)
	r.order = append(r.order, id)
	r.racers[id] = racer
	return racer
}

// Move applies a movement update. The position is interpolated towards the
// reported one, the heading is taken as is. Unknown ids are ignored.
func (r *Roster) Move(id string, st PlayerState) bool {
	racer, ok := r.racers[id]
	if !ok {
		return false
	}
	if st.Position != nil {
		target := physics.V(st.Position.X, st.Position.Z)
		racer.Position = racer.Position.Lerp(target, PositionSmoothing)
		if st.Position.Y != 0 {
			racer.Height = st.Position.Y
		}
	}
	applyRotation(racer, st.Rotation)
	applyRaceState(racer, st)
	return true
}

func (r *Roster) Remove(id string) bool {
	if _, ok := r.racers[id]; !ok {
		return false
	}
	delete(r.racers, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	return true
}

// Clear drops all remote racers.
func (r *Roster) Clear() {
	r.racers = make(map[string]*model.Racer)
	r.order = nil
}

// ResetAll puts all remote racers back to lap 0.
func (r *Roster) ResetAll() {
	for _, racer := range r.racers {
		racer.Lap = 0
		racer.Progress = 0
		racer.LastProgress = 0
	}
}

func applyRotation(racer *model.Racer, rot *Rotation) {
	if rot == nil {
		return
	}
	racer.Heading = rot.Y
	// no bank reported
	if rot.Z != 0 {
		racer.Tilt = rot.Z
	}
}

// zero values of lap and progress do not overwrite a known value
func applyRaceState(racer *model.Racer, st PlayerState) {
	if st.Lap != nil && *st.Lap != 0 {
		racer.Lap = *st.Lap
	}
	if st.Progress != nil && *st.Progress != 0 {
		racer.LastProgress = racer.Progress
		racer.Progress = *st.Progress
	}
	if st.Racing != nil {
		racer.Racing = *st.Racing
	}
}
