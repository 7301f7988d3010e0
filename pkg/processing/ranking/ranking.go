package ranking

import (
	"cmp"
	"slices"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

// Rank orders racers by lap, then by progress, both descending.
// Racers with equal lap and progress keep their input order.
func Rank(racers []*model.Racer) []model.RaceStanding {
	sorted := slices.Clone(racers)
	slices.SortStableFunc(sorted, func(a, b *model.Racer) int {
		if c := cmp.Compare(b.Lap, a.Lap); c != 0 {
			return c
		}
		return cmp.Compare(b.Progress, a.Progress)
	})
	ret := make([]model.RaceStanding, len(sorted))
	for i, r := range sorted {
		ret[i] = model.RaceStanding{
			ID:       r.ID,
			Name:     r.Name,
			Kind:     r.Kind,
			Lap:      r.Lap,
			Progress: r.Progress,
			Position: i + 1,
		}
	}
	return ret
}

// Position returns the 1-based position of id within standings.
// Unknown ids are ranked behind the field.
func Position(standings []model.RaceStanding, id string) int {
	idx := slices.IndexFunc(standings, func(s model.RaceStanding) bool {
		return s.ID == id
	})
	if idx == -1 {
		return len(standings) + 1
	}
	return idx + 1
}

// PositionOf ranks racers and returns the position of id.
func PositionOf(racers []*model.Racer, id string) int {
	return Position(Rank(racers), id)
}
