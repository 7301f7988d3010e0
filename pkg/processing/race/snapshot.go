package race

import (
	"slices"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/ranking"
)

// Snapshot copies the current state. It shares no memory with the session.
func (s *Session) Snapshot() model.Snapshot {
	racers := s.Racers()
	standings := ranking.Rank(racers)
	ret := model.Snapshot{
		Tick:          s.tick,
		State:         s.state,
		Countdown:     s.CountdownLabel(),
		ElapsedMs:     s.ElapsedMs(),
		TotalLaps:     s.cfg.Laps,
		Connection:    s.Connection(),
		Local:         copyRacer(s.local),
		Racers:        make([]model.Racer, 0, len(racers)),
		Standings:     standings,
		Boosts:        slices.Clone(s.layout.Boosts),
		PortalEntered: s.portalEntered,
		PortalURL:     s.portalURL,
		LocalPosition: ranking.Position(standings, s.local.ID),
		ObstacleHits:  s.obstacleHits,
		OffTrackTicks: s.offTrackTicks,
		RejectedLaps:  s.rejectedLaps,
	}
	for _, r := range racers {
		ret.Racers = append(ret.Racers, copyRacer(r))
	}
	for _, n := range s.notices {
		ret.Notifications = append(ret.Notifications, n.text)
	}
	if s.result != nil {
		res := *s.result
		ret.Result = &res
	}
	return ret
}

func copyRacer(r *model.Racer) model.Racer {
	ret := *r
	ret.Checkpoints = nil
	return ret
}
