package race

import (
	"slices"

	"github.com/samber/lo"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/multiplayer"
)

// Inbox is where transports deliver messages. It is drained at the start of
// every tick.
func (s *Session) Inbox() *multiplayer.Queue {
	return s.inbox
}

func (s *Session) drainInbox() {
	for _, msg := range s.inbox.Drain() {
		s.apply(msg)
	}
}

func (s *Session) apply(msg multiplayer.Inbound) {
	switch m := msg.(type) {
	case multiplayer.ExistingPlayers:
		ids := lo.Keys(m.Players)
		slices.Sort(ids)
		for _, id := range ids {
			if id != s.id {
				s.roster.Add(id, m.Players[id])
			}
		}
	case multiplayer.PlayerJoined:
		s.playerJoined(m)
	case multiplayer.PlayerMoved:
		s.roster.Move(m.ID, m.PlayerState)
	case multiplayer.PlayerLeft:
		if s.roster.Remove(m.ID) {
			s.l.Debug("player left", log.String("id", m.ID))
		}
	case multiplayer.RaceReset:
		s.raceReset(m)
	case multiplayer.Disconnect:
		s.l.Warn("disconnected from room", log.String("reason", m.Reason))
		s.roster.Clear()
		s.pending = nil
		s.notify(NoticeDisconnected)
	default:
		s.l.Debug("ignoring message", log.Any("type", msg.Type()))
	}
}

func (s *Session) playerJoined(m multiplayer.PlayerJoined) {
	if m.ID == s.id {
		return
	}
	switch s.state {
	case model.StateCountdown:
		if !lo.ContainsBy(s.pending, func(p multiplayer.PlayerJoined) bool {
			return p.ID == m.ID
		}) {
			s.pending = append(s.pending, m)
			s.l.Debug("join queued until countdown ends", log.String("id", m.ID))
		}
	case model.StateRacing:
		s.roster.Add(m.ID, m.PlayerState)
		s.notify(NoticeJoinedReset)
		s.resetAndBroadcast()
	case model.StateMenu, model.StateFinished:
		s.roster.Add(m.ID, m.PlayerState)
	}
}

// raceReset follows a reset started by someone else. Our own broadcast
// comes back from the room and is dropped here.
func (s *Session) raceReset(m multiplayer.RaceReset) {
	if m.Initiator == s.id {
		s.l.Debug("ignoring own reset broadcast")
		return
	}
	if s.state == model.StateMenu {
		return
	}
	s.l.Info("race reset by other player", log.String("initiator", m.Initiator))
	s.notify(NoticeRemoteReset)
	s.resetLocal()
}
