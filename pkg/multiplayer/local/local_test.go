package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/multiplayer"
)

func expect(t *testing.T, q *multiplayer.Queue, mt multiplayer.MessageType) multiplayer.Inbound {
	t.Helper()
	var found multiplayer.Inbound
	require.Eventually(t, func() bool {
		for _, in := range q.Drain() {
			if in.Type() == mt {
				found = in
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	return found
}

func TestHub(t *testing.T) {
	ctx := context.Background()
	hub := NewHub("test", WithLogger(log.NewNop()))
	defer hub.Close()

	a := hub.NewTransport("a")
	b := hub.NewTransport("b")
	qa := multiplayer.NewQueue(0)
	qb := multiplayer.NewQueue(0)

	assert.ErrorIs(t, a.Update(ctx, multiplayer.PlayerUpdate{}), multiplayer.ErrNotConnected)
	require.NoError(t, a.Connect(ctx, qa))
	expect(t, qa, multiplayer.TypeExistingPlayers)
	require.NoError(t, a.Join(ctx, multiplayer.PlayerJoin{Name: "Alice"}))

	require.NoError(t, b.Connect(ctx, qb))
	existing := expect(t, qb, multiplayer.TypeExistingPlayers).(multiplayer.ExistingPlayers)
	require.Contains(t, existing.Players, "a")
	require.NoError(t, b.Join(ctx, multiplayer.PlayerJoin{Name: "Bob"}))
	joined := expect(t, qa, multiplayer.TypePlayerJoined).(multiplayer.PlayerJoined)
	assert.Equal(t, "b", joined.ID)

	require.NoError(t, a.BroadcastReset(ctx, multiplayer.BroadcastReset{Initiator: "a"}))
	reset := expect(t, qb, multiplayer.TypeRaceReset).(multiplayer.RaceReset)
	assert.Equal(t, "a", reset.Initiator)

	b.Disconnect()
	expect(t, qb, multiplayer.TypeDisconnect)
	assert.Equal(t, model.ConnectionDisconnected, b.State())

	require.NoError(t, a.Close())
	assert.Equal(t, model.ConnectionDisconnected, a.State())
}
