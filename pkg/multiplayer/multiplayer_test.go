//nolint:funlen // ok for tests
package multiplayer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
)

func ptr[T any](v T) *T { return &v }

func TestToInbound(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		payload any
		want    Inbound
		wantErr error
	}{
		{
			name:    "join becomes joined",
			msgType: TypePlayerJoin,
			payload: PlayerJoin{Name: "Alice", ShipColor: "#ff0000", Position: Vec3{X: 1, Y: 2, Z: 3}},
			want: PlayerJoined{ID: "peer", PlayerState: PlayerState{
				Name:      ptr("Alice"),
				ShipColor: ptr("#ff0000"),
				Position:  &Vec3{X: 1, Y: 2, Z: 3},
				Rotation:  &Rotation{},
			}},
		},
		{
			name:    "update becomes moved",
			msgType: TypePlayerUpdate,
			payload: PlayerUpdate{Lap: 2, Progress: 0.5, Racing: true},
			want: PlayerMoved{ID: "peer", PlayerState: PlayerState{
				Position: &Vec3{},
				Rotation: &Rotation{},
				Lap:      ptr(2),
				Progress: ptr(0.5),
				Racing:   ptr(true),
			}},
		},
		{
			name:    "reset keeps initiator",
			msgType: TypeBroadcastReset,
			payload: BroadcastReset{Initiator: "origin", Timestamp: 42},
			want:    RaceReset{Initiator: "origin", Timestamp: 42},
		},
		{
			name:    "reset without initiator uses sender",
			msgType: TypeRaceReset,
			payload: nil,
			want:    RaceReset{Initiator: "peer"},
		},
		{
			name:    "leave",
			msgType: TypePlayerLeave,
			want:    PlayerLeft{ID: "peer"},
		},
		{
			name:    "unknown",
			msgType: "chat",
			wantErr: ErrUnknownMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode("peer", tt.msgType, tt.payload)
			require.NoError(t, err)
			env, err := DecodeEnvelope(data)
			require.NoError(t, err)
			assert.Equal(t, ProtocolVersion, env.Version)
			got, err := ToInbound(env)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEnvelopeMissingType(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"sender":"x"}`))
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(""))
	assert.True(t, Compatible("v1.4.2"))
	assert.False(t, Compatible("v2.0.0"))
	assert.False(t, Compatible("1.0"))
	assert.ErrorIs(t, CheckVersion("v0.9.0"), ErrIncompatibleVersion)
	assert.NoError(t, CheckVersion(ProtocolVersion))
}

func TestQueue(t *testing.T) {
	q := NewQueue(3)
	q.Push(PlayerJoined{ID: "a"})
	q.Push(PlayerMoved{ID: "a"})
	q.Push(PlayerMoved{ID: "b"})
	q.Push(RaceReset{Initiator: "a"})
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 1, q.Dropped())
	got := q.Drain()
	assert.Equal(t, []Inbound{PlayerJoined{ID: "a"}, PlayerMoved{ID: "b"}, RaceReset{Initiator: "a"}}, got)
	assert.Empty(t, q.Drain())
}

func TestRoster(t *testing.T) {
	r := NewRoster()
	racer := r.Add("p1", PlayerState{Position: &Vec3{X: 10, Y: 1, Z: 0}})
	assert.Equal(t, DefaultRemoteName, racer.Name)
	assert.Equal(t, DefaultRemoteColor, racer.Color)
	assert.Equal(t, physics.V(10, 0), racer.Position)

	r.Add("p2", PlayerState{Name: ptr("Bob"), Lap: ptr(1), Progress: ptr(0.2), Racing: ptr(true)})
	assert.Equal(t, 2, r.Len())

	// interpolated, not snapped
	assert.True(t, r.Move("p1", PlayerState{Position: &Vec3{X: 20, Z: 0}, Rotation: &Rotation{Y: 1.5}}))
	assert.InDelta(t, 13, racer.Position.X, 1e-9)
	assert.InDelta(t, 1.5, racer.Heading, 1e-9)
	assert.InDelta(t, 1, racer.Height, 1e-9, "zero height keeps the known value")

	p2, ok := r.Get("p2")
	require.True(t, ok)
	r.Move("p2", PlayerState{Lap: ptr(0), Progress: ptr(0.0)})
	assert.Equal(t, 1, p2.Lap)
	assert.InDelta(t, 0.2, p2.Progress, 1e-9)
	assert.True(t, p2.Racing, "missing racing flag keeps the known value")
	r.Move("p2", PlayerState{Racing: ptr(false)})
	assert.False(t, p2.Racing)

	assert.False(t, r.Move("unknown", PlayerState{}))
	assert.True(t, r.Remove("p1"))
	assert.False(t, r.Remove("p1"))
	assert.Equal(t, []string{"p2"}, []string{r.Racers()[0].ID})

	r.ResetAll()
	assert.Equal(t, 0, p2.Lap)
	r.Clear()
	assert.Equal(t, 0, r.Len())
}

func TestRosterKeepsBank(t *testing.T) {
	r := NewRoster()
	racer := r.Add("p1", PlayerState{Rotation: &Rotation{Y: 0.5, Z: 0.15}})
	assert.InDelta(t, 0.15, racer.Tilt, 1e-9)

	r.Move("p1", PlayerState{Rotation: &Rotation{Y: 0.7}})
	assert.InDelta(t, 0.7, racer.Heading, 1e-9)
	assert.InDelta(t, 0.15, racer.Tilt, 1e-9)

	r.Move("p1", PlayerState{Rotation: &Rotation{Y: 0.7, Z: -0.2}})
	assert.InDelta(t, -0.2, racer.Tilt, 1e-9)
}

func TestRosterDuplicateAdd(t *testing.T) {
	r := NewRoster()
	racer := r.Add("p1", PlayerState{Name: ptr("Ann"), Lap: ptr(2), Progress: ptr(0.4)})

	again := r.Add("p1", PlayerState{Name: ptr("Other")})
	assert.Same(t, racer, again)
	assert.Equal(t, "Ann", again.Name)
	assert.Equal(t, 2, again.Lap)
	assert.InDelta(t, 0.4, again.Progress, 1e-9)
	assert.Equal(t, 1, r.Len())
}
