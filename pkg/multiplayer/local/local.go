package local

import (
	"context"
	"sync"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/multiplayer"
	"github.com/mpapenbr/nebula-racers-go/pkg/utils/broadcast"
)

type (
	// Hub is an in-process room. All transports created from the same hub
	// see each other, frames travel through the same codec as on the wire.
	Hub struct {
		source   chan []byte
		closed   chan struct{}
		once     sync.Once
		bs       broadcast.Server[[]byte]
		mutex    sync.Mutex
		presence map[string]multiplayer.PlayerState
		l        *log.Logger
	}
	HubOption func(*Hub)

	Transport struct {
		hub   *Hub
		id    string
		mutex sync.Mutex
		state model.ConnectionState
		ch    <-chan []byte
		done  chan struct{}
		l     *log.Logger
	}
)

func WithLogger(l *log.Logger) HubOption {
	return func(h *Hub) {
		h.l = l
	}
}

func NewHub(room string, opts ...HubOption) *Hub {
	ret := &Hub{
		source:   make(chan []byte),
		closed:   make(chan struct{}),
		presence: make(map[string]multiplayer.PlayerState),
		l:        log.Default().Named("hub"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.bs = broadcast.NewServer(room, "hub", ret.source,
		broadcast.WithLogger[[]byte](ret.l),
		broadcast.WithBuffer[[]byte](256))
	return ret
}

func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.closed)
		h.bs.Close()
	})
}

func (h *Hub) members(except string) map[string]multiplayer.PlayerState {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	ret := make(map[string]multiplayer.PlayerState, len(h.presence))
	for k, v := range h.presence {
		if k != except {
			ret[k] = v
		}
	}
	return ret
}

func (h *Hub) setPresence(id string, st *multiplayer.PlayerState) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if st == nil {
		delete(h.presence, id)
	} else {
		h.presence[id] = *st
	}
}

// NewTransport creates a participant of the hub's room.
func (h *Hub) NewTransport(id string) *Transport {
	return &Transport{
		hub:   h,
		id:    id,
		state: model.ConnectionDisconnected,
		l:     h.l.Named(id),
	}
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) State() model.ConnectionState {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.state
}

func (t *Transport) Connect(_ context.Context, q *multiplayer.Queue) error {
	t.mutex.Lock()
	t.ch = t.hub.bs.Subscribe()
	t.done = make(chan struct{})
	t.state = model.ConnectionConnected
	ch, done := t.ch, t.done
	t.mutex.Unlock()

	q.Push(multiplayer.ExistingPlayers{Players: t.hub.members(t.id)})
	go func() {
		defer close(done)
		for data := range ch {
			t.dispatch(data, q)
		}
		// the hub went away
		if t.State() == model.ConnectionConnected {
			t.mutex.Lock()
			t.state = model.ConnectionDisconnected
			t.mutex.Unlock()
			q.Push(multiplayer.Disconnect{Reason: "hub closed"})
		}
	}()
	return nil
}

func (t *Transport) dispatch(data []byte, q *multiplayer.Queue) {
	env, err := multiplayer.DecodeEnvelope(data)
	if err != nil || env.Sender == t.id {
		return
	}
	in, err := multiplayer.ToInbound(env)
	if err != nil {
		t.l.Debug("ignoring message", log.ErrorField(err))
		return
	}
	q.Push(in)
}

func (t *Transport) Join(_ context.Context, msg multiplayer.PlayerJoin) error {
	t.hub.setPresence(t.id, &multiplayer.PlayerState{
		Name:      &msg.Name,
		Position:  &msg.Position,
		Rotation:  &msg.Rotation,
		ShipColor: &msg.ShipColor,
	})
	return t.publish(multiplayer.TypePlayerJoin, msg)
}

func (t *Transport) Update(_ context.Context, msg multiplayer.PlayerUpdate) error {
	return t.publish(multiplayer.TypePlayerUpdate, msg)
}

func (t *Transport) BroadcastReset(_ context.Context, msg multiplayer.BroadcastReset) error {
	return t.publish(multiplayer.TypeBroadcastReset, msg)
}

func (t *Transport) publish(mt multiplayer.MessageType, payload any) error {
	if t.State() != model.ConnectionConnected {
		return multiplayer.ErrNotConnected
	}
	data, err := multiplayer.Encode(t.id, mt, payload)
	if err != nil {
		return err
	}
	select {
	case t.hub.source <- data:
		return nil
	case <-t.hub.closed:
		return multiplayer.ErrNotConnected
	}
}

// Close leaves the room.
func (t *Transport) Close() error {
	if t.State() != model.ConnectionConnected {
		return nil
	}
	err := t.publish(multiplayer.TypePlayerLeave, nil)
	t.hub.setPresence(t.id, nil)
	t.mutex.Lock()
	t.state = model.ConnectionDisconnected
	ch := t.ch
	t.mutex.Unlock()
	t.hub.bs.CancelSubscription(ch)
	return err
}

// Disconnect simulates a dropped connection without a leave message.
func (t *Transport) Disconnect() {
	t.mutex.Lock()
	ch := t.ch
	t.mutex.Unlock()
	t.hub.setPresence(t.id, nil)
	t.hub.bs.CancelSubscription(ch)
}
