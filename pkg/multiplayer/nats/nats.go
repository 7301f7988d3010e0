package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/multiplayer"
)

const DefaultPresenceTTL = time.Minute * 10

type (
	// Transport connects a session to a room via a NATS subject.
	// Presence of the room members is kept in a JetStream key value bucket,
	// late joiners read it to build the existingPlayers message.
	Transport struct {
		conn        *nats.Conn
		id          string
		room        string
		l           *log.Logger
		presenceTTL time.Duration
		mutex       sync.Mutex
		state       model.ConnectionState
		sub         *nats.Subscription
		kv          jetstream.KeyValue
		queue       *multiplayer.Queue
		self        *multiplayer.PlayerState
	}
	Option func(*Transport)
)

func WithLogger(l *log.Logger) Option {
	return func(t *Transport) {
		t.l = l
	}
}

func WithRoom(room string) Option {
	return func(t *Transport) {
		t.room = room
	}
}

func WithPresenceTTL(ttl time.Duration) Option {
	return func(t *Transport) {
		t.presenceTTL = ttl
	}
}

//nolint:whitespace // editor/linter issue
func NewTransport(conn *nats.Conn, id string, opts ...Option) *Transport {
	ret := &Transport{
		conn:        conn,
		id:          id,
		room:        "lobby",
		l:           log.Default().Named("nats"),
		presenceTTL: DefaultPresenceTTL,
		state:       model.ConnectionDisconnected,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) Subject() string {
	return fmt.Sprintf("nrg.room.%s", t.room)
}

func (t *Transport) Bucket() string {
	return fmt.Sprintf("nrg-presence-%s", t.room)
}

func (t *Transport) State() model.ConnectionState {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.state
}

func (t *Transport) setState(s model.ConnectionState) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.state = s
}

// Connect subscribes to the room and pushes the current members into q.
func (t *Transport) Connect(ctx context.Context, q *multiplayer.Queue) (err error) {
	t.setState(model.ConnectionConnecting)
	t.queue = q
	if err = t.setupKV(ctx); err != nil {
		t.setState(model.ConnectionDisconnected)
		return err
	}
	if t.sub, err = t.conn.Subscribe(t.Subject(), t.handleMessage); err != nil {
		t.setState(model.ConnectionDisconnected)
		return err
	}
	t.conn.SetDisconnectErrHandler(func(_ *nats.Conn, dErr error) {
		t.l.Warn("connection lost", log.ErrorField(dErr))
		t.setState(model.ConnectionDisconnected)
		q.Push(multiplayer.Disconnect{Reason: "connection lost"})
	})
	t.conn.SetReconnectHandler(func(_ *nats.Conn) {
		t.l.Info("reconnected", log.String("room", t.room))
		t.setState(model.ConnectionConnected)
		t.mutex.Lock()
		self := t.self
		t.mutex.Unlock()
		if self != nil {
			//nolint:errcheck // logged by publish
			t.publishPresence(context.Background(), self)
		}
	})

	existing, err := t.currentMembers(ctx)
	if err != nil {
		t.l.Warn("could not read room members", log.ErrorField(err))
	}
	q.Push(multiplayer.ExistingPlayers{Players: existing})
	t.setState(model.ConnectionConnected)
	t.l.Info("connected", log.String("room", t.room), log.Int("members", len(existing)))
	return nil
}

func (t *Transport) setupKV(ctx context.Context) error {
	js, err := jetstream.New(t.conn)
	if err != nil {
		return err
	}
	t.kv, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: t.Bucket(),
		TTL:    t.presenceTTL,
	})
	return err
}

func (t *Transport) currentMembers(ctx context.Context) (map[string]multiplayer.PlayerState, error) {
	ret := make(map[string]multiplayer.PlayerState)
	lister, err := t.kv.ListKeys(ctx)
	if err != nil {
		return ret, err
	}
	defer lister.Stop() //nolint:errcheck // read only
	for key := range lister.Keys() {
		if key == t.id {
			continue
		}
		entry, gErr := t.kv.Get(ctx, key)
		if gErr != nil {
			t.l.Debug("skipping member", log.String("key", key), log.ErrorField(gErr))
			continue
		}
		var st multiplayer.PlayerState
		if uErr := json.Unmarshal(entry.Value(), &st); uErr != nil {
			t.l.Debug("skipping member", log.String("key", key), log.ErrorField(uErr))
			continue
		}
		ret[key] = st
	}
	return ret, nil
}

func (t *Transport) handleMessage(msg *nats.Msg) {
	env, err := multiplayer.DecodeEnvelope(msg.Data)
	if err != nil {
		t.l.Debug("ignoring malformed message", log.ErrorField(err))
		return
	}
	if env.Sender == t.id {
		return
	}
	if vErr := multiplayer.CheckVersion(env.Version); vErr != nil {
		t.l.Debug("ignoring message", log.String("sender", env.Sender), log.ErrorField(vErr))
		return
	}
	in, err := multiplayer.ToInbound(env)
	if err != nil {
		t.l.Debug("ignoring message", log.String("sender", env.Sender), log.ErrorField(err))
		return
	}
	t.queue.Push(in)
}

func (t *Transport) Join(ctx context.Context, msg multiplayer.PlayerJoin) error {
	st := multiplayer.PlayerState{
		Name:      &msg.Name,
		Position:  &msg.Position,
		Rotation:  &msg.Rotation,
		ShipColor: &msg.ShipColor,
	}
	t.mutex.Lock()
	t.self = &st
	t.mutex.Unlock()
	if err := t.publishPresence(ctx, &st); err != nil {
		return err
	}
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
	return t.conn.Publish(t.Subject(), data)
}

func (t *Transport) publishPresence(ctx context.Context, st *multiplayer.PlayerState) error {
	if t.kv == nil {
		return multiplayer.ErrNotConnected
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	rev, err := t.kv.Put(ctx, t.id, data)
	t.l.Debug("presence put", log.String("key", t.id), log.Uint64("rev", rev), log.ErrorField(err))
	return err
}

// Close announces the leave, removes the presence entry and unsubscribes.
// The nats connection itself is owned by the caller.
func (t *Transport) Close() error {
	var errs []error
	if t.State() == model.ConnectionConnected {
		errs = append(errs, t.publish(multiplayer.TypePlayerLeave, nil))
	}
	if t.kv != nil {
		errs = append(errs, t.kv.Delete(context.Background(), t.id))
	}
	if t.sub != nil {
		errs = append(errs, t.sub.Unsubscribe())
	}
	t.setState(model.ConnectionDisconnected)
	return errors.Join(errs...)
}
