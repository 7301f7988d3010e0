package multiplayer

import (
	"context"
	"sync"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

// Transport connects a session to a room of other participants.
// Send must not block the simulation tick for long, inbound messages are
// delivered to the Queue handed to the transport.
type Transport interface {
	// ID is the identity of the local participant within the room.
	ID() string
	Connect(ctx context.Context, q *Queue) error
	Join(ctx context.Context, msg PlayerJoin) error
	Update(ctx context.Context, msg PlayerUpdate) error
	BroadcastReset(ctx context.Context, msg BroadcastReset) error
	State() model.ConnectionState
	Close() error
}

// Queue is the inbound mailbox. Transports push from their own goroutines,
// the session drains it once per tick.
type Queue struct {
	mu    sync.Mutex
	items []Inbound
	limit int
	drops int
}

func NewQueue(limit int) *Queue {
	return &Queue{limit: limit}
}

// Push appends msg. When the queue is full the oldest movement update is
// dropped, other messages are never dropped.
func (q *Queue) Push(msg Inbound) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && len(q.items) >= q.limit {
		for i, item := range q.items {
			if item.Type() == TypePlayerMoved {
				q.items = append(q.items[:i], q.items[i+1:]...)
				q.drops++
				break
			}
		}
	}
	q.items = append(q.items, msg)
}

// Drain returns all queued messages in arrival order and empties the queue.
func (q *Queue) Drain() []Inbound {
	q.mu.Lock()
	defer q.mu.Unlock()
	ret := q.items
	q.items = nil
	return ret
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}
