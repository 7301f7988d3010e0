package leaderboard

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

type (
	MemoryOption func(*Memory)
	// Memory is a Store kept in process memory.
	Memory struct {
		mutex   sync.Mutex
		entries map[int][]model.LeaderboardEntry
		now     func() time.Time
	}
)

var _ Store = (*Memory)(nil)

func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	ret := &Memory{
		entries: make(map[int][]model.LeaderboardEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (m *Memory) List(ctx context.Context, laps int) ([]model.LeaderboardEntry, error) {
	if err := ValidateLaps(laps); err != nil {
		return nil, err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return slices.Clone(m.entries[laps]), nil
}

func (m *Memory) Add(ctx context.Context, laps int, s Submission) error {
	if err := ValidateLaps(laps); err != nil {
		return err
	}
	if err := ValidateSubmission(s); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.entries[laps] = Insert(m.entries[laps], Entry(laps, s, m.now()))
	return nil
}
