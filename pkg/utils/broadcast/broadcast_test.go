package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/nebula-racers-go/log"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for value")
	}
	var zero T
	return zero
}

func TestFanOut(t *testing.T) {
	source := make(chan int)
	bs := NewServer("room", "test", source, WithLogger[int](log.NewNop()), WithBuffer[int](4))
	defer bs.Close()

	a := bs.Subscribe()
	b := bs.Subscribe()
	source <- 1
	source <- 2
	assert.Equal(t, 1, receive(t, a))
	assert.Equal(t, 2, receive(t, a))
	assert.Equal(t, 1, receive(t, b))
	assert.Equal(t, 2, receive(t, b))

	bs.CancelSubscription(b)
	_, ok := <-b
	assert.False(t, ok, "cancelled subscription is closed")

	source <- 3
	assert.Equal(t, 3, receive(t, a))
}

func TestSlowListenerIsSkipped(t *testing.T) {
	source := make(chan string)
	bs := NewServer("room", "slow", source,
		WithLogger[string](log.NewNop()),
		WithSendTimeout[string](5*time.Millisecond))
	defer bs.Close()

	slow := bs.Subscribe()
	source <- "dropped"
	time.Sleep(20 * time.Millisecond)
	go func() { source <- "kept" }()
	assert.Equal(t, "kept", receive(t, slow))
}

func TestCloseClosesListeners(t *testing.T) {
	source := make(chan int)
	bs := NewServer("room", "close", source, WithLogger[int](log.NewNop()))
	ch := bs.Subscribe()
	bs.Close()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
