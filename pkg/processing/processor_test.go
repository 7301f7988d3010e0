package processing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing/race"
	"github.com/mpapenbr/nebula-racers-go/pkg/track"
)

func newSession(t *testing.T) *race.Session {
	t.Helper()
	cfg := config.DefaultRaceConfig()
	cfg.CountdownTicks = 1
	cfg.Seed = 7
	s, err := race.NewSession(cfg,
		race.WithLogger(log.NewNop()),
		race.WithLayoutOptions(track.WithObstacleCount(0), track.WithoutObstruction()))
	require.NoError(t, err)
	return s
}

func TestControls(t *testing.T) {
	c := &Controls{}
	assert.Equal(t, model.ControlInput{}, c.Get())
	c.Set(model.ControlInput{Forward: true, TurnLeft: true})
	assert.Equal(t, model.ControlInput{Forward: true, TurnLeft: true}, c.Get())
}

func TestStepPublishesSnapshots(t *testing.T) {
	s := newSession(t)
	controls := &Controls{}
	r := NewRunner(s, WithLogger(log.NewNop()), WithControls(controls))
	defer r.Close()
	sub := r.Snapshots().Subscribe()

	require.NoError(t, s.Start(context.Background()))
	controls.Set(model.ControlInput{Forward: true})
	var last model.Snapshot
	for range 10 {
		last = r.Step(context.Background())
	}
	assert.Equal(t, model.StateRacing, last.State)
	assert.Equal(t, uint64(10), last.Tick)

	select {
	case snap := <-sub:
		assert.Equal(t, uint64(1), snap.Tick)
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
	}
}

func TestRunUntilFinished(t *testing.T) {
	s := newSession(t)
	r := NewRunner(s,
		WithLogger(log.NewNop()),
		WithInterval(0),
		WithAutopilot(),
		WithStopOnFinish())
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	require.Equal(t, model.StateFinished, s.State())
	require.NotNil(t, s.Result())
	assert.Equal(t, 3, s.Result().Laps)
}

func TestRunStopsWithContext(t *testing.T) {
	s := newSession(t)
	r := NewRunner(s, WithLogger(log.NewNop()), WithInterval(time.Millisecond))
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	assert.NotEqual(t, model.StateMenu, s.State())
}

func TestDoRunsBetweenTicks(t *testing.T) {
	s := newSession(t)
	r := NewRunner(s, WithLogger(log.NewNop()), WithInterval(time.Millisecond))
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	done := make(chan model.SessionState, 1)
	require.NoError(t, r.Do(ctx, func(s *race.Session) {
		_ = s.ReturnToMenu()
		done <- s.State()
	}))
	select {
	case state := <-done:
		assert.Equal(t, model.StateMenu, state)
	case <-time.After(time.Second):
		t.Fatal("command not executed")
	}
}
