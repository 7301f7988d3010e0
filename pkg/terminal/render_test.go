package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
	"github.com/mpapenbr/nebula-racers-go/pkg/track"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00.000"},
		{-5, "00:00.000"},
		{1234, "00:01.234"},
		{61005, "01:01.005"},
		{3599999, "59:59.999"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTime(tt.ms))
	}
}

func TestFrame(t *testing.T) {
	got := Frame([]string{"abcdef", "xy"}, 4)
	assert.Equal(t, "\x1b[Habcd\x1b[K\r\nxy\x1b[K\r\n\x1b[J", got)
}

func TestRenderMenu(t *testing.T) {
	entries := make([]model.LeaderboardEntry, 12)
	for i := range entries {
		entries[i] = model.LeaderboardEntry{Name: "Pilot", Time: int64(60000 + i), Position: 1, Laps: 5}
	}
	lines := RenderMenu(MenuView{Name: "Ace", Laps: 5, Entries: entries, Message: "hello"}, 80, 40)
	text := strings.Join(lines, "\n")

	assert.Contains(t, text, "Pilot: Ace (offline)")
	assert.Contains(t, text, "[5]")
	assert.Contains(t, text, "  1. Pilot")
	assert.Contains(t, text, " 10. Pilot")
	assert.NotContains(t, text, " 11. Pilot")
	assert.Contains(t, text, "01:00.000")
	assert.Equal(t, "hello", lines[len(lines)-1])
}

func TestRenderMenuEmpty(t *testing.T) {
	lines := RenderMenu(MenuView{Name: "Ace", Laps: 3, Online: true}, 80, 5)
	assert.Len(t, lines, 5)
	assert.Contains(t, lines[2], "(online)")
}

func TestRenderRace(t *testing.T) {
	tr, err := track.New(1000, 100)
	require.NoError(t, err)
	start, _ := tr.StartPosition(1)
	layout := &model.TrackLayout{
		Portal: &model.Portal{Position: tr.PointAt(0.5)},
	}
	snap := model.Snapshot{
		State:         model.StateRacing,
		ElapsedMs:     12345,
		TotalLaps:     3,
		Connection:    model.ConnectionDisconnected,
		Local:         model.Racer{Kind: model.KindHuman, Position: start, Speed: 1.5, BoostAmount: 50},
		Racers:        []model.Racer{{Kind: model.KindAI, Index: 0, Position: tr.PointAt(0.25)}},
		Standings:     make([]model.RaceStanding, 2),
		LocalPosition: 1,
	}
	cols, rows := 60, 30
	lines := RenderRace(RaceView{Track: tr, Layout: layout, Snapshot: snap, Throttle: true}, cols, rows)
	require.Len(t, lines, rows)

	assert.Equal(t, "Lap 1/3  Pos 1/2  Time 00:12.345  Speed 1.5  disconnected", lines[0])
	assert.Contains(t, lines[1], "[##########----------]  50%")
	assert.Contains(t, lines[1], "Throttle on")
	for _, line := range lines {
		assert.LessOrEqual(t, len([]rune(line)), cols)
	}
	mapText := strings.Join(lines[hudLines:rows-footerLines], "\n")
	assert.Equal(t, 1, strings.Count(mapText, string(cellLocal)))
	assert.Equal(t, 1, strings.Count(mapText, "1"))
	assert.Equal(t, 1, strings.Count(mapText, string(cellPortal)))
	assert.Contains(t, mapText, string(cellTrack))
}

func TestRenderRaceMessages(t *testing.T) {
	tests := []struct {
		name string
		snap model.Snapshot
		want string
	}{
		{
			name: "countdown",
			snap: model.Snapshot{State: model.StateCountdown, Countdown: "2"},
			want: "        2",
		},
		{
			name: "finished",
			snap: model.Snapshot{
				State:  model.StateFinished,
				Result: &model.Result{Position: 2, TimeMs: 90500},
			},
			want: "FINISHED  P2  01:30.500   enter for the menu",
		},
		{
			name: "portal",
			snap: model.Snapshot{State: model.StateRacing, PortalEntered: true, PortalURL: "https://x"},
			want: "Portal: https://x",
		},
		{
			name: "latest notification",
			snap: model.Snapshot{State: model.StateRacing, Notifications: []string{"a", "b"}},
			want: "b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, messageLine(tt.snap))
		})
	}
}

func TestMapperRoundTrip(t *testing.T) {
	m := newMapper(100, 81, 41)
	col, row, ok := m.cell(physics.V(0, 0))
	require.True(t, ok)
	assert.Equal(t, 40, col)
	assert.Equal(t, 20, row)
	_, _, ok = m.cell(physics.V(1000, 0))
	assert.False(t, ok)
}
