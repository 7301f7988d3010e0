package terminal

import (
	"fmt"
	"math"
	"strings"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/physics"
	"github.com/mpapenbr/nebula-racers-go/pkg/track"
)

const (
	hudLines    = 3
	footerLines = 1
	boostBar    = 20
	menuEntries = 10
)

const (
	cellEmpty    = ' '
	cellTrack    = '.'
	cellStart    = '='
	cellObstacle = 'o'
	cellBoost    = '+'
	cellPortal   = '#'
	cellPlanet   = '*'
	cellLocal    = 'P'
	cellRemote   = 'R'
)

// RaceView is everything a race frame is drawn from.
type RaceView struct {
	Track    *track.Track
	Layout   *model.TrackLayout
	Snapshot model.Snapshot
	Throttle bool
}

// MenuView is the lobby shown between races.
type MenuView struct {
	Name    string
	Laps    int
	Entries []model.LeaderboardEntry
	Message string
	Online  bool
}

// FormatTime renders a race time as mm:ss.mmm.
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

// Frame turns lines into one terminal update that redraws the screen from
// the top left corner. Lines are cut to cols.
func Frame(lines []string, cols int) string {
	var sb strings.Builder
	sb.WriteString("\x1b[H")
	for _, line := range lines {
		sb.WriteString(truncate(line, cols))
		sb.WriteString("\x1b[K\r\n")
	}
	sb.WriteString("\x1b[J")
	return sb.String()
}

func truncate(s string, cols int) string {
	if cols <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > cols {
		return string(r[:cols])
	}
	return s
}

// RenderMenu draws the lobby with the leaderboard of the selected lap count.
func RenderMenu(v MenuView, cols, rows int) []string {
	lapChoice := func(n int) string {
		if n == v.Laps {
			return fmt.Sprintf("[%d]", n)
		}
		return fmt.Sprintf(" %d ", n)
	}
	mode := "offline"
	if v.Online {
		mode = "online"
	}
	lines := []string{
		"N E B U L A   R A C E R S",
		"",
		fmt.Sprintf("Pilot: %s (%s)", v.Name, mode),
		fmt.Sprintf("Laps: %s %s %s   (3, 5, 0 to choose)", lapChoice(3), lapChoice(5), lapChoice(10)),
		"enter start   q quit",
		"",
		fmt.Sprintf("Leaderboard, %d laps", v.Laps),
	}
	if len(v.Entries) == 0 {
		lines = append(lines, "  no entries yet")
	}
	for i, e := range v.Entries {
		if i == menuEntries {
			break
		}
		lines = append(lines, fmt.Sprintf("%3d. %-16s %s  P%d",
			i+1, truncate(e.Name, 16), FormatTime(e.Time), e.Position))
	}
	if v.Message != "" {
		lines = append(lines, "", v.Message)
	}
	return fit(lines, rows)
}

// RenderRace draws the hud, a top down map of the circuit and the key help.
func RenderRace(v RaceView, cols, rows int) []string {
	snap := v.Snapshot
	lines := make([]string, 0, rows)
	lines = append(lines, statusLine(snap), boostLine(snap, v.Throttle), messageLine(snap))
	mapRows := rows - hudLines - footerLines
	if mapRows > 2 && cols > 4 {
		lines = append(lines, renderMap(v, cols, mapRows)...)
	}
	lines = append(lines,
		"a/d steer  s brake  space boost  w throttle  r reset  m menu  q quit")
	return fit(lines, rows)
}

func fit(lines []string, rows int) []string {
	if rows > 0 && len(lines) > rows {
		return lines[:rows]
	}
	return lines
}

func statusLine(snap model.Snapshot) string {
	lap := min(snap.Local.Lap+1, snap.TotalLaps)
	return fmt.Sprintf("Lap %d/%d  Pos %d/%d  Time %s  Speed %.1f  %s",
		lap, snap.TotalLaps,
		snap.LocalPosition, len(snap.Standings),
		FormatTime(snap.ElapsedMs),
		snap.Local.Speed,
		snap.Connection)
}

func boostLine(snap model.Snapshot, throttle bool) string {
	filled := int(math.Round(snap.Local.BoostAmount / 100 * boostBar))
	filled = max(0, min(boostBar, filled))
	throttleText := "off"
	if throttle {
		throttleText = "on"
	}
	return fmt.Sprintf("Boost [%s%s] %3.0f%%  Throttle %s",
		strings.Repeat("#", filled), strings.Repeat("-", boostBar-filled),
		snap.Local.BoostAmount, throttleText)
}

func messageLine(snap model.Snapshot) string {
	switch {
	case snap.State == model.StateCountdown:
		return "        " + snap.Countdown
	case snap.State == model.StateFinished && snap.Result != nil:
		return fmt.Sprintf("FINISHED  P%d  %s   enter for the menu",
			snap.Result.Position, FormatTime(snap.Result.TimeMs))
	case snap.PortalEntered:
		return "Portal: " + snap.PortalURL
	case len(snap.Notifications) > 0:
		return snap.Notifications[len(snap.Notifications)-1]
	}
	return ""
}

// mapper converts world coordinates to map cells. Terminal cells are about
// twice as high as wide.
type mapper struct {
	cols, rows int
	scale      float64
	cx, cy     float64
}

func newMapper(extent float64, cols, rows int) mapper {
	scale := math.Min(float64(cols-1)/(2*extent), float64(rows-1)*2/(2*extent))
	return mapper{
		cols:  cols,
		rows:  rows,
		scale: scale,
		cx:    float64(cols-1) / 2,
		cy:    float64(rows-1) / 2,
	}
}

func (m mapper) cell(p physics.Vec2) (col, row int, ok bool) {
	col = int(math.Round(m.cx + p.X*m.scale))
	row = int(math.Round(m.cy - p.Z*m.scale/2))
	ok = col >= 0 && col < m.cols && row >= 0 && row < m.rows
	return col, row, ok
}

func (m mapper) world(col, row int) physics.Vec2 {
	return physics.V((float64(col)-m.cx)/m.scale, (m.cy-float64(row))*2/m.scale)
}

func renderMap(v RaceView, cols, rows int) []string {
	t := v.Track
	m := newMapper(t.OuterBoundary()+2, cols, rows)
	grid := make([][]rune, rows)
	for row := range grid {
		grid[row] = make([]rune, cols)
		for col := range grid[row] {
			p := m.world(col, row)
			d := p.Len()
			switch {
			case d < t.InnerBoundary() || d > t.OuterBoundary():
				grid[row][col] = cellEmpty
			case p.X > 0 && math.Abs(p.Z) < 1/m.scale:
				grid[row][col] = cellStart
			default:
				grid[row][col] = cellTrack
			}
		}
	}
	put := func(p physics.Vec2, r rune) {
		if col, row, ok := m.cell(p); ok {
			grid[row][col] = r
		}
	}
	if v.Layout != nil {
		if v.Layout.Obstruction != nil {
			put(v.Layout.Obstruction.Center, cellPlanet)
		}
		for _, o := range v.Layout.Obstacles {
			put(o.Position, cellObstacle)
		}
		for _, b := range v.Snapshot.Boosts {
			if b.Active {
				put(b.Position, cellBoost)
			}
		}
		if v.Layout.Portal != nil {
			put(v.Layout.Portal.Position, cellPortal)
		}
	}
	// local racer last so it is never hidden
	for _, r := range v.Snapshot.Racers {
		switch r.Kind {
		case model.KindAI:
			put(r.Position, rune('1'+r.Index%9))
		case model.KindRemote:
			put(r.Position, cellRemote)
		case model.KindHuman:
		}
	}
	put(v.Snapshot.Local.Position, cellLocal)

	ret := make([]string, rows)
	for row := range grid {
		ret[row] = strings.TrimRight(string(grid[row]), " ")
	}
	return ret
}
