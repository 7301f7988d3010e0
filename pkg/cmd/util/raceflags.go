package util

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mpapenbr/nebula-racers-go/pkg/config"
)

// lapsValue accepts any input for --laps. Values which are not a valid lap
// count select the default race length.
type lapsValue struct {
	laps *int
}

var _ pflag.Value = (*lapsValue)(nil)

func newLapsValue(laps *int, def int) *lapsValue {
	*laps = def
	return &lapsValue{laps: laps}
}

func (v *lapsValue) String() string {
	if v.laps == nil {
		return ""
	}
	return strconv.Itoa(*v.laps)
}

func (v *lapsValue) Set(s string) error {
	laps, err := strconv.Atoi(s)
	if err != nil || !config.IsValidLapCount(laps) {
		laps = config.DefaultLaps
	}
	*v.laps = laps
	return nil
}

func (v *lapsValue) Type() string {
	return "int"
}

// AddRaceFlags registers the race settings of commands that create sessions.
func AddRaceFlags(cmd *cobra.Command, cfg *config.RaceConfig, name string) {
	def := config.DefaultRaceConfig()
	cmd.Flags().Var(newLapsValue(&cfg.Laps, def.Laps), "laps",
		"number of laps (3, 5 or 10, anything else selects 3)")
	cmd.Flags().BoolVar(&cfg.LenientLaps, "lenient-laps", def.LenientLaps,
		"count a lap on every forward crossing of the line, even with checkpoints missed")
	cmd.Flags().IntVar(&cfg.TickRate, "tick-rate", def.TickRate,
		"simulation ticks per second")
	cmd.Flags().IntVar(&cfg.CountdownTicks, "countdown-ticks", def.CountdownTicks,
		"ticks per countdown step")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 0,
		"seed of the track layout and AI (0 picks a random one)")
	cmd.Flags().StringVar(&cfg.PlayerName, "player-name", name,
		"pilot name shown on the leaderboard")
	cmd.Flags().StringVar(&cfg.ShipColor, "ship-color", def.ShipColor,
		"ship color announced to other players")
	cfg.TrackLength = def.TrackLength
	cfg.TrackWidth = def.TrackWidth
}
