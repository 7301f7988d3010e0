// Package simulate races the local ship on autopilot without a terminal.
package simulate

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/cmd/util"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/processing"
	"github.com/mpapenbr/nebula-racers-go/pkg/terminal"
)

var (
	raceCfg  config.RaceConfig
	realtime bool
	races    int
	timeout  time.Duration
)

func NewSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "runs races on autopilot",
		Long: `The local ship is driven by the autopilot. Results are submitted to the
leaderboard like those of a human pilot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startSimulation(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&realtime, "realtime", false,
		"tick with the configured tick rate instead of as fast as possible")
	cmd.Flags().IntVar(&races, "races", 1, "number of races")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute,
		"maximum duration of a single race")
	util.AddRaceFlags(cmd, &raceCfg, "Autopilot")
	return cmd
}

func startSimulation(ctx context.Context, out io.Writer) error {
	logger := util.SetupLogger()
	game, err := util.NewGame()
	if err != nil {
		return err
	}
	defer func() {
		if err := game.Close(); err != nil {
			logger.Warn("closing game", log.ErrorField(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	newSession := game.SessionFactory(logger)
	for i := range races {
		if ctx.Err() != nil {
			return nil
		}
		snap, err := runRace(ctx, newSession, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Race %d/%d\n", i+1, races)
		printResult(out, snap)
	}
	return printLeaderboard(ctx, out, game)
}

func runRace(
	ctx context.Context,
	newSession terminal.SessionFactory,
	l *log.Logger,
) (model.Snapshot, error) {
	session, err := newSession(ctx, raceCfg)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			l.Debug("session close", log.ErrorField(err))
		}
	}()

	opts := []processing.Option{
		processing.WithAutopilot(),
		processing.WithStopOnFinish(),
		processing.WithLogger(l.Named("runner")),
	}
	if !realtime {
		opts = append(opts, processing.WithInterval(0))
	}
	runner := processing.NewRunner(session, opts...)
	defer runner.Close()

	var last model.Snapshot
	sub := runner.Snapshots().Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range sub {
			last = snap
		}
	}()

	raceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := runner.Run(raceCtx); err != nil {
		return model.Snapshot{}, err
	}
	runner.Close()
	<-done
	// snapshots may have been dropped, the final state is taken from the session
	if res := session.Result(); res != nil {
		last.Result = res
	}
	return last, nil
}

func printResult(out io.Writer, snap model.Snapshot) {
	if snap.Result == nil {
		fmt.Fprintf(out, "  not finished after %s\n", terminal.FormatTime(snap.ElapsedMs))
	} else {
		fmt.Fprintf(out, "  %s finished P%d in %s\n",
			snap.Result.Name, snap.Result.Position, terminal.FormatTime(snap.Result.TimeMs))
	}
	fmt.Fprintf(out, "  obstacle hits %d, off track ticks %d, rejected laps %d\n",
		snap.ObstacleHits, snap.OffTrackTicks, snap.RejectedLaps)
	for _, s := range snap.Standings {
		fmt.Fprintf(out, "  %2d. %-12s %-6s lap %d\n", s.Position, s.Name, s.Kind, s.Lap)
	}
}

func printLeaderboard(ctx context.Context, out io.Writer, game *util.Game) error {
	entries, err := game.Store.List(ctx, raceCfg.Sanitized().Laps)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Leaderboard, %d laps\n", raceCfg.Sanitized().Laps)
	for i, e := range entries {
		fmt.Fprintf(out, "  %2d. %-16s %s  P%d\n", i+1, e.Name, terminal.FormatTime(e.Time), e.Position)
	}
	return nil
}
