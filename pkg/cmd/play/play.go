// Package play runs the terminal arcade on the local terminal.
package play

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/cmd/util"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/terminal"
)

var (
	raceCfg config.RaceConfig
	logFile string
)

var ErrNoTerminal = errors.New("stdin is not a terminal")

func NewPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "races on the local terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startPlay(cmd)
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "nrg-play.log",
		"log output is written here while the terminal is in raw mode")
	util.AddRaceFlags(cmd, &raceCfg, config.DefaultPlayerName)
	return cmd
}

func startPlay(cmd *cobra.Command) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ErrNoTerminal
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	logger := log.DevLogger(f, util.ParseLogLevel(config.LogLevel, log.InfoLevel))
	log.ResetDefault(logger)

	game, err := util.NewGame()
	if err != nil {
		return err
	}
	defer func() {
		if err := game.Close(); err != nil {
			logger.Warn("closing game", log.ErrorField(err))
		}
	}()

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer func() {
		_ = term.Restore(fd, oldState)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	size := func() (int, int) {
		cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil {
			return 80, 24
		}
		return cols, rows
	}
	a := terminal.NewArcade(os.Stdin, os.Stdout, game.SessionFactory(logger),
		terminal.WithRaceConfig(raceCfg),
		terminal.WithMenuLeaderboard(game.Menu),
		terminal.WithOnline(game.Online()),
		terminal.WithSize(size),
		terminal.WithArcadeLogger(logger.Named("arcade")))
	return a.Run(ctx)
}
