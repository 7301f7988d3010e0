// Package arcade serves the terminal arcade to ssh clients.
package arcade

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/logging"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/cmd/util"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/terminal"
)

const shutdownTimeout = 5 * time.Second

var raceCfg config.RaceConfig

func NewSSHCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssh",
		Short: "serves the arcade via ssh",
		Long: `Every ssh session gets its own race. The ssh user name is used as pilot name.
With a NATS url sessions of all users meet in the configured room.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startSSH(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&config.SSHAddr, "ssh-addr", ":2222",
		"listen address of the ssh server")
	cmd.Flags().StringVar(&config.SSHHostKey, "ssh-host-key", ".ssh/nrg_host_key",
		"path to the host key (created if missing)")
	util.AddRaceFlags(cmd, &raceCfg, config.DefaultPlayerName)
	return cmd
}

func startSSH(ctx context.Context) error {
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

	s, err := wish.NewServer(
		wish.WithAddress(config.SSHAddr),
		wish.WithHostKeyPath(config.SSHHostKey),
		wish.WithMiddleware(
			arcadeMiddleware(ctx, game, logger.Named("ssh")),
			activeterm.Middleware(),
			logging.Middleware(),
		),
		ssh.WrapConn(func(_ ssh.Context, conn net.Conn) net.Conn {
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn
		}),
	)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ssh arcade", log.String("addr", config.SSHAddr))
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case v := <-sigChan:
		logger.Info("Got signal", log.Any("signal", v))
	case err := <-errCh:
		logger.Error("ssh server failed", log.ErrorField(err))
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func arcadeMiddleware(ctx context.Context, game *util.Game, l *log.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			pty, winCh, ok := sess.Pty()
			if !ok {
				fmt.Fprintln(sess, "a terminal is required, connect with: ssh -t")
				return
			}
			sl := l.Named(sess.User())
			sl.Info("session started",
				log.String("term", pty.Term),
				log.Int("width", pty.Window.Width),
				log.Int("height", pty.Window.Height))

			size := newSizeTracker(pty.Window.Width, pty.Window.Height)
			go func() {
				for win := range winCh {
					size.update(win.Width, win.Height)
				}
			}()

			cfg := raceCfg
			cfg.PlayerName = sess.User()
			sessCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-sess.Context().Done():
					cancel()
				case <-sessCtx.Done():
				}
			}()
			a := terminal.NewArcade(sess, sess, game.SessionFactory(sl),
				terminal.WithRaceConfig(cfg),
				terminal.WithMenuLeaderboard(game.Menu),
				terminal.WithOnline(game.Online()),
				terminal.WithSize(size.get),
				terminal.WithArcadeLogger(sl))
			if err := a.Run(sessCtx); err != nil {
				sl.Warn("arcade failed", log.ErrorField(err))
			}
			sl.Info("session ended")
			next(sess)
		}
	}
}

// sizeTracker follows window changes of the client.
type sizeTracker struct {
	mu     sync.RWMutex
	width  int
	height int
}

func newSizeTracker(width, height int) *sizeTracker {
	return &sizeTracker{width: width, height: height}
}

func (s *sizeTracker) update(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
}

func (s *sizeTracker) get() (cols, rows int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}
