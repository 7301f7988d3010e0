package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
	"connectrpc.com/otelconnect"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/nebula-racers-go/log"
	cmdutil "github.com/mpapenbr/nebula-racers-go/pkg/cmd/util"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/db/postgres"
	"github.com/mpapenbr/nebula-racers-go/pkg/endpoints/leaderboard"
	lb "github.com/mpapenbr/nebula-racers-go/pkg/leaderboard"
	"github.com/mpapenbr/nebula-racers-go/pkg/leaderboard/sqlite"
	"github.com/mpapenbr/nebula-racers-go/pkg/service"
	"github.com/mpapenbr/nebula-racers-go/pkg/utils"
)

const healthService = "nebula.leaderboard"

var cacheTTL time.Duration

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the leaderboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"addr",
		"a",
		"localhost:8080",
		"listen address (insecure, h2c)")
	cmd.Flags().StringVar(&config.TLSServerAddr,
		"tls-addr",
		"",
		"listen address for TLS connections")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert",
		"",
		"path to TLS certificate")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key",
		"",
		"path to TLS key")
	cmd.Flags().StringVar(&config.TLSCAFile,
		"tls-ca",
		"",
		"path to TLS root CA, enables optional client certificates")
	cmd.Flags().StringVar(&config.TraefikCerts,
		"traefik-certs",
		"",
		"path to the traefik acme.json file")
	cmd.Flags().StringVar(&config.TraefikCertDomain,
		"traefik-cert-domain",
		"",
		"domain to lookup within the traefik certs")
	cmd.Flags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"debug",
		"controls the log level for sql methods")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (stdout prints the data)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().DurationVar(&cacheTTL,
		"cache-ttl",
		0,
		"keep leaderboards in memory for this duration (0 disables the cache)")
	return cmd
}

//nolint:funlen,cyclop // by design
func startServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cmdutil.SetupLogger()
	var telemetry *config.Telemetry

	log.Debug("Config:",
		log.String("store", config.Store),
		log.String("db", config.DB),
		log.String("sqlite", config.SQLiteFile),
		log.String("addr", config.ServerAddr),
	)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	pgTraceOption := postgres.WithTracer(cmdutil.NewSQLLogger(), log.DebugLevel)
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		var err error
		if telemetry, err = config.SetupTelemetry(ctx); err == nil {
			pgTraceOption = postgres.WithOtlpTracer()
		} else {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	store, closeStore, err := openStore(ctx, pgTraceOption)
	if err != nil {
		log.Error("leaderboard store could not be opened", log.ErrorField(err))
		return err
	}
	defer closeStore()
	if cacheTTL > 0 {
		log.Info("Caching leaderboards", log.Duration("ttl", cacheTTL))
		store = lb.NewCached(store, cacheTTL)
	}

	mux := http.NewServeMux()
	leaderboard.NewHandler(store, leaderboard.WithLogger(logger.Named("endpoints"))).
		Register(mux)
	registerConnectServices(mux)
	corsHandler := newCORS().Handler(mux)
	handler := h2c.NewHandler(corsHandler, &http2.Server{})

	servers := []*http.Server{}
	errCh := make(chan error, 2)
	listen := func(srv *http.Server, serve func(net.Listener) error) {
		lis, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			errCh <- err
			return
		}
		servers = append(servers, srv)
		go func() {
			if err := serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	log.Info("Starting leaderboard server", log.String("addr", config.ServerAddr))
	//nolint:gosec // by design
	plain := &http.Server{Addr: config.ServerAddr, Handler: handler}
	listen(plain, plain.Serve)

	if config.TLSServerAddr != "" {
		if tlsConfig := NewTLSConfigProvider(log.AddToContext(ctx, logger)); tlsConfig != nil {
			log.Info("Starting TLS server", log.String("addr", config.TLSServerAddr))
			//nolint:gosec // by design
			secure := &http.Server{
				Addr:      config.TLSServerAddr,
				Handler:   corsHandler,
				TLSConfig: tlsConfig,
			}
			listen(secure, func(lis net.Listener) error { return secure.ServeTLS(lis, "", "") })
		} else {
			log.Warn("No certificate available, TLS server not started")
		}
	}
	log.Info("Server started")
	cmdutil.SetupGoRoutinesDump()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case v := <-sigChan:
		log.Debug("Got signal ", log.Any("signal", v))
	case err = <-errCh:
		log.Error("server stopped", log.ErrorField(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Warn("server shutdown", log.ErrorField(shutdownErr))
		}
	}
	if telemetry != nil {
		telemetry.Shutdown()
	}

	log.Info("Server terminated")
	return err
}

//nolint:whitespace // can't make both editor and linter happy
func openStore(ctx context.Context, traceOption postgres.PoolConfigOption) (
	store lb.Store, closeFn func(), err error,
) {
	switch config.Store {
	case config.StoreSQLite:
		s, err := sqlite.Open(config.SQLiteFile,
			sqlite.WithLogger(log.Default().Named("leaderboard.sqlite")))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.StorePostgres:
		cmdutil.WaitForServices(utils.ExtractFromDBURL(config.DB))
		pool, err := postgres.InitWithURL(ctx, config.DB, traceOption)
		if err != nil {
			return nil, nil, err
		}
		return service.NewLeaderboardService(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", config.Store)
}

// registerConnectServices exposes the grpc health check and reflection so
// load balancers and grpcurl can check the server.
func registerConnectServices(mux *http.ServeMux) {
	interceptors := []connect.HandlerOption{}
	if otelInterceptor, err := otelconnect.NewInterceptor(); err == nil {
		interceptors = append(interceptors, connect.WithInterceptors(otelInterceptor))
	} else {
		log.Warn("Could not create otel interceptor", log.ErrorField(err))
	}
	checker := grpchealth.NewStaticChecker(healthService)
	mux.Handle(grpchealth.NewHandler(checker, interceptors...))

	reflector := grpcreflect.NewStaticReflector(grpchealth.HealthV1ServiceName)
	mux.Handle(grpcreflect.NewHandlerV1(reflector, interceptors...))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector, interceptors...))
}

func newCORS() *cors.Cors {
	// the game is served from other origins
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Connect-Accept-Encoding",
			"Connect-Content-Encoding",
			"Content-Encoding",
			"Grpc-Accept-Encoding",
			"Grpc-Encoding",
			"Grpc-Message",
			"Grpc-Status",
			"Grpc-Status-Details-Bin",
		},
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
