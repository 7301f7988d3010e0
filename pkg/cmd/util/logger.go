package util

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/utils"
)

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the logger for the configured level and format and
// installs it as default. A log config file takes precedence.
func SetupLogger() *log.Logger {
	var logger *log.Logger
	if config.LogConfig != "" {
		if cfg, err := log.LoadFilterConfig(config.LogConfig); err == nil {
			logger, err = log.NewFiltered(os.Stderr, cfg, log.WithCaller(true))
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid log config: %v\n", err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "could not load log config: %v\n", err)
		}
	}
	if logger == nil {
		logger = newLogger(config.LogLevel)
	}
	log.ResetDefault(logger)
	return logger
}

// NewSQLLogger is used for tracing database queries.
func NewSQLLogger() *log.Logger {
	return newLogger(config.SQLLogLevel)
}

func newLogger(level string) *log.Logger {
	switch config.LogFormat {
	case "json":
		return log.New(
			os.Stderr,
			ParseLogLevel(level, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		return log.DevLogger(
			os.Stderr,
			ParseLogLevel(level, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
}

// WaitForServices blocks until the given tcp addresses accept connections.
// Empty addresses are skipped.
func WaitForServices(addrs ...string) {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}

	wg := sync.WaitGroup{}
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := utils.WaitForTCP(context.Background(), addr, timeout); err != nil {
				log.Fatal("required services not ready", log.ErrorField(err))
			}
		}()
	}
	log.Debug("Waiting for connection checks to return")
	wg.Wait()
	log.Debug("Required services are available")
}

func SetupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}
