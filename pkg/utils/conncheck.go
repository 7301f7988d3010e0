package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mpapenbr/nebula-racers-go/log"
)

const (
	tcpRetry  = 200 * time.Millisecond
	httpRetry = 500 * time.Millisecond
)

var ErrNotReachable = errors.New("service not reachable")

// WaitForTCP blocks until addr accepts connections.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	var d net.Dialer
	return waitFor(ctx, "tcp", addr, timeout, tcpRetry, func(ctx context.Context) error {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

// WaitForHTTPResponse blocks until url answers. Any status counts as an
// answer.
func WaitForHTTPResponse(ctx context.Context, url string, timeout time.Duration) error {
	if _, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody); err != nil {
		return err
	}
	cli := &http.Client{Timeout: 4 * httpRetry}
	return waitFor(ctx, "http", url, timeout, httpRetry, func(ctx context.Context) error {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		resp, err := cli.Do(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	})
}

//nolint:whitespace // can't make both editor and linter happy
func waitFor(
	ctx context.Context,
	kind, target string,
	timeout, retry time.Duration,
	check func(context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	log.Debug("waiting for service",
		log.String("kind", kind),
		log.String("target", target),
		log.Duration("timeout", timeout))

	ticker := time.NewTicker(retry)
	defer ticker.Stop()
	for {
		err := check(ctx)
		if err == nil {
			log.Debug("service available",
				log.String("target", target),
				log.Duration("duration", time.Since(start)))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %v: %w", ErrNotReachable, target, timeout, err)
		case <-ticker.C:
		}
	}
}

// ExtractFromNatsURL returns host:port of the first server of a NATS url list.
func ExtractFromNatsURL(url string) string {
	first, _, _ := strings.Cut(url, ",")
	return hostPort(
		"^(nats|tls)://(.*@)?(?P<addr>(?P<host>[^:/]*?)(:(?P<port>\\d+))?)/?$", first, 4222)
}

// ExtractFromDBURL returns host:port of a postgres connection url.
func ExtractFromDBURL(url string) string {
	return hostPort(
		"^postgres(ql)?://(.*@)?(?P<addr>(?P<host>[^/]*?)(:(?P<port>\\d+))?)/.*", url, 5432)
}

func hostPort(regEx, url string, defaultPort int) string {
	param := resolveRegex(regEx, url)
	if param["addr"] == "" {
		return ""
	}
	if param["port"] != "" {
		return param["addr"]
	}
	return fmt.Sprintf("%s:%d", param["addr"], defaultPort)
}

func resolveRegex(regEx, url string) map[string]string {
	compRegEx := regexp.MustCompile(regEx)
	match := compRegEx.FindStringSubmatch(url)

	ret := make(map[string]string)
	for i, name := range compRegEx.SubexpNames() {
		if name != "" && i < len(match) {
			ret[name] = match[i]
		}
	}
	return ret
}
