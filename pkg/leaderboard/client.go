package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

const DefaultPathPrefix = "/api/leaderboard"

type (
	ClientOption func(*Client)
	// Client talks to a leaderboard server over its REST contract.
	Client struct {
		baseURL    string
		pathPrefix string
		httpClient *http.Client
		l          *log.Logger
	}
)

var _ Store = (*Client)(nil)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithPathPrefix(prefix string) ClientOption {
	return func(cl *Client) {
		cl.pathPrefix = prefix
	}
}

func WithClientLogger(l *log.Logger) ClientOption {
	return func(cl *Client) {
		cl.l = l
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	ret := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		pathPrefix: DefaultPathPrefix,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		l:          log.Default().Named("leaderboard.client"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (c *Client) url(laps int) string {
	return fmt.Sprintf("%s%s/%d", c.baseURL, c.pathPrefix, laps)
}

func (c *Client) List(ctx context.Context, laps int) ([]model.LeaderboardEntry, error) {
	if err := ValidateLaps(laps); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(laps), http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var ret []model.LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&ret); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	c.l.Debug("fetched leaderboard", log.Int("laps", laps), log.Int("entries", len(ret)))
	return ret, nil
}

func (c *Client) Add(ctx context.Context, laps int, s Submission) error {
	if err := ValidateLaps(laps); err != nil {
		return err
	}
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(laps),
		bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	c.l.Debug("submitted leaderboard entry",
		log.Int("laps", laps), log.String("name", s.Name), log.Int64("time", s.Time))
	return nil
}

// StatusError is returned for non 2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("leaderboard server returned %d", e.Code)
	}
	return fmt.Sprintf("leaderboard server returned %d: %s", e.Code, e.Message)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	ret := &StatusError{Code: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &payload) == nil {
		ret.Message = payload.Error
	}
	return ret
}
