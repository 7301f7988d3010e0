package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

var refDate = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return refDate }

func entry(name string, t int64) model.LeaderboardEntry {
	return model.LeaderboardEntry{Name: name, Time: t, Laps: 3, Date: refDate}
}

func TestInsert(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.LeaderboardEntry
		add     model.LeaderboardEntry
		want    []string
	}{
		{
			name: "empty",
			add:  entry("a", 100),
			want: []string{"a"},
		},
		{
			name:    "sorted ascending",
			entries: []model.LeaderboardEntry{entry("a", 100), entry("c", 300)},
			add:     entry("b", 200),
			want:    []string{"a", "b", "c"},
		},
		{
			name:    "equal time keeps insertion order",
			entries: []model.LeaderboardEntry{entry("a", 100)},
			add:     entry("b", 100),
			want:    []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Insert(tt.entries, tt.add)
			names := make([]string, len(got))
			for i := range got {
				names[i] = got[i].Name
			}
			if diff := cmp.Diff(tt.want, names); diff != "" {
				t.Errorf("Insert() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInsertCap(t *testing.T) {
	var entries []model.LeaderboardEntry
	for i := range model.LeaderboardCap {
		entries = Insert(entries, entry(fmt.Sprintf("p%d", i), int64(1000+i)))
	}
	require.Len(t, entries, model.LeaderboardCap)

	slow := Insert(entries, entry("slow", 999999))
	assert.Len(t, slow, model.LeaderboardCap)
	assert.Equal(t, "p49", slow[model.LeaderboardCap-1].Name)

	fast := Insert(entries, entry("fast", 1))
	assert.Len(t, fast, model.LeaderboardCap)
	assert.Equal(t, "fast", fast[0].Name)
	assert.Equal(t, "p48", fast[model.LeaderboardCap-1].Name)
}

func TestIsOwnEntry(t *testing.T) {
	e := model.LeaderboardEntry{Name: "Player", Time: 65000, Laps: 3}
	assert.True(t, IsOwnEntry(e, "Player", 65050, 3))
	assert.True(t, IsOwnEntry(e, "Player", 64901, 3))
	assert.False(t, IsOwnEntry(e, "Player", 65100, 3))
	assert.False(t, IsOwnEntry(e, "Other", 65000, 3))
	assert.False(t, IsOwnEntry(e, "Player", 65000, 5))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithClock(fixedClock))

	_, err := m.List(ctx, 4)
	require.ErrorIs(t, err, ErrInvalidLapCount)
	require.ErrorIs(t, m.Add(ctx, 7, Submission{Name: "x"}), ErrInvalidLapCount)
	require.ErrorIs(t, m.Add(ctx, 3, Submission{}), ErrMissingField)

	require.NoError(t, m.Add(ctx, 3, Submission{Name: "b", Time: 2000, Position: 2}))
	require.NoError(t, m.Add(ctx, 3, Submission{Name: "a", Time: 1000, Position: 1}))
	require.NoError(t, m.Add(ctx, 5, Submission{Name: "c", Time: 500, Position: 1}))

	got, err := m.List(ctx, 3)
	require.NoError(t, err)
	want := []model.LeaderboardEntry{
		{Name: "a", Time: 1000, Position: 1, Laps: 3, Date: refDate},
		{Name: "b", Time: 2000, Position: 2, Laps: 3, Date: refDate},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	empty, err := m.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// fakeServer mimics the leaderboard REST contract on top of a Memory store.
func fakeServer(t *testing.T, store Store) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/leaderboard/{laps}", func(w http.ResponseWriter, r *http.Request) {
		var laps int
		fmt.Sscanf(r.PathValue("laps"), "%d", &laps)
		entries, err := store.List(r.Context(), laps)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(entries)
	})
	mux.HandleFunc("POST /api/leaderboard/{laps}", func(w http.ResponseWriter, r *http.Request) {
		var laps int
		fmt.Sscanf(r.PathValue("laps"), "%d", &laps)
		var s Submission
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := store.Add(r.Context(), laps, s); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := fakeServer(t, NewMemory(WithClock(fixedClock)))
	c := NewClient(srv.URL+"/", WithClientLogger(log.NewNop()))

	require.NoError(t, c.Add(ctx, 5, Submission{Name: "Player", Time: 93210, Position: 3}))
	got, err := c.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Player", got[0].Name)
	assert.Equal(t, int64(93210), got[0].Time)
	assert.Equal(t, 5, got[0].Laps)
	assert.True(t, IsOwnEntry(got[0], "Player", 93210, 5))
}

func TestClientPathPrefix(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL,
		WithPathPrefix("/v2/scores"),
		WithHTTPClient(srv.Client()),
		WithClientLogger(log.NewNop()))

	got, err := c.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "/v2/scores/10", path)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	srv := fakeServer(t, NewMemory())
	c := NewClient(srv.URL, WithClientLogger(log.NewNop()))

	_, err := c.List(ctx, 4)
	require.ErrorIs(t, err, ErrInvalidLapCount)

	err = c.Add(ctx, 3, Submission{Time: 10})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Message, "missing required fields")

	srv.Close()
	_, err = c.List(ctx, 3)
	require.Error(t, err)
}

type failingStore struct{ calls int }

var errUnavailable = errors.New("unavailable")

func (f *failingStore) List(context.Context, int) ([]model.LeaderboardEntry, error) {
	f.calls++
	return nil, errUnavailable
}

func (f *failingStore) Add(context.Context, int, Submission) error {
	f.calls++
	return errUnavailable
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	remote := &failingStore{}
	local := NewMemory(WithClock(fixedClock))
	f := NewFallback(remote, local, WithFallbackLogger(log.NewNop()))

	require.NoError(t, f.Add(ctx, 3, Submission{Name: "Player", Time: 4000, Position: 1}))
	got, err := f.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Player", got[0].Name)
	assert.Equal(t, 2, remote.calls)

	require.ErrorIs(t, f.Add(ctx, 4, Submission{Name: "x"}), ErrInvalidLapCount)
	assert.Equal(t, 2, remote.calls)
}

func TestFallbackPrefersRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemory()
	local := NewMemory()
	f := NewFallback(remote, local, WithFallbackLogger(log.NewNop()))

	require.NoError(t, f.Add(ctx, 10, Submission{Name: "Player", Time: 4000}))
	r, _ := remote.List(ctx, 10)
	l, _ := local.List(ctx, 10)
	assert.Len(t, r, 1)
	assert.Empty(t, l)
}

type countingStore struct {
	Store
	lists int
}

func (c *countingStore) List(ctx context.Context, laps int) ([]model.LeaderboardEntry, error) {
	c.lists++
	return c.Store.List(ctx, laps)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewMemory(WithClock(fixedClock))}
	c := NewCached(inner, time.Minute)

	require.NoError(t, c.Add(ctx, 5, Submission{Name: "a", Time: 2000, Position: 1}))
	for range 3 {
		got, err := c.List(ctx, 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	assert.Equal(t, 1, inner.lists)

	require.NoError(t, c.Add(ctx, 5, Submission{Name: "b", Time: 1000, Position: 2}))
	got, err := c.List(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, []string{got[0].Name, got[1].Name})
	assert.Equal(t, 2, inner.lists)

	_, err = c.List(ctx, 4)
	require.ErrorIs(t, err, ErrInvalidLapCount)
}
