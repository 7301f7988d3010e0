// Package leaderboard holds the leaderboard collaborator of a race session.
// Every store keeps at most model.LeaderboardCap entries per lap count,
// ascending by time.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

var (
	ErrInvalidLapCount = errors.New("invalid lap count, must be 3, 5 or 10")
	ErrMissingField    = errors.New("missing required fields: name, time, position")
)

// Submission is what a finished racer posts. Laps and date are stamped by the store.
type Submission struct {
	Name     string `json:"name"`
	Time     int64  `json:"time"`
	Position int    `json:"position"`
}

// Store reads and appends leaderboard entries per lap count.
type Store interface {
	List(ctx context.Context, laps int) ([]model.LeaderboardEntry, error)
	Add(ctx context.Context, laps int, s Submission) error
}

func ValidateLaps(laps int) error {
	if !config.IsValidLapCount(laps) {
		return fmt.Errorf("%w: %d", ErrInvalidLapCount, laps)
	}
	return nil
}

func ValidateSubmission(s Submission) error {
	if s.Name == "" || s.Time < 0 {
		return ErrMissingField
	}
	return nil
}

// Entry stamps a submission with laps and date.
func Entry(laps int, s Submission, date time.Time) model.LeaderboardEntry {
	return model.LeaderboardEntry{
		Name:     s.Name,
		Time:     s.Time,
		Position: s.Position,
		Laps:     laps,
		Date:     date.UTC(),
	}
}

// Insert appends e, sorts ascending by time and truncates to the cap.
// Entries with equal time keep their insertion order.
func Insert(entries []model.LeaderboardEntry, e model.LeaderboardEntry) []model.LeaderboardEntry {
	ret := append(slices.Clone(entries), e)
	slices.SortStableFunc(ret, func(a, b model.LeaderboardEntry) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	if len(ret) > model.LeaderboardCap {
		ret = ret[:model.LeaderboardCap]
	}
	return ret
}

// IsOwnEntry reports whether e is the result the player just posted.
// Times within 100ms are treated as equal.
func IsOwnEntry(e model.LeaderboardEntry, name string, elapsedMs int64, laps int) bool {
	return e.Name == name &&
		math.Abs(float64(e.Time-elapsedMs)) < 100 &&
		e.Laps == laps
}
