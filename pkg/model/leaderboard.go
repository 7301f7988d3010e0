package model

import "time"

// LeaderboardEntry is a single finished race. Time is in milliseconds.
type LeaderboardEntry struct {
	Name     string    `json:"name"`
	Time     int64     `json:"time"`
	Position int       `json:"position"`
	Laps     int       `json:"laps"`
	Date     time.Time `json:"date"`
}

const LeaderboardCap = 50
