package model

type SessionState string

const (
	StateMenu      SessionState = "MENU"
	StateCountdown SessionState = "COUNTDOWN"
	StateRacing    SessionState = "RACING"
	StateFinished  SessionState = "FINISHED"
)

type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
)

// Result is produced when the local racer completes the last lap.
type Result struct {
	Name     string `json:"name"`
	TimeMs   int64  `json:"time"`
	Position int    `json:"position"`
	Laps     int    `json:"laps"`
}

// Snapshot is a read-only copy of the session taken after a tick.
type Snapshot struct {
	Tick          uint64          `json:"tick"`
	State         SessionState    `json:"state"`
	Countdown     string          `json:"countdown,omitempty"`
	ElapsedMs     int64           `json:"elapsedMs"`
	TotalLaps     int             `json:"totalLaps"`
	Connection    ConnectionState `json:"connection"`
	Local         Racer           `json:"local"`
	Racers        []Racer         `json:"racers"`
	Standings     []RaceStanding  `json:"standings"`
	Boosts        []BoostItem     `json:"boosts"`
	Notifications []string        `json:"notifications,omitempty"`
	Result        *Result         `json:"result,omitempty"`
	PortalEntered bool            `json:"portalEntered,omitempty"`
	PortalURL     string          `json:"portalUrl,omitempty"`
	LocalPosition int             `json:"localPosition"`
	ObstacleHits  int             `json:"obstacleHits"`
	OffTrackTicks int             `json:"offTrackTicks"`
	RejectedLaps  int             `json:"rejectedLaps"`
}
