package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                 string // connection string for the database
	WaitForServices    string // duration to wait for other services to be ready
	LogLevel           string // sets the log level (zap log level values)
	SQLLogLevel        string // sets the log level for sql subsystem
	LogFormat          string // text vs json
	LogConfig          string // path to log config file
	MigrationSourceURL string // location of migration files
	EnableTelemetry    bool   // enable telemetry
	TelemetryEndpoint  string // endpoint for telemetry
	ProfilingPort      int    // port for profiling
	ServerAddr         string // listen addr for leaderboard server (insecure)
	TLSServerAddr      string // listen addr for leaderboard server (tls)
	TLSCertFile        string // path to TLS certificate
	TLSKeyFile         string // path to TLS key
	TLSCAFile          string // path to TLS CA
	TraefikCerts       string // path to traefik certs file
	TraefikCertDomain  string // the domain to lookup within the traefik certs
	Store              string // leaderboard store: postgres or sqlite
	SQLiteFile         string // path to the sqlite leaderboard file
	LeaderboardURL     string // base url of the leaderboard server
	FallbackFile       string // local sqlite file used when the leaderboard server fails
	NatsURL            string // url of the NATS server, empty disables multiplayer
	Room               string // multiplayer room name
	SSHAddr            string // listen addr for the ssh arcade
	SSHHostKey         string // path to the ssh host key
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds the configuration values which are used by the application
type Config struct {
	Race RaceConfig
}

// RaceConfig holds the values a race session is created from
type RaceConfig struct {
	Laps           int     // 3, 5 or 10
	LenientLaps    bool    // count laps with missed checkpoints, the zero value is strict
	TickRate       int     // ticks per second
	CountdownTicks int     // ticks per countdown phase
	Seed           uint64  // 0 picks a random seed
	PlayerName     string  // name shown on the leaderboard
	ShipColor      string  // color announced to other players
	TrackLength    float64 // circumference of the track centerline
	TrackWidth     float64
}

const (
	DefaultLaps           = 3
	DefaultTickRate       = 60
	DefaultCountdownTicks = 60
	DefaultPlayerName     = "Player"
	DefaultShipColor      = "#4fd1c5"
	DefaultTrackLength    = 1000.0
	DefaultTrackWidth     = 100.0
)

var validLaps = map[int]bool{3: true, 5: true, 10: true}

// IsValidLapCount reports whether laps is a selectable race length.
func IsValidLapCount(laps int) bool {
	return validLaps[laps]
}

// DefaultRaceConfig returns the settings of a standard 3 lap race.
func DefaultRaceConfig() RaceConfig {
	return RaceConfig{
		Laps:           DefaultLaps,
		LenientLaps:    false,
		TickRate:       DefaultTickRate,
		CountdownTicks: DefaultCountdownTicks,
		PlayerName:     DefaultPlayerName,
		ShipColor:      DefaultShipColor,
		TrackLength:    DefaultTrackLength,
		TrackWidth:     DefaultTrackWidth,
	}
}

// Sanitized replaces invalid values with their defaults.
// An unknown lap count falls back to 3 laps.
func (c RaceConfig) Sanitized() RaceConfig {
	def := DefaultRaceConfig()
	if !IsValidLapCount(c.Laps) {
		c.Laps = def.Laps
	}
	if c.TickRate <= 0 {
		c.TickRate = def.TickRate
	}
	if c.CountdownTicks <= 0 {
		c.CountdownTicks = def.CountdownTicks
	}
	if c.PlayerName == "" {
		c.PlayerName = def.PlayerName
	}
	if c.ShipColor == "" {
		c.ShipColor = def.ShipColor
	}
	if c.TrackLength <= 0 {
		c.TrackLength = def.TrackLength
	}
	if c.TrackWidth <= 0 {
		c.TrackWidth = def.TrackWidth
	}
	return c
}
