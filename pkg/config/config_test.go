package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRaceConfig_Sanitized(t *testing.T) {
	tests := []struct {
		name string
		cfg  RaceConfig
		want RaceConfig
	}{
		{
			name: "empty config gets defaults",
			cfg:  RaceConfig{},
			want: DefaultRaceConfig(),
		},
		{
			name: "invalid lap count falls back to 3",
			cfg:  RaceConfig{Laps: 7},
			want: DefaultRaceConfig(),
		},
		{
			name: "valid lap count is kept",
			cfg:  RaceConfig{Laps: 10, PlayerName: "Zed"},
			want: func() RaceConfig {
				c := DefaultRaceConfig()
				c.Laps = 10
				c.PlayerName = "Zed"
				return c
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Sanitized())
		})
	}
}

func TestRaceConfigZeroValueIsStrict(t *testing.T) {
	assert.False(t, RaceConfig{}.Sanitized().LenientLaps)
	assert.False(t, DefaultRaceConfig().LenientLaps)
	assert.True(t, RaceConfig{LenientLaps: true}.Sanitized().LenientLaps)
}

func TestIsValidLapCount(t *testing.T) {
	for _, laps := range []int{3, 5, 10} {
		assert.True(t, IsValidLapCount(laps))
	}
	for _, laps := range []int{0, 1, 4, 50, -3} {
		assert.False(t, IsValidLapCount(laps))
	}
}
