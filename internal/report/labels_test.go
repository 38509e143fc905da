package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDirection(t *testing.T) {
	assert.Equal(t, Drier, Direction(-0.2, Drier, Wetter))
	assert.Equal(t, Wetter, Direction(0, Drier, Wetter))
	// Rounds to -0.0, which is not below zero.
	assert.Equal(t, Wetter, Direction(-0.04, Drier, Wetter))
}

func TestFrontQuarter(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.January, "Q3-24"},
		{time.May, "Q4-24"},
		{time.August, "Q1-25"},
		{time.November, "Q2-25"},
	}
	for _, tt := range tests {
		day := time.Date(2024, tt.month, 10, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, tt.want, FrontQuarter(day), tt.month.String())
	}
}

func TestCarbonContract(t *testing.T) {
	assert.Equal(t, "DEC-24", CarbonContract(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "DEC-24", CarbonContract(time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "DEC-25", CarbonContract(time.Date(2024, 12, 16, 0, 0, 0, 0, time.UTC)))
}

func TestOutlooks(t *testing.T) {
	assert.Equal(t, Wetter, WeatherOutlook(Wetter, Drier, Wetter))
	assert.Equal(t, Drier, WeatherOutlook(Wetter, Drier, Drier))

	assert.Equal(t, MostlyHigher, ThermalsOutlook(Up, Up, Up, Down))
	assert.Equal(t, Mixed, ThermalsOutlook(Up, NoTradingSession, Up, Down))
	assert.Equal(t, MostlyLower, ThermalsOutlook(Up, Down, Down, Down))

	assert.Equal(t, Down, MarketOutlook(Wetter, MostlyHigher))
	assert.Equal(t, Up, MarketOutlook(Drier, MostlyLower))
	assert.Equal(t, Sideways, MarketOutlook(Wetter, Mixed))
}
