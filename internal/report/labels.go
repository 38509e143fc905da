package report

import (
	"fmt"
	"math"
	"time"

	"github.com/i474232898/morning-report/internal/market"
)

// Direction labels used in the comment and the table.
const (
	Below  = "below"
	Above  = "above"
	Drier  = "drier"
	Wetter = "wetter"
	Colder = "colder"
	Warmer = "warmer"
	Down   = "down"
	Up     = "up"

	NoTradingSession = "(no trading session)"

	MostlyHigher = "mostly higher"
	Mixed        = "mixed"
	MostlyLower  = "mostly lower"
	Sideways     = "sideways"
)

// carbonRollDay is the December day after which the carbon benchmark rolls to next year.
const carbonRollDay = 15

// Direction returns neg when delta rounds below zero and pos otherwise.
func Direction(delta float64, neg, pos string) string {
	if market.Round1(delta) < 0 {
		return neg
	}
	return pos
}

// FrontQuarter names the quarterly contract quoted for coal and gas on day, e.g. "Q3-24".
func FrontQuarter(day time.Time) string {
	q := int(math.Ceil(float64(day.Month()) / 3))
	front := (q+1)%4 + 1
	year := day.Year()
	if front < q {
		year++
	}
	return fmt.Sprintf("Q%d-%02d", front, year%100)
}

// CarbonContract names the December EUA benchmark for day, e.g. "DEC-24".
func CarbonContract(day time.Time) string {
	year := day.Year()
	if day.Month() == time.December && day.Day() > carbonRollDay {
		year++
	}
	return fmt.Sprintf("DEC-%02d", year%100)
}

// WeatherOutlook is wetter when at least two of the previous-forecast directions are wetter.
func WeatherOutlook(prevDirs ...string) string {
	wetter := 0
	for _, d := range prevDirs {
		if d == Wetter {
			wetter++
		}
	}
	if wetter >= 2 {
		return Wetter
	}
	return Drier
}

// ThermalsOutlook summarises how many thermal instruments moved up.
func ThermalsOutlook(dirs ...string) string {
	up := 0
	for _, d := range dirs {
		if d == Up {
			up++
		}
	}
	switch {
	case up > 2:
		return MostlyHigher
	case up == 2:
		return Mixed
	default:
		return MostlyLower
	}
}

// MarketOutlook is the expected opening direction. Wet weather with firm thermals
// points down, dry weather with soft thermals points up.
func MarketOutlook(weather, thermals string) string {
	switch {
	case weather == Wetter && thermals == MostlyHigher:
		return Down
	case weather == Drier && thermals == MostlyLower:
		return Up
	default:
		return Sideways
	}
}
