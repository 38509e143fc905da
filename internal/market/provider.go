package market

import (
	"context"
	"time"
)

// WeatherProvider loads derived weather figures (precipitation and temperature indices)
// for the report day.
type WeatherProvider interface {
	LoadWeather(ctx context.Context, day time.Time) (Values, error)
}

// ThermalsProvider loads commodity closing prices for the report day.
type ThermalsProvider interface {
	LoadThermals(ctx context.Context, day time.Time) (Values, error)
}

// ForwardProvider loads forward curve settlements for the report day.
type ForwardProvider interface {
	LoadForwards(ctx context.Context, day time.Time) ([]ForwardQuote, error)
}
