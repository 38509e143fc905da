package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/morning-report/internal/market"
)

// MetricKind tells how a weather metric aggregates its daily values.
type MetricKind string

const (
	MetricPrecip MetricKind = "precip"
	MetricTemp   MetricKind = "temp"
)

// WeatherMetric binds a report metric to its forecast, previous-forecast and normal series.
type WeatherMetric struct {
	Name     string     `yaml:"name" validate:"required"`
	Kind     MetricKind `yaml:"kind" validate:"oneof=precip temp"`
	Forecast string     `yaml:"forecast" validate:"required"`
	Previous string     `yaml:"previous" validate:"required"`
	Normal   string     `yaml:"normal"`
}

// ForwardSeries is a forward contract series on the analytics portal.
type ForwardSeries struct {
	Key    string `yaml:"key" validate:"required"`
	Name   string `yaml:"name"`
	Series string `yaml:"series" validate:"required"`
	Unit   string `yaml:"unit"`
}

// Selectors describes how to drive the thermals portal UI. They are plain CSS selectors
// supplied by the operator; defaults only match generic form markup.
type Selectors struct {
	LoginPath  string `yaml:"login_path"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Submit     string `yaml:"submit"`
	LoggedIn   string `yaml:"logged_in"`
	DateInput  string `yaml:"date_input"`
	DateLayout string `yaml:"date_layout"`
	Export     string `yaml:"export"`
}

// Thermals configures the commodity price session.
type Thermals struct {
	// NPClose is the Nord Pool close time of day, HH:MM in NPCloseTZ.
	NPClose     string              `yaml:"np_close" validate:"datetime=15:04"`
	NPCloseTZ   string              `yaml:"np_close_tz"`
	Selectors   Selectors           `yaml:"selectors"`
	Instruments []market.Instrument `yaml:"instruments" validate:"dive"`
}

// Catalog lists what to fetch and how.
type Catalog struct {
	Weather  []WeatherMetric `yaml:"weather" validate:"dive"`
	Forwards []ForwardSeries `yaml:"forwards" validate:"dive"`
	Thermals Thermals        `yaml:"thermals"`
}

// DefaultCatalog returns the built-in catalog used when no file is configured.
func DefaultCatalog() Catalog {
	return Catalog{
		Weather: []WeatherMetric{
			{Name: "ec12_adj", Kind: MetricPrecip, Forecast: "SMHIPENNP_F", Previous: "SMHIPENNP_L", Normal: "SKMPENNP_N"},
			{Name: "ec12_adj", Kind: MetricTemp, Forecast: "SMHITEMPNP_F", Previous: "SMHITEMPNP_L", Normal: "TEMPNP_N"},
			{Name: "ec12", Kind: MetricPrecip, Forecast: "EC12PENNP_F", Previous: "EC00PENNP_L", Normal: "SKMPENNP_N"},
			{Name: "ec12", Kind: MetricTemp, Forecast: "EC12TEMPNP_F", Previous: "EC00TEMPNP_L", Normal: "TEMPNP_N"},
			{Name: "ec12ens", Kind: MetricPrecip, Forecast: "PENNPACCMEAN_F", Previous: "PENNPACCMEAN_L", Normal: "SKMPENNP_N"},
			{Name: "ec12ens", Kind: MetricTemp, Forecast: "EC12ENSTEMPNP_F", Previous: "EC00ENSTEMPNP_L", Normal: "TEMPNP_N"},
		},
		Thermals: Thermals{
			NPClose:   "16:00",
			NPCloseTZ: "Europe/Oslo",
			Selectors: Selectors{
				LoginPath:  "/en/default.aspx",
				Username:   `input[type="text"][name*="UserName"]`,
				Password:   `input[type="password"]`,
				Submit:     `input[type="submit"]`,
				LoggedIn:   `a[href*="logout"], a[href*="Logout"]`,
				DateInput:  `input[type="date"], input[name*="Date"]`,
				DateLayout: "02.01.2006",
				Export:     `a[href*="xls"], button[title*="Export"]`,
			},
			Instruments: []market.Instrument{
				{Key: "coal", Name: "Coal API2", Unit: "USD/t", Kind: market.KindSession, PagePath: "/Exchanges/ICE/coal.aspx"},
				{Key: "gas", Name: "Gas TTF", Unit: "EUR/MWh", Kind: market.KindSession, PagePath: "/Exchanges/ICE/ttf.aspx"},
				{Key: "co2", Name: "Carbon EUA", Unit: "EUR/t", Kind: market.KindSession, PagePath: "/Exchanges/ICE/eua.aspx"},
				{Key: "oil", Name: "Oil Brent", Unit: "USD/bbl", Kind: market.KindMorning, PagePath: "/Exchanges/ICE/brent.aspx"},
			},
		},
	}
}

// LoadCatalog reads a YAML catalog from path and lays it over the defaults.
// Sections present in the file replace the default section entirely.
func LoadCatalog(path string) (Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}

	var file Catalog
	if err := yaml.Unmarshal(b, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	if len(file.Weather) > 0 {
		cat.Weather = file.Weather
	}
	if len(file.Forwards) > 0 {
		cat.Forwards = file.Forwards
	}
	if len(file.Thermals.Instruments) > 0 {
		cat.Thermals.Instruments = file.Thermals.Instruments
	}
	if file.Thermals.NPClose != "" {
		cat.Thermals.NPClose = file.Thermals.NPClose
	}
	if file.Thermals.NPCloseTZ != "" {
		cat.Thermals.NPCloseTZ = file.Thermals.NPCloseTZ
	}
	mergeSelectors(&cat.Thermals.Selectors, file.Thermals.Selectors)

	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// Validate checks the catalog structure.
func (c Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	seen := make(map[string]bool)
	for _, in := range c.Thermals.Instruments {
		if in.Key == "" {
			return errors.New("invalid catalog: instrument key is required")
		}
		if in.Kind != market.KindSession && in.Kind != market.KindMorning {
			return fmt.Errorf("invalid catalog: instrument %s has unknown kind %q", in.Key, in.Kind)
		}
		if seen[in.Key] {
			return fmt.Errorf("invalid catalog: duplicate instrument %s", in.Key)
		}
		seen[in.Key] = true
	}
	return nil
}

// Series returns every analytics series the weather metrics reference, without duplicates.
func (c Catalog) Series() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, m := range c.Weather {
		add(m.Forecast)
		add(m.Previous)
		add(m.Normal)
	}
	return out
}

func mergeSelectors(dst *Selectors, src Selectors) {
	set := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	set(&dst.LoginPath, src.LoginPath)
	set(&dst.Username, src.Username)
	set(&dst.Password, src.Password)
	set(&dst.Submit, src.Submit)
	set(&dst.LoggedIn, src.LoggedIn)
	set(&dst.DateInput, src.DateInput)
	set(&dst.DateLayout, src.DateLayout)
	set(&dst.Export, src.Export)
}
