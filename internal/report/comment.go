package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"os"
	"strconv"
	"text/template"
	"time"

	"github.com/i474232898/morning-report/internal/market"
)

//go:embed templates/comment.tmpl
var defaultTemplate string

// Figure is a forecast value with its deltas and their labels.
type Figure struct {
	Value     float64
	DeltaNorm float64
	DeltaPrev float64
	NormDir   string
	PrevDir   string
}

// Forecast groups the precipitation and temperature figures of one weather model.
type Forecast struct {
	Precip Figure
	Temp   Figure
}

// Price is a thermal instrument's closing price and its move.
type Price struct {
	Close  float64
	Delta  float64
	Dir    string
	Traded bool
}

// Comment holds everything the comment template renders.
type Comment struct {
	Day time.Time
	// Friday is " on Friday" on Mondays and empty otherwise.
	Friday         string
	FrontQuarter   string
	CarbonContract string

	EC12Adj  Forecast
	EC12     Forecast
	Ensemble Forecast

	// HasThermals is false when no thermal prices were collected.
	HasThermals bool
	Coal        Price
	Gas         Price
	Carbon      Price
	Oil         Price

	WeatherDir  string
	ThermalsDir string
	MarketDir   string
}

var sessionInstruments = []string{"coal", "gas", "co2"}

// weatherKeys lists the weather values the comment renders. The unadjusted EC12
// sentence covers precipitation only.
func weatherKeys() []string {
	precip := func(m string) []string {
		return []string{m + "_precip", m + "_precip_delta_norm", m + "_precip_delta_prev"}
	}
	keys := precip("ec12_adj")
	keys = append(keys, "ec12_adj_temp", "ec12_adj_temp_delta_norm", "ec12_adj_temp_delta_prev")
	keys = append(keys, precip("ec12")...)
	keys = append(keys, precip("ec12ens")...)
	return append(keys, "ec12ens_temp", "ec12ens_temp_delta_prev")
}

func thermalKeys() []string {
	var keys []string
	for _, k := range sessionInstruments {
		keys = append(keys, k+"_close", k+"_np_close")
	}
	return append(keys, "oil_last_price", "oil_last_delta")
}

// BuildComment derives labels and outlooks from values for day. Every weather value must
// be present; thermal values are either all present or all absent.
func BuildComment(values market.Values, day time.Time) (Comment, error) {
	if err := values.Require(weatherKeys()...); err != nil {
		return Comment{}, err
	}

	c := Comment{
		Day:            day,
		FrontQuarter:   FrontQuarter(day),
		CarbonContract: CarbonContract(day),
		EC12Adj:        forecast(values, "ec12_adj"),
		EC12:           forecast(values, "ec12"),
		Ensemble:       forecast(values, "ec12ens"),
	}
	if day.Weekday() == time.Monday {
		c.Friday = " on Friday"
	}

	c.WeatherDir = WeatherOutlook(c.EC12Adj.Precip.PrevDir, c.EC12.Precip.PrevDir, c.Ensemble.Precip.PrevDir)

	thermals := thermalKeys()
	present := 0
	for _, k := range thermals {
		if _, ok := values[k]; ok {
			present++
		}
	}
	if present > 0 {
		if err := values.Require(thermals...); err != nil {
			return Comment{}, err
		}
		c.HasThermals = true
		c.Coal = sessionPrice(values, "coal")
		c.Gas = sessionPrice(values, "gas")
		c.Carbon = sessionPrice(values, "co2")

		oilDelta := values.Get("oil_last_delta")
		c.Oil = Price{
			Close:  values.Get("oil_last_price"),
			Delta:  oilDelta,
			Dir:    Direction(oilDelta, Down, Up),
			Traded: true,
		}
		c.ThermalsDir = ThermalsOutlook(c.Coal.Dir, c.Gas.Dir, c.Carbon.Dir, c.Oil.Dir)
		c.MarketDir = MarketOutlook(c.WeatherDir, c.ThermalsDir)
	}

	return c, nil
}

func forecast(values market.Values, model string) Forecast {
	precip := Figure{
		Value:     values.Get(model + "_precip"),
		DeltaNorm: values.Get(model + "_precip_delta_norm"),
		DeltaPrev: values.Get(model + "_precip_delta_prev"),
	}
	precip.NormDir = Direction(precip.DeltaNorm, Below, Above)
	precip.PrevDir = Direction(precip.DeltaPrev, Drier, Wetter)

	temp := Figure{
		Value:     values.Get(model + "_temp"),
		DeltaNorm: values.Get(model + "_temp_delta_norm"),
		DeltaPrev: values.Get(model + "_temp_delta_prev"),
	}
	temp.NormDir = Direction(temp.DeltaNorm, Colder, Warmer)
	temp.PrevDir = Direction(temp.DeltaPrev, Colder, Warmer)

	return Forecast{Precip: precip, Temp: temp}
}

// sessionPrice compares the session close with the price at Nord Pool close.
func sessionPrice(values market.Values, key string) Price {
	closePrice := values.Get(key + "_close")
	if closePrice <= 0 {
		return Price{Dir: NoTradingSession}
	}
	delta := market.Round1(closePrice - values.Get(key+"_np_close"))
	return Price{
		Close:  closePrice,
		Delta:  delta,
		Dir:    Direction(delta, Down, Up),
		Traded: true,
	}
}

// Renderer executes the comment template.
type Renderer struct {
	tmpl *template.Template
}

var templateFuncs = template.FuncMap{
	// num prints a figure with one decimal, price with two.
	"num":   func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	"price": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	"abs":   math.Abs,
}

// NewRenderer parses the template at path, or the built-in one when path is empty.
func NewRenderer(path string) (*Renderer, error) {
	text := defaultTemplate
	name := "comment.tmpl"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template: %w", err)
		}
		text = string(b)
		name = path
	}

	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render produces the comment text.
func (r *Renderer) Render(c Comment) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("render comment: %w", err)
	}
	return buf.String(), nil
}
