package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/i474232898/morning-report/internal/market"
)

var testInstruments = []market.Instrument{
	{Key: "coal", Name: "Coal API2", Unit: "USD/t", Kind: market.KindSession},
	{Key: "oil", Name: "Oil Brent", Unit: "USD/bbl", Kind: market.KindMorning},
}

func TestBuildTable(t *testing.T) {
	forwards := []market.ForwardQuote{{Key: "sys_q1", Name: "Nordic Q+1", Unit: "EUR/MWh", Day: monday, Close: 42.5, Delta: -1.5}}
	rows := BuildTable(weatherValues().Merge(thermalValues()), forwards, testInstruments...)

	require.Len(t, rows, 6+4+1)
	assert.Equal(t, "ec12_adj_precip", rows[0].Indicator)
	assert.Equal(t, "TWh", rows[0].Unit)
	assert.Equal(t, Wetter, rows[0].Direction)
	assert.Equal(t, "ec12_adj_temp", rows[1].Indicator)
	assert.Equal(t, "°C", rows[1].Unit)
	assert.Equal(t, "ec12ens_temp", rows[5].Indicator)

	byName := make(map[string]Row)
	for _, r := range rows {
		byName[r.Indicator] = r
	}
	coal := byName["Coal API2"]
	assert.Equal(t, "USD/t", coal.Unit)
	assert.InDelta(t, 1.2, coal.DeltaPrev, 1e-9)
	assert.True(t, math.IsNaN(coal.DeltaNorm))

	co2 := byName["co2"]
	assert.Equal(t, NoTradingSession, co2.Direction)
	assert.True(t, math.IsNaN(co2.DeltaPrev))

	assert.Equal(t, Down, byName["Oil Brent"].Direction)
	assert.Equal(t, Down, byName["Nordic Q+1"].Direction)
}

func TestWriteCSV(t *testing.T) {
	rows := []Row{
		{Indicator: "ec12_precip", Value: 44.1, DeltaPrev: -0.6, DeltaNorm: math.NaN(), Unit: "TWh", Direction: Drier},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, tableHeader, records[0])
	assert.Equal(t, []string{"ec12_precip", "44.1", "-0.6", "", "TWh", "drier"}, records[1])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.xlsx")
	rows := BuildTable(weatherValues(), nil)
	require.NoError(t, WriteXLSX(path, rows))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(tableSheet)
	require.NoError(t, err)
	require.Len(t, got, len(rows)+1)
	assert.Equal(t, "indicator", got[0][0])
	assert.Equal(t, "ec12_adj_precip", got[1][0])
	assert.Equal(t, "45.3", got[1][1])
}

func TestBuildTableWeatherOnly(t *testing.T) {
	rows := BuildTable(weatherValues(), nil)
	require.Len(t, rows, 6)
	for _, r := range rows {
		assert.Contains(t, []string{"TWh", "°C"}, r.Unit)
	}
}
