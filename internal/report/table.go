package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/i474232898/morning-report/internal/market"
)

const tableSheet = "Morning report"

var tableHeader = []string{"indicator", "value", "delta_prev", "delta_norm", "unit", "direction"}

// Row is one line of the tabular summary. Absent deltas are NaN.
type Row struct {
	Indicator string
	Value     float64
	DeltaPrev float64
	DeltaNorm float64
	Unit      string
	Direction string
}

// BuildTable lays out weather figures, thermal prices and forward quotes as rows.
// Instruments supply display names and units for thermal keys.
func BuildTable(values market.Values, forwards []market.ForwardQuote, instruments ...market.Instrument) []Row {
	byKey := make(map[string]market.Instrument, len(instruments))
	for _, in := range instruments {
		byKey[in.Key] = in
	}
	lookup := func(key string) (string, string) {
		if in, ok := byKey[key]; ok {
			return in.Name, in.Unit
		}
		return key, ""
	}
	delta := func(key string) float64 {
		if v, ok := values[key]; ok {
			return v
		}
		return math.NaN()
	}

	var rows []Row
	for _, k := range values.Keys() {
		switch {
		case strings.HasSuffix(k, "_precip"):
			prev := delta(k + "_delta_prev")
			rows = append(rows, Row{
				Indicator: k, Value: values[k], DeltaPrev: prev, DeltaNorm: delta(k + "_delta_norm"),
				Unit: "TWh", Direction: Direction(prev, Drier, Wetter),
			})
		case strings.HasSuffix(k, "_temp"):
			prev := delta(k + "_delta_prev")
			rows = append(rows, Row{
				Indicator: k, Value: values[k], DeltaPrev: prev, DeltaNorm: delta(k + "_delta_norm"),
				Unit: "°C", Direction: Direction(prev, Colder, Warmer),
			})
		}
	}

	for _, k := range values.Keys() {
		switch {
		case strings.HasSuffix(k, "_np_close"):
		case strings.HasSuffix(k, "_close"):
			key := strings.TrimSuffix(k, "_close")
			name, unit := lookup(key)
			p := sessionPrice(values, key)
			row := Row{Indicator: name, Value: values[k], DeltaPrev: math.NaN(), DeltaNorm: math.NaN(), Unit: unit, Direction: p.Dir}
			if p.Traded {
				row.DeltaPrev = p.Delta
			}
			rows = append(rows, row)
		case strings.HasSuffix(k, "_last_price"):
			key := strings.TrimSuffix(k, "_last_price")
			name, unit := lookup(key)
			d := values.Get(key + "_last_delta")
			rows = append(rows, Row{
				Indicator: name, Value: values[k], DeltaPrev: d, DeltaNorm: math.NaN(),
				Unit: unit, Direction: Direction(d, Down, Up),
			})
		}
	}

	for _, q := range forwards {
		name := q.Name
		if name == "" {
			name = q.Key
		}
		rows = append(rows, Row{
			Indicator: name, Value: q.Close, DeltaPrev: q.Delta, DeltaNorm: math.NaN(),
			Unit: q.Unit, Direction: Direction(q.Delta, Down, Up),
		})
	}
	return rows
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{r.Indicator, formatCell(r.Value), formatCell(r.DeltaPrev), formatCell(r.DeltaNorm), r.Unit, r.Direction}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX saves rows as a single-sheet workbook at path.
func WriteXLSX(path string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", tableSheet); err != nil {
		return err
	}

	header := make([]interface{}, len(tableHeader))
	for i, h := range tableHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(tableSheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(tableSheet, "A1", "F1", bold); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		record := []interface{}{r.Indicator, r.Value, sheetValue(r.DeltaPrev), sheetValue(r.DeltaNorm), r.Unit, r.Direction}
		if err := f.SetSheetRow(tableSheet, cell, &record); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(tableSheet, "A", "A", 24); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// sheetValue leaves absent deltas as empty cells.
func sheetValue(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
