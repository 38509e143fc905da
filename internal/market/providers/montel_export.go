package providers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"

	"github.com/i474232898/morning-report/internal/common"
	"github.com/i474232898/morning-report/internal/market"
)

// headerScanRows bounds how far down a sheet we look for the header row;
// exports usually start with a title block.
const headerScanRows = 15

var (
	timeHeaders = []string{"date", "time", "dato", "timestamp"}
	// Ordered by preference.
	priceHeaders = []string{"close", "settle", "last", "price"}

	tickLayouts = []string{
		"02.01.2006 15:04:05",
		"02.01.2006 15:04",
		"02.01.2006",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"01/02/2006 15:04:05",
		"01/02/2006 15:04",
		"01/02/2006",
		"1/2/06 15:04",
		"02-Jan-2006",
	}
)

// ParseExport reads a downloaded price export. Spreadsheets (.xlsx, .xlsm) are read from
// their first sheet; anything else is treated as delimited text. Timestamps without a
// zone are interpreted in loc.
func ParseExport(path string, loc *time.Location) (market.TickSeries, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readSheet(path)
	default:
		rows, err = readDelimited(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read export %s: %w", filepath.Base(path), err)
	}
	return parseTickRows(rows, loc)
}

func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readDelimited(path string) ([][]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = sniffDelimiter(b)
	return r.ReadAll()
}

// sniffDelimiter picks ';' when the first line has more semicolons than commas.
func sniffDelimiter(b []byte) rune {
	first := b
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		first = b[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	if bytes.Count(first, []byte("\t")) > bytes.Count(first, []byte(",")) {
		return '\t'
	}
	return ','
}

// ParseQuoteTable extracts ticks from the first HTML table that has a date and a price column.
func ParseQuoteTable(html string, loc *time.Location) (market.TickSeries, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var (
		ticks    market.TickSeries
		parseErr error
		found    bool
	)
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var row []string
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, strings.Join(strings.Fields(cell.Text()), " "))
			})
			if len(row) > 0 {
				rows = append(rows, row)
			}
		})
		if _, _, ok := findHeader(rows); !ok {
			return true
		}
		found = true
		ticks, parseErr = parseTickRows(rows, loc)
		return false
	})

	if !found {
		return nil, errors.New("no quote table with date and price columns")
	}
	return ticks, parseErr
}

// findHeader locates the header row and returns the time and price column indexes.
func findHeader(rows [][]string) (int, [2]int, bool) {
	for r := 0; r < len(rows) && r < headerScanRows; r++ {
		timeCol, priceCol := -1, -1
		priceRank := len(priceHeaders)
		for c, cell := range rows[r] {
			h := strings.ToLower(strings.TrimSpace(cell))
			if h == "" {
				continue
			}
			if timeCol < 0 && common.HasAny(h, timeHeaders...) {
				timeCol = c
				continue
			}
			for rank, ph := range priceHeaders {
				if rank < priceRank && strings.Contains(h, ph) {
					priceCol, priceRank = c, rank
					break
				}
			}
		}
		if timeCol >= 0 && priceCol >= 0 {
			return r, [2]int{timeCol, priceCol}, true
		}
	}
	return 0, [2]int{}, false
}

func parseTickRows(rows [][]string, loc *time.Location) (market.TickSeries, error) {
	headerRow, cols, ok := findHeader(rows)
	if !ok {
		return nil, errors.New("no header with date and price columns")
	}

	var ticks market.TickSeries
	for _, row := range rows[headerRow+1:] {
		if cols[0] >= len(row) || cols[1] >= len(row) {
			continue
		}
		ts, daily, err := parseTickTime(row[cols[0]], loc)
		if err != nil {
			continue
		}
		price, err := parseNumber(row[cols[1]])
		if err != nil || math.IsNaN(price) {
			continue
		}
		ticks = append(ticks, market.Tick{Time: ts, Price: price, Daily: daily})
	}
	if len(ticks) == 0 {
		return nil, errors.New("export has no price rows")
	}
	ticks.Sort()
	return ticks, nil
}

func parseTickTime(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, errors.New("empty time")
	}
	for _, layout := range tickLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, !strings.Contains(layout, "15"), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), false, nil
	}
	// Unformatted spreadsheet cells carry the Excel serial date.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			daily := serial == math.Trunc(serial)
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), daily, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognised time %q", s)
}
