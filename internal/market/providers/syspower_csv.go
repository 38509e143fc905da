package providers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/morning-report/internal/market"
)

const dayHeader = "#Day"

// ParseFrame reads a semicolon separated web query export. The first column, headed
// #Day, holds the day (dd.mm.yyyy); remaining columns are series. Empty cells become NaN and both
// decimal separators are accepted.
func ParseFrame(r io.Reader) (*market.Frame, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty export")
		}
		return nil, err
	}
	if first := strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")); first != dayHeader {
		return nil, fmt.Errorf("unexpected export header: first column is %q, want %q", first, dayHeader)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("export header has no series: %q", header)
	}

	var names []string
	for _, h := range header[1:] {
		h = strings.TrimSpace(h)
		if h == "" {
			break
		}
		names = append(names, h)
	}
	frame := market.NewFrame(names...)

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}

		day, err := parseSyspowerDay(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frame.Days = append(frame.Days, day)

		for i, name := range names {
			cell := ""
			if i+1 < len(rec) {
				cell = rec[i+1]
			}
			v, err := parseNumber(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, name, err)
			}
			frame.Columns[name] = append(frame.Columns[name], v)
		}
	}

	return frame, nil
}

func parseSyspowerDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{syspowerDateLayout, "02.01.2006 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid day %q", s)
}

// parseNumber accepts "12.5", "12,5" and "" (NaN).
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.Replace(s, ",", ".", 1)
	return strconv.ParseFloat(s, 64)
}
