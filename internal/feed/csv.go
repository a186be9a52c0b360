package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"equitybot/internal/market"
)

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ReadCSV parses bars from a CSV with a header row naming at least
// date (or time/timestamp), open, high, low, close and volume. Column order
// and case are free; extra columns are ignored. Rows are returned oldest
// first. Rows that fail Bar.Validate are rejected with their line number.
func ReadCSV(r io.Reader) (market.Bars, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv is empty")
		}
		return nil, err
	}
	cols, err := csvColumns(header)
	if err != nil {
		return nil, err
	}

	var out market.Bars
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bar, err := parseCSVRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, bar)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

type csvLayout struct {
	time, open, high, low, close, volume int
}

func csvColumns(header []string) (csvLayout, error) {
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	find := func(names ...string) int {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i
			}
		}
		return -1
	}
	l := csvLayout{
		time:   find("date", "time", "timestamp", "datetime"),
		open:   find("open"),
		high:   find("high"),
		low:    find("low"),
		close:  find("close", "adj close", "adj_close"),
		volume: find("volume"),
	}
	var missing []string
	for name, i := range map[string]int{"date": l.time, "open": l.open, "high": l.high, "low": l.low, "close": l.close, "volume": l.volume} {
		if i < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return l, fmt.Errorf("csv header is missing %s", strings.Join(missing, ", "))
	}
	return l, nil
}

func parseCSVRow(rec []string, l csvLayout) (market.Bar, error) {
	field := func(i int) (string, error) {
		if i >= len(rec) {
			return "", fmt.Errorf("expected at least %d fields, got %d", i+1, len(rec))
		}
		return strings.TrimSpace(rec[i]), nil
	}
	raw, err := field(l.time)
	if err != nil {
		return market.Bar{}, err
	}
	ts, err := parseCSVTime(raw)
	if err != nil {
		return market.Bar{}, err
	}
	var vals [5]float64
	for k, i := range []int{l.open, l.high, l.low, l.close, l.volume} {
		s, err := field(i)
		if err != nil {
			return market.Bar{}, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("parse %q: %w", s, err)
		}
		vals[k] = v
	}
	bar := market.Bar{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
	if err := bar.Validate(); err != nil {
		return market.Bar{}, err
	}
	return bar, nil
}

func parseCSVTime(raw string) (time.Time, error) {
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// seconds or milliseconds since epoch
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}
