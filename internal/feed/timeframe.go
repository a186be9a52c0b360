package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Timeframe is a bar period.
type Timeframe struct {
	Key      string
	Duration time.Duration
}

var supportedTimeframes = map[string]Timeframe{
	"1m":  {Key: "1m", Duration: time.Minute},
	"5m":  {Key: "5m", Duration: 5 * time.Minute},
	"15m": {Key: "15m", Duration: 15 * time.Minute},
	"30m": {Key: "30m", Duration: 30 * time.Minute},
	"1h":  {Key: "1h", Duration: time.Hour},
	"4h":  {Key: "4h", Duration: 4 * time.Hour},
	"1d":  {Key: "1d", Duration: 24 * time.Hour},
	"1w":  {Key: "1w", Duration: 7 * 24 * time.Hour},
}

func ParseTimeframe(input string) (Timeframe, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	tf, ok := supportedTimeframes[key]
	if !ok {
		return Timeframe{}, fmt.Errorf("unsupported timeframe: %s", input)
	}
	return tf, nil
}

// SupportedTimeframes returns every known key, sorted.
func SupportedTimeframes() []string {
	keys := make([]string, 0, len(supportedTimeframes))
	for k := range supportedTimeframes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WarmupStart is how far before start history must be loaded so the first
// frame already has bars bars of history. Weekends and holidays are covered by
// doubling the span for daily and slower bars.
func (tf Timeframe) WarmupStart(start time.Time, bars int) time.Time {
	if start.IsZero() || bars <= 0 {
		return start
	}
	span := time.Duration(bars+5) * tf.Duration
	if tf.Duration >= 24*time.Hour {
		span *= 2
	}
	return start.Add(-span)
}
