package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"equitybot/internal/logger"
	"equitybot/internal/market"
)

// ErrNoData is returned when no requested symbol has bars in range.
var ErrNoData = errors.New("no bars in range")

// BarSource loads stored history for one symbol.
type BarSource interface {
	LoadBars(ctx context.Context, symbol, timeframe string, start, end time.Time) (market.Bars, error)
}

// Replay turns per-symbol bar histories into cycle frames. Each distinct bar
// timestamp across all symbols is one frame; the bar closing at that time
// becomes the quote and earlier bars form the history. Bars are not
// validated here so a bad row reaches the engine as a malformed quote.
type Replay struct {
	window  int
	symbols []string
	bars    map[string]market.Bars
	times   []time.Time
	cursor  map[string]int
	next    int
}

// NewReplay builds a replay whose frames start at the first bar at or after
// start (zero start replays everything). window caps the history per frame.
func NewReplay(bars map[string]market.Bars, start time.Time, window int) *Replay {
	r := &Replay{
		window: window,
		bars:   make(map[string]market.Bars, len(bars)),
		cursor: make(map[string]int, len(bars)),
	}
	seen := make(map[int64]time.Time)
	for sym, series := range bars {
		if len(series) == 0 {
			continue
		}
		r.symbols = append(r.symbols, sym)
		r.bars[sym] = series
		idx := 0
		for idx < len(series) && series[idx].Time.Before(start) {
			idx++
		}
		r.cursor[sym] = idx
		for _, b := range series[idx:] {
			seen[b.Time.UnixNano()] = b.Time
		}
	}
	sort.Strings(r.symbols)
	for _, t := range seen {
		r.times = append(r.times, t)
	}
	sort.Slice(r.times, func(i, j int) bool { return r.times[i].Before(r.times[j]) })
	return r
}

// Load reads every symbol from src, with enough warm-up history before start
// to fill window bars, and returns a replay over [start, end].
func Load(ctx context.Context, src BarSource, symbols []string, timeframe string, start, end time.Time, window int) (*Replay, error) {
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	from := tf.WarmupStart(start, window)
	bars := make(map[string]market.Bars, len(symbols))
	for _, sym := range symbols {
		series, err := src.LoadBars(ctx, sym, tf.Key, from, end)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", sym, err)
		}
		if len(series) == 0 {
			logger.Warnf("[feed] no %s bars for %s", tf.Key, sym)
			continue
		}
		bars[sym] = series
	}
	r := NewReplay(bars, start, window)
	if r.Len() == 0 {
		return nil, ErrNoData
	}
	logger.Infof("[feed] replay of %d frames over %d symbols", r.Len(), len(r.symbols))
	return r, nil
}

// Next returns the next frame, or false once the replay is exhausted.
func (r *Replay) Next() (market.Frame, bool) {
	if r.next >= len(r.times) {
		return market.Frame{}, false
	}
	at := r.times[r.next]
	r.next++
	frame := market.Frame{
		Time:      at,
		Snapshots: make(map[string]market.Snapshot, len(r.symbols)),
		Histories: make(map[string]market.Bars, len(r.symbols)),
	}
	for _, sym := range r.symbols {
		series := r.bars[sym]
		idx := r.cursor[sym]
		if idx >= len(series) || !series[idx].Time.Equal(at) {
			continue
		}
		frame.Snapshots[sym] = SnapshotFromBar(series[idx])
		hist := series[:idx]
		if r.window > 0 {
			hist = hist.Tail(r.window)
		}
		frame.Histories[sym] = hist
		r.cursor[sym] = idx + 1
	}
	return frame, true
}

func (r *Replay) Len() int { return len(r.times) }

func (r *Replay) Remaining() int { return len(r.times) - r.next }

func (r *Replay) Symbols() []string {
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// SnapshotFromBar quotes a closed bar at its close.
func SnapshotFromBar(b market.Bar) market.Snapshot {
	return market.Snapshot{
		Price:  b.Close,
		Volume: b.Volume,
		High:   b.High,
		Low:    b.Low,
		Bid:    b.Close,
		Ask:    b.Close,
	}
}
