package market

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrMalformedSnapshot marks an instrument whose quote cannot be used this cycle.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Snapshot is the current quote of one instrument, supplied fresh every cycle.
type Snapshot struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Name   string  `json:"name,omitempty"`
}

// Validate returns an error wrapping ErrMalformedSnapshot when a required field is unusable.
// High and Low may be zero (unknown); detectors that need them decline on their own.
func (s Snapshot) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"price", s.Price}, {"volume", s.Volume}, {"high", s.High},
		{"low", s.Low}, {"bid", s.Bid}, {"ask", s.Ask},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrMalformedSnapshot, f.name)
		}
		if f.v < 0 {
			return fmt.Errorf("%w: %s is negative", ErrMalformedSnapshot, f.name)
		}
	}
	if s.Price <= 0 {
		return fmt.Errorf("%w: price must be > 0", ErrMalformedSnapshot)
	}
	if s.High > 0 && s.Low > 0 && s.High < s.Low {
		return fmt.Errorf("%w: high %.4f below low %.4f", ErrMalformedSnapshot, s.High, s.Low)
	}
	return nil
}

// HasRange reports whether the intraday high/low pair is known.
func (s Snapshot) HasRange() bool {
	return s.High > 0 && s.Low > 0
}

// Frame is everything one cycle needs: the quotes and the histories behind them.
type Frame struct {
	Time      time.Time
	Snapshots map[string]Snapshot
	Histories map[string]Bars
}

// SortedSymbols returns the keys of a snapshot map in lexical order.
func SortedSymbols(snapshots map[string]Snapshot) []string {
	out := make([]string, 0, len(snapshots))
	for sym := range snapshots {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
