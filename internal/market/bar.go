package market

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV period of an instrument's history.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate reports whether the bar carries usable, finite prices.
func (b Bar) Validate() error {
	for name, v := range map[string]float64{"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close, "volume": b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar %s is not finite", name)
		}
	}
	if b.Close <= 0 || b.High <= 0 || b.Low <= 0 {
		return fmt.Errorf("bar prices must be > 0")
	}
	if b.High < b.Low {
		return fmt.Errorf("bar high %.4f below low %.4f", b.High, b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar volume must be >= 0")
	}
	return nil
}

// Bars is an oldest-to-newest history.
type Bars []Bar

// Tail returns the newest n bars, or all of them when fewer exist.
func (bs Bars) Tail(n int) Bars {
	if n <= 0 {
		return nil
	}
	if n >= len(bs) {
		return bs
	}
	return bs[len(bs)-n:]
}

func (bs Bars) Closes() []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.Close
	}
	return out
}

func (bs Bars) Highs() []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.High
	}
	return out
}

func (bs Bars) Lows() []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.Low
	}
	return out
}

func (bs Bars) Volumes() []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.Volume
	}
	return out
}

// Validate checks ordering and every bar's fields.
func (bs Bars) Validate() error {
	for i, b := range bs {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !b.Time.IsZero() && !bs[i-1].Time.IsZero() && b.Time.Before(bs[i-1].Time) {
			return fmt.Errorf("bar %d is older than its predecessor", i)
		}
	}
	return nil
}
