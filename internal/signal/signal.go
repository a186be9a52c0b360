package signal

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Type identifies the detector that produced a Signal.
type Type int

const (
	TypeVolumeSpike Type = iota + 1
	TypePriceBreakout
	TypePriceBreakdown
	TypeUnusualVolatility
	TypeMomentumShift
	TypeHigherLows
	TypeLowerHighs
)

// Types lists every detector type in detection order.
var Types = []Type{
	TypeVolumeSpike,
	TypePriceBreakout,
	TypePriceBreakdown,
	TypeUnusualVolatility,
	TypeMomentumShift,
	TypeHigherLows,
	TypeLowerHighs,
}

func (t Type) String() string {
	switch t {
	case TypeVolumeSpike:
		return "VOLUME_SPIKE"
	case TypePriceBreakout:
		return "PRICE_BREAKOUT"
	case TypePriceBreakdown:
		return "PRICE_BREAKDOWN"
	case TypeUnusualVolatility:
		return "UNUSUAL_VOLATILITY"
	case TypeMomentumShift:
		return "MOMENTUM_SHIFT"
	case TypeHigherLows:
		return "PATTERN_HIGHER_LOWS"
	case TypeLowerHighs:
		return "PATTERN_LOWER_HIGHS"
	default:
		return "UNKNOWN"
	}
}

// Strength is an ordinal intensity; its integer value is the ranking weight.
type Strength int

const (
	StrengthWeak Strength = iota + 1
	StrengthModerate
	StrengthStrong
	StrengthVeryStrong
)

func (s Strength) String() string {
	switch s {
	case StrengthWeak:
		return "WEAK"
	case StrengthModerate:
		return "MODERATE"
	case StrengthStrong:
		return "STRONG"
	case StrengthVeryStrong:
		return "VERY_STRONG"
	default:
		return "UNKNOWN"
	}
}

// Ordinal returns the ranking weight, 0 for an unknown strength.
func (s Strength) Ordinal() int {
	if s < StrengthWeak || s > StrengthVeryStrong {
		return 0
	}
	return int(s)
}

// ParseStrength accepts the String form case-insensitively.
func ParseStrength(raw string) (Strength, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "WEAK":
		return StrengthWeak, nil
	case "MODERATE":
		return StrengthModerate, nil
	case "STRONG":
		return StrengthStrong, nil
	case "VERY_STRONG", "VERY-STRONG", "VERYSTRONG":
		return StrengthVeryStrong, nil
	default:
		return 0, fmt.Errorf("unknown strength %q", raw)
	}
}

// Direction is the market bias a signal implies.
type Direction int

const (
	Neutral Direction = iota
	Bullish
	Bearish
)

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "BULLISH"
	case Bearish:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

// Signal is a detector finding. It is built once per cycle and never mutated.
type Signal struct {
	Symbol       string
	Type         Type
	Direction    Direction
	Strength     Strength
	Confidence   float64
	TriggerValue float64
	Reference    float64
	DeviationPct float64
	Timestamp    time.Time
	Metadata     map[string]any
}

// New clamps confidence into [0,1] so the invariant holds for every producer.
func New(symbol string, typ Type, dir Direction, strength Strength, confidence float64, ts time.Time) Signal {
	return Signal{
		Symbol:     symbol,
		Type:       typ,
		Direction:  dir,
		Strength:   strength,
		Confidence: ClampConfidence(confidence),
		Timestamp:  ts,
	}
}

// Score is confidence weighted by strength ordinal.
func (s Signal) Score() float64 {
	return s.Confidence * float64(s.Strength.Ordinal())
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %s %s/%s conf=%.2f dev=%.2f%%",
		s.Symbol, s.Type, s.Direction, s.Strength, s.Confidence, s.DeviationPct)
}

func ClampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
