package scanner

import (
	"fmt"
	"math"
	"time"

	"equitybot/internal/analysis/indicator"
	"equitybot/internal/market"
	"equitybot/internal/signal"
)

const (
	breakoutBuffer     = 0.01
	momentumShortBars  = 3
	momentumLongBars   = 10
	momentumShortEdge  = 0.02
	momentumLongEdge   = 0.05
	momentumStrongEdge = 0.05
	patternBars        = 5
	patternConfidence  = 0.65
)

// detector turns one instrument's quote and history into zero or more signals.
// A detector with too little history returns nil.
type detector func(symbol string, snap market.Snapshot, hist market.Bars, now time.Time) []signal.Signal

func (s *Scanner) detectors() []detector {
	return []detector{
		s.detectVolumeSpike,
		s.detectBreakout,
		s.detectVolatility,
		detectMomentumShift,
		detectPattern,
	}
}

// ratioBand grades volume and volatility ratios. Only the 2x bound is
// inclusive, so a ratio of exactly 2x lands in MODERATE.
func ratioBand(ratio float64) (signal.Strength, float64) {
	switch {
	case ratio > 5:
		return signal.StrengthVeryStrong, 0.95
	case ratio > 3:
		return signal.StrengthStrong, 0.85
	case ratio >= 2:
		return signal.StrengthModerate, 0.75
	default:
		return signal.StrengthWeak, 0.60
	}
}

func breakoutBand(pctBeyond float64) (signal.Strength, float64) {
	switch {
	case pctBeyond > 5:
		return signal.StrengthVeryStrong, 0.90
	case pctBeyond > 3:
		return signal.StrengthStrong, 0.80
	case pctBeyond > 1:
		return signal.StrengthModerate, 0.70
	default:
		return signal.StrengthWeak, 0.60
	}
}

func (s *Scanner) detectVolumeSpike(symbol string, snap market.Snapshot, hist market.Bars, now time.Time) []signal.Signal {
	lookback := s.cfg.VolumeLookback
	avg, ok := indicator.Mean(hist.Volumes(), lookback)
	if !ok || avg <= 0 || snap.Volume <= 0 {
		return nil
	}
	ratio := snap.Volume / avg
	if ratio < s.cfg.VolumeSpikeThreshold {
		return nil
	}
	strength, confidence := ratioBand(ratio)
	sig := signal.New(symbol, signal.TypeVolumeSpike, priceBias(snap, hist), strength, confidence, now)
	sig.TriggerValue = snap.Volume
	sig.Reference = avg
	sig.DeviationPct = (ratio - 1) * 100
	sig.Metadata = map[string]any{
		"volume_ratio": ratio,
		"lookback":     lookback,
	}
	return []signal.Signal{sig}
}

func (s *Scanner) detectBreakout(symbol string, snap market.Snapshot, hist market.Bars, now time.Time) []signal.Signal {
	lookback := s.cfg.BreakoutLookback
	resistance, okHigh := indicator.Highest(hist.Highs(), lookback)
	support, okLow := indicator.Lowest(hist.Lows(), lookback)
	if !okHigh || !okLow || resistance <= 0 || support <= 0 {
		return nil
	}
	price := snap.Price
	switch {
	case price > resistance*(1+breakoutBuffer):
		pct := (price - resistance) / resistance * 100
		strength, confidence := breakoutBand(pct)
		sig := signal.New(symbol, signal.TypePriceBreakout, signal.Bullish, strength, confidence, now)
		sig.TriggerValue = price
		sig.Reference = resistance
		sig.DeviationPct = pct
		sig.Metadata = map[string]any{"level": "resistance", "lookback": lookback}
		return []signal.Signal{sig}
	case price < support*(1-breakoutBuffer):
		pct := (support - price) / support * 100
		strength, confidence := breakoutBand(pct)
		sig := signal.New(symbol, signal.TypePriceBreakdown, signal.Bearish, strength, confidence, now)
		sig.TriggerValue = price
		sig.Reference = support
		sig.DeviationPct = -pct
		sig.Metadata = map[string]any{"level": "support", "lookback": lookback}
		return []signal.Signal{sig}
	}
	return nil
}

func (s *Scanner) detectVolatility(symbol string, snap market.Snapshot, hist market.Bars, now time.Time) []signal.Signal {
	if !snap.HasRange() {
		return nil
	}
	lookback := s.cfg.VolatilityLookback
	window := hist.Tail(lookback)
	if len(window) < lookback {
		return nil
	}
	ranges := make([]float64, len(window))
	for i, b := range window {
		ranges[i] = (b.High - b.Low) / b.Close
	}
	avg, ok := indicator.Mean(ranges, lookback)
	if !ok || avg <= 0 {
		return nil
	}
	today := (snap.High - snap.Low) / snap.Price
	ratio := today / avg
	if ratio < s.cfg.VolatilityThreshold {
		return nil
	}
	strength, confidence := ratioBand(ratio)
	sig := signal.New(symbol, signal.TypeUnusualVolatility, signal.Neutral, strength, confidence, now)
	sig.TriggerValue = today
	sig.Reference = avg
	sig.DeviationPct = (ratio - 1) * 100
	sig.Metadata = map[string]any{
		"volatility_ratio": ratio,
		"lookback":         lookback,
	}
	return []signal.Signal{sig}
}

func detectMomentumShift(symbol string, snap market.Snapshot, hist market.Bars, now time.Time) []signal.Signal {
	n := len(hist)
	if n < momentumLongBars {
		return nil
	}
	shortRef := hist[n-momentumShortBars].Close
	longRef := hist[n-momentumLongBars].Close
	if shortRef <= 0 || longRef <= 0 {
		return nil
	}
	shortRet := snap.Price/shortRef - 1
	longRet := snap.Price/longRef - 1

	var dir signal.Direction
	switch {
	case shortRet > momentumShortEdge && longRet < -momentumLongEdge:
		dir = signal.Bullish
	case shortRet < -momentumShortEdge && longRet > momentumLongEdge:
		dir = signal.Bearish
	default:
		return nil
	}
	strength, confidence := signal.StrengthModerate, 0.70
	if math.Abs(shortRet) > momentumStrongEdge {
		strength, confidence = signal.StrengthStrong, 0.80
	}
	sig := signal.New(symbol, signal.TypeMomentumShift, dir, strength, confidence, now)
	sig.TriggerValue = shortRet * 100
	sig.Reference = longRet * 100
	sig.DeviationPct = (shortRet - longRet) * 100
	sig.Metadata = map[string]any{
		"return_3":  shortRet,
		"return_10": longRet,
	}
	return []signal.Signal{sig}
}

func detectPattern(symbol string, _ market.Snapshot, hist market.Bars, now time.Time) []signal.Signal {
	window := hist.Tail(patternBars)
	if len(window) < patternBars {
		return nil
	}
	higherLows, lowerHighs := true, true
	for i := 1; i < len(window); i++ {
		if window[i].Low <= window[i-1].Low {
			higherLows = false
		}
		if window[i].High >= window[i-1].High {
			lowerHighs = false
		}
	}
	first, last := window[0], window[len(window)-1]
	var out []signal.Signal
	if higherLows {
		sig := signal.New(symbol, signal.TypeHigherLows, signal.Bullish, signal.StrengthModerate, patternConfidence, now)
		sig.TriggerValue = last.Low
		sig.Reference = first.Low
		sig.DeviationPct = pctChange(first.Low, last.Low)
		sig.Metadata = map[string]any{"pattern": "higher_lows", "bars": patternBars}
		out = append(out, sig)
	}
	if lowerHighs {
		sig := signal.New(symbol, signal.TypeLowerHighs, signal.Bearish, signal.StrengthModerate, patternConfidence, now)
		sig.TriggerValue = last.High
		sig.Reference = first.High
		sig.DeviationPct = pctChange(first.High, last.High)
		sig.Metadata = map[string]any{"pattern": "lower_highs", "bars": patternBars}
		out = append(out, sig)
	}
	return out
}

// priceBias reads direction from the quote against the last close.
func priceBias(snap market.Snapshot, hist market.Bars) signal.Direction {
	if len(hist) == 0 {
		return signal.Neutral
	}
	prev := hist[len(hist)-1].Close
	switch {
	case snap.Price > prev:
		return signal.Bullish
	case snap.Price < prev:
		return signal.Bearish
	default:
		return signal.Neutral
	}
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func describe(sig signal.Signal) string {
	return fmt.Sprintf("[scanner] %s", sig)
}
