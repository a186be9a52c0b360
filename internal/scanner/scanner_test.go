package scanner

import (
	"testing"
	"time"

	"equitybot/internal/market"
	"equitybot/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func flatBars(n int, close, volume float64) market.Bars {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = close
	}
	return barsFromCloses(closes, volume)
}

func barsFromCloses(closes []float64, volume float64) market.Bars {
	out := make(market.Bars, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{
			Time:   t0.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: volume,
		}
	}
	return out
}

func newTestScanner() *Scanner {
	s := New(DefaultConfig())
	s.SetClock(func() time.Time { return t0 })
	return s
}

func ofType(signals []signal.Signal, typ signal.Type) []signal.Signal {
	var out []signal.Signal
	for _, s := range signals {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

func TestVolumeSpikeExactlyTwiceAverage(t *testing.T) {
	s := newTestScanner()
	got := s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 100, Volume: 200}},
		map[string]market.Bars{"AAA": flatBars(20, 100, 100)},
	)
	require.Len(t, got, 1)
	sig := got[0]
	assert.Equal(t, signal.TypeVolumeSpike, sig.Type)
	assert.GreaterOrEqual(t, sig.Strength.Ordinal(), signal.StrengthModerate.Ordinal())
	assert.Equal(t, 0.75, sig.Confidence)
	assert.Equal(t, 200.0, sig.TriggerValue)
	assert.Equal(t, 100.0, sig.Reference)
	assert.Equal(t, t0, sig.Timestamp)
}

func TestVolumeSpikeNeedsFullWindow(t *testing.T) {
	s := newTestScanner()
	got := s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 100, Volume: 1_000_000}},
		map[string]market.Bars{"AAA": flatBars(19, 100, 100)},
	)
	assert.Empty(t, ofType(got, signal.TypeVolumeSpike))
}

func TestVolumeSpikeBelowThreshold(t *testing.T) {
	s := newTestScanner()
	got := s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 100, Volume: 199}},
		map[string]market.Bars{"AAA": flatBars(20, 100, 100)},
	)
	assert.Empty(t, got)
}

func TestRatioBands(t *testing.T) {
	cases := []struct {
		ratio      float64
		strength   signal.Strength
		confidence float64
	}{
		{6, signal.StrengthVeryStrong, 0.95},
		{5.01, signal.StrengthVeryStrong, 0.95},
		{5, signal.StrengthStrong, 0.85},
		{3.5, signal.StrengthStrong, 0.85},
		{3, signal.StrengthModerate, 0.75},
		{2, signal.StrengthModerate, 0.75},
		{1.5, signal.StrengthWeak, 0.60},
	}
	for _, tc := range cases {
		strength, conf := ratioBand(tc.ratio)
		assert.Equal(t, tc.strength, strength, "ratio %.2f", tc.ratio)
		assert.Equal(t, tc.confidence, conf, "ratio %.2f", tc.ratio)
	}
}

func TestVolumeSpikeBandEdges(t *testing.T) {
	s := newTestScanner()
	cases := []struct {
		volume     float64
		strength   signal.Strength
		confidence float64
	}{
		{300, signal.StrengthModerate, 0.75},
		{500, signal.StrengthStrong, 0.85},
		{501, signal.StrengthVeryStrong, 0.95},
	}
	for _, tc := range cases {
		got := ofType(s.Scan(
			map[string]market.Snapshot{"AAA": {Price: 100, Volume: tc.volume}},
			map[string]market.Bars{"AAA": flatBars(20, 100, 100)},
		), signal.TypeVolumeSpike)
		require.Len(t, got, 1, "volume %.0f", tc.volume)
		assert.Equal(t, tc.strength, got[0].Strength, "volume %.0f", tc.volume)
		assert.Equal(t, tc.confidence, got[0].Confidence, "volume %.0f", tc.volume)
	}
}

func TestWeakBandReachableWithLowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VolumeSpikeThreshold = 1.5
	s := New(cfg)
	got := s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 100, Volume: 160}},
		map[string]market.Bars{"AAA": flatBars(20, 100, 100)},
	)
	require.Len(t, got, 1)
	assert.Equal(t, signal.StrengthWeak, got[0].Strength)
	assert.Equal(t, 0.60, got[0].Confidence)
}

func TestBreakoutDetection(t *testing.T) {
	hist := flatBars(20, 100, 100)
	s := newTestScanner()

	up := ofType(s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 107, Volume: 100}},
		map[string]market.Bars{"AAA": hist},
	), signal.TypePriceBreakout)
	require.Len(t, up, 1)
	assert.Equal(t, signal.Bullish, up[0].Direction)
	assert.Equal(t, signal.StrengthVeryStrong, up[0].Strength)
	assert.InDelta(t, 101.0, up[0].Reference, 1e-9)

	inside := s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 102, Volume: 100}},
		map[string]market.Bars{"AAA": hist},
	)
	assert.Empty(t, ofType(inside, signal.TypePriceBreakout))

	down := ofType(s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 97, Volume: 100}},
		map[string]market.Bars{"AAA": hist},
	), signal.TypePriceBreakdown)
	require.Len(t, down, 1)
	assert.Equal(t, signal.Bearish, down[0].Direction)
	assert.Equal(t, signal.StrengthModerate, down[0].Strength)
	assert.Less(t, down[0].DeviationPct, 0.0)
}

func TestBreakoutBands(t *testing.T) {
	strength, conf := breakoutBand(0.5)
	assert.Equal(t, signal.StrengthWeak, strength)
	assert.Equal(t, 0.60, conf)
	strength, _ = breakoutBand(1.5)
	assert.Equal(t, signal.StrengthModerate, strength)
	strength, _ = breakoutBand(4)
	assert.Equal(t, signal.StrengthStrong, strength)
	strength, _ = breakoutBand(5.5)
	assert.Equal(t, signal.StrengthVeryStrong, strength)
}

func TestUnusualVolatility(t *testing.T) {
	s := newTestScanner()
	got := ofType(s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 100, Volume: 100, High: 108, Low: 100}},
		map[string]market.Bars{"AAA": flatBars(20, 100, 100)},
	), signal.TypeUnusualVolatility)
	require.Len(t, got, 1)
	assert.Equal(t, signal.StrengthStrong, got[0].Strength)
	assert.Equal(t, 0.85, got[0].Confidence)

	calm := s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 100, Volume: 100, High: 101, Low: 99}},
		map[string]market.Bars{"AAA": flatBars(20, 100, 100)},
	)
	assert.Empty(t, ofType(calm, signal.TypeUnusualVolatility))
}

func TestMomentumShift(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 90, 90, 90}
	s := newTestScanner()

	up := s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 92, Volume: 100}},
		map[string]market.Bars{"AAA": barsFromCloses(closes, 100)},
	)
	require.Len(t, up, 1)
	assert.Equal(t, signal.TypeMomentumShift, up[0].Type)
	assert.Equal(t, signal.Bullish, up[0].Direction)
	assert.Equal(t, signal.StrengthModerate, up[0].Strength)

	strong := s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 94.6, Volume: 100}},
		map[string]market.Bars{"AAA": barsFromCloses(closes, 100)},
	)
	require.Len(t, strong, 1)
	assert.Equal(t, signal.StrengthStrong, strong[0].Strength)

	rising := []float64{100, 100, 100, 100, 100, 100, 100, 110, 110, 110}
	down := s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 107, Volume: 100}},
		map[string]market.Bars{"AAA": barsFromCloses(rising, 100)},
	)
	require.Len(t, down, 1)
	assert.Equal(t, signal.Bearish, down[0].Direction)

	short := s.Scan(
		map[string]market.Snapshot{"AAA": {Price: 92, Volume: 100}},
		map[string]market.Bars{"AAA": barsFromCloses(closes[1:], 100)},
	)
	assert.Empty(t, ofType(short, signal.TypeMomentumShift))
}

func TestPatternDetection(t *testing.T) {
	mk := func(lows, highs []float64) market.Bars {
		out := make(market.Bars, len(lows))
		for i := range lows {
			out[i] = market.Bar{Time: t0.AddDate(0, 0, i), Open: lows[i], High: highs[i], Low: lows[i], Close: lows[i], Volume: 1}
		}
		return out
	}
	s := newTestScanner()

	rising := mk([]float64{10, 11, 12, 13, 14}, []float64{20, 21, 22, 23, 24})
	got := s.Scan(map[string]market.Snapshot{"AAA": {Price: 14}}, map[string]market.Bars{"AAA": rising})
	require.Len(t, got, 1)
	assert.Equal(t, signal.TypeHigherLows, got[0].Type)
	assert.Equal(t, signal.StrengthModerate, got[0].Strength)
	assert.Equal(t, 0.65, got[0].Confidence)

	wedge := mk([]float64{10, 11, 12, 13, 14}, []float64{24, 23, 22, 21, 20})
	got = s.Scan(map[string]market.Snapshot{"AAA": {Price: 14}}, map[string]market.Bars{"AAA": wedge})
	require.Len(t, got, 2)
	assert.Equal(t, signal.TypeHigherLows, got[0].Type)
	assert.Equal(t, signal.TypeLowerHighs, got[1].Type)

	flatLow := mk([]float64{10, 11, 11, 13, 14}, []float64{20, 21, 22, 23, 24})
	got = s.Scan(map[string]market.Snapshot{"AAA": {Price: 14}}, map[string]market.Bars{"AAA": flatLow})
	assert.Empty(t, got, "equal lows are not higher lows")

	flatHigh := mk([]float64{14, 13, 12, 11, 10}, []float64{24, 23, 23, 21, 20})
	got = s.Scan(map[string]market.Snapshot{"AAA": {Price: 10}}, map[string]market.Bars{"AAA": flatHigh})
	assert.Empty(t, got, "equal highs are not lower highs")

	four := mk([]float64{11, 12, 13, 14}, []float64{20, 21, 22, 23})
	got = s.Scan(map[string]market.Snapshot{"AAA": {Price: 14}}, map[string]market.Bars{"AAA": four})
	assert.Empty(t, got)
}

func TestScanIsolatesMalformedInstrument(t *testing.T) {
	s := newTestScanner()
	got := s.Scan(
		map[string]market.Snapshot{
			"BAD": {Price: -1, Volume: 500},
			"CCC": {Price: 100, Volume: 300},
			"AAA": {Price: 100, Volume: 200},
		},
		map[string]market.Bars{
			"BAD": flatBars(20, 100, 100),
			"CCC": flatBars(20, 100, 100),
			"AAA": flatBars(20, 100, 100),
		},
	)
	require.Len(t, got, 2)
	assert.Equal(t, "AAA", got[0].Symbol)
	assert.Equal(t, "CCC", got[1].Symbol)
	assert.Equal(t, signal.StrengthStrong, got[1].Strength)
}

func TestStatsAndBoundedBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 2
	s := New(cfg)
	snaps := map[string]market.Snapshot{
		"AAA": {Price: 100, Volume: 200},
		"BBB": {Price: 100, Volume: 600},
		"CCC": {Price: 100, Volume: 300},
	}
	hist := map[string]market.Bars{
		"AAA": flatBars(20, 100, 100),
		"BBB": flatBars(20, 100, 100),
		"CCC": flatBars(20, 100, 100),
	}
	s.Scan(snaps, hist)
	s.Scan(snaps, hist)

	st := s.Stats()
	assert.Equal(t, 2, st.Scans)
	assert.Equal(t, 6, st.Total)
	assert.Equal(t, 2, st.Buffered)
	assert.Equal(t, 6, st.ByType["VOLUME_SPIKE"])
	assert.Equal(t, 2, st.ByStrength["MODERATE"])
	assert.Equal(t, 2, st.ByStrength["VERY_STRONG"])
	assert.Equal(t, 2, st.ByStrength["STRONG"])

	recent := s.Recent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "BBB", recent[0].Symbol)
	assert.Equal(t, "CCC", recent[1].Symbol)
}

func TestTopOpportunities(t *testing.T) {
	mk := func(sym string, strength signal.Strength, conf float64) signal.Signal {
		return signal.New(sym, signal.TypeVolumeSpike, signal.Bullish, strength, conf, t0)
	}
	in := []signal.Signal{
		mk("A", signal.StrengthModerate, 0.60),   // 1.2
		mk("B", signal.StrengthModerate, 0.60),   // 1.2
		mk("C", signal.StrengthVeryStrong, 0.90), // 3.6
		mk("D", signal.StrengthWeak, 0.95),       // 0.95
		mk("E", signal.StrengthModerate, 0.30),   // filtered by confidence
	}

	got := TopOpportunities(in, 0.35, signal.StrengthModerate, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "C", got[0].Symbol)
	assert.Equal(t, "A", got[1].Symbol, "ties keep detection order")
	assert.Equal(t, "B", got[2].Symbol)

	got = TopOpportunities(in, 0, 0, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].Symbol)
	assert.Equal(t, "A", got[1].Symbol)

	assert.Empty(t, TopOpportunities(nil, 0, 0, 5))
}
