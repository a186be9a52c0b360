package strategy

import (
	"testing"
	"time"

	"equitybot/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func barsFromCloses(closes ...float64) market.Bars {
	out := make(market.Bars, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{Time: t0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return out
}

func flat(n int, close float64) market.Bars {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = close
	}
	return barsFromCloses(closes...)
}

func input(price float64, hist market.Bars) Input {
	return Input{Symbol: "AAA", Tick: market.Snapshot{Price: price, Volume: 1000}, History: hist}
}

func TestMomentum(t *testing.T) {
	m := NewMomentum(20, 0.05)

	tests := []struct {
		name       string
		price      float64
		bars       int
		wantAction Action
		wantConf   float64
	}{
		{name: "up move buys", price: 106, bars: 20, wantAction: ActionBuy, wantConf: 0.56},
		{name: "down move sells", price: 90, bars: 20, wantAction: ActionSell, wantConf: 0.60},
		{name: "large move caps confidence", price: 150, bars: 25, wantAction: ActionBuy, wantConf: 0.90},
		{name: "inside threshold", price: 104, bars: 20},
		{name: "short history", price: 120, bars: 19},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := m.GenerateSignals(input(tc.price, flat(tc.bars, 100)))
			if tc.wantAction == ActionHold {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tc.wantAction, got[0].Action)
			assert.InDelta(t, tc.wantConf, got[0].Confidence, 1e-9)
			assert.Equal(t, NameMomentum, got[0].Strategy)
			assert.Equal(t, "AAA", got[0].Symbol)
			assert.Equal(t, tc.price, got[0].Price)
		})
	}
}

func alternating(n int) market.Bars {
	closes := make([]float64, n)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 99
		} else {
			closes[i] = 101
		}
	}
	return barsFromCloses(closes...)
}

func TestMeanReversion(t *testing.T) {
	m := NewMeanReversion(20, 2.0)

	got := m.GenerateSignals(input(97, alternating(20)))
	require.Len(t, got, 1)
	assert.Equal(t, ActionBuy, got[0].Action)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-9)

	got = m.GenerateSignals(input(103, alternating(30)))
	require.Len(t, got, 1)
	assert.Equal(t, ActionSell, got[0].Action)

	got = m.GenerateSignals(input(110, alternating(20)))
	require.Len(t, got, 1)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)

	assert.Empty(t, m.GenerateSignals(input(101.5, alternating(20))))
	assert.Empty(t, m.GenerateSignals(input(90, alternating(19))))
}

func TestMeanReversionFlatHistoryHasNoSignal(t *testing.T) {
	m := NewMeanReversion(20, 2.0)
	assert.Empty(t, m.GenerateSignals(input(150, flat(20, 100))))
}

func rangeBars(n int, high, low float64) market.Bars {
	out := make(market.Bars, n)
	for i := range out {
		out[i] = market.Bar{Time: t0.AddDate(0, 0, i), Open: 100, High: high, Low: low, Close: 100, Volume: 1000}
	}
	return out
}

func TestBreakout(t *testing.T) {
	b := NewBreakout(20)
	hist := rangeBars(20, 105, 95)

	got := b.GenerateSignals(input(107, hist))
	require.Len(t, got, 1)
	assert.Equal(t, ActionBuy, got[0].Action)
	assert.InDelta(t, 0.6+10*(2.0/105), got[0].Confidence, 1e-9)

	assert.Empty(t, b.GenerateSignals(input(100, hist)))
	assert.Empty(t, b.GenerateSignals(input(90, hist)), "breakdown without a position is ignored")

	in := input(90, hist)
	in.Holding = true
	got = b.GenerateSignals(in)
	require.Len(t, got, 1)
	assert.Equal(t, ActionSell, got[0].Action)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)

	assert.Empty(t, b.GenerateSignals(input(120, rangeBars(19, 105, 95))))
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "BUY", ActionBuy.String())
	assert.Equal(t, "SELL", ActionSell.String())
	assert.Equal(t, "HOLD", ActionHold.String())
}
