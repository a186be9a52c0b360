package strategy

import (
	"fmt"
	"math"

	"equitybot/internal/analysis/indicator"
)

const NameBreakout = "breakout"

// Breakout buys a close above the lookback range and, for held positions only,
// sells a close below it.
type Breakout struct {
	Lookback int
}

func NewBreakout(lookback int) *Breakout {
	if lookback <= 0 {
		lookback = 20
	}
	return &Breakout{Lookback: lookback}
}

func (b *Breakout) Name() string { return NameBreakout }

func (b *Breakout) GenerateSignals(in Input) []Signal {
	if len(in.History) < b.Lookback || in.Tick.Price <= 0 {
		return nil
	}
	resistance, okHigh := indicator.Highest(in.History.Highs(), b.Lookback)
	support, okLow := indicator.Lowest(in.History.Lows(), b.Lookback)
	if !okHigh || !okLow || resistance <= 0 || support <= 0 {
		return nil
	}
	price := in.Tick.Price
	switch {
	case price > resistance:
		beyond := (price - resistance) / resistance
		reason := fmt.Sprintf("break above %d-bar resistance %.4f", b.Lookback, resistance)
		return []Signal{newSignal(b.Name(), in, ActionBuy, math.Min(0.9, 0.6+10*beyond), reason)}
	case price < support && in.Holding:
		beyond := (support - price) / support
		reason := fmt.Sprintf("break below %d-bar support %.4f", b.Lookback, support)
		return []Signal{newSignal(b.Name(), in, ActionSell, math.Min(0.9, 0.6+10*beyond), reason)}
	}
	return nil
}
