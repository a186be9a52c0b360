package strategy

import (
	"fmt"
	"math"
)

const NameMomentum = "momentum"

// Momentum follows the return over a fixed lookback.
type Momentum struct {
	Lookback  int
	Threshold float64
}

func NewMomentum(lookback int, threshold float64) *Momentum {
	if lookback <= 0 {
		lookback = 20
	}
	if threshold <= 0 {
		threshold = 0.05
	}
	return &Momentum{Lookback: lookback, Threshold: threshold}
}

func (m *Momentum) Name() string { return NameMomentum }

func (m *Momentum) GenerateSignals(in Input) []Signal {
	n := len(in.History)
	if n < m.Lookback || in.Tick.Price <= 0 {
		return nil
	}
	ref := in.History[n-m.Lookback].Close
	if ref <= 0 {
		return nil
	}
	ret := in.Tick.Price/ref - 1
	if math.Abs(ret) <= m.Threshold {
		return nil
	}
	confidence := math.Min(0.9, 0.5+math.Abs(ret))
	action := ActionBuy
	if ret < 0 {
		action = ActionSell
	}
	reason := fmt.Sprintf("%d-bar return %+.2f%%", m.Lookback, ret*100)
	return []Signal{newSignal(m.Name(), in, action, confidence, reason)}
}
