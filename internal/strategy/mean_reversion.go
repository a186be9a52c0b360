package strategy

import (
	"fmt"
	"math"

	"equitybot/internal/analysis/indicator"
)

const NameMeanReversion = "mean_reversion"

// MeanReversion fades prices that stretch beyond EntryZ standard deviations
// from their rolling mean.
type MeanReversion struct {
	Lookback int
	EntryZ   float64
}

func NewMeanReversion(lookback int, entryZ float64) *MeanReversion {
	if lookback < 2 {
		lookback = 20
	}
	if entryZ <= 0 {
		entryZ = 2.0
	}
	return &MeanReversion{Lookback: lookback, EntryZ: entryZ}
}

func (m *MeanReversion) Name() string { return NameMeanReversion }

func (m *MeanReversion) GenerateSignals(in Input) []Signal {
	if len(in.History) < m.Lookback || in.Tick.Price <= 0 {
		return nil
	}
	mean, std, ok := indicator.MeanStd(in.History.Tail(m.Lookback).Closes())
	if !ok || std <= 0 {
		return nil
	}
	z := (in.Tick.Price - mean) / std
	var action Action
	switch {
	case z < -m.EntryZ:
		action = ActionBuy
	case z > m.EntryZ:
		action = ActionSell
	default:
		return nil
	}
	confidence := math.Min(0.9, 0.5+0.1*math.Abs(z))
	reason := fmt.Sprintf("z-score %.2f vs %d-bar mean %.4f", z, m.Lookback, mean)
	return []Signal{newSignal(m.Name(), in, action, confidence, reason)}
}
