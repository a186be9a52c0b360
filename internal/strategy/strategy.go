package strategy

import (
	"fmt"

	"equitybot/internal/market"
	"equitybot/internal/signal"
)

// Action is the direction a strategy recommends.
type Action int

const (
	ActionHold Action = iota
	ActionBuy
	ActionSell
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Input is what a strategy sees for one instrument in one cycle.
type Input struct {
	Symbol  string
	Tick    market.Snapshot
	History market.Bars
	// Holding is true when the ledger already has a position in Symbol.
	Holding bool
}

// Signal is a strategy recommendation for one instrument.
type Signal struct {
	Strategy   string  `json:"strategy"`
	Symbol     string  `json:"symbol"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Price      float64 `json:"price"`
	Reason     string  `json:"reason"`
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %s %s conf=%.2f (%s)", s.Strategy, s.Action, s.Symbol, s.Confidence, s.Reason)
}

// Strategy maps a tick plus history to zero or more signals. Implementations
// hold only their parameters, so one instance can serve every instrument.
type Strategy interface {
	Name() string
	GenerateSignals(in Input) []Signal
}

func newSignal(name string, in Input, action Action, confidence float64, reason string) Signal {
	return Signal{
		Strategy:   name,
		Symbol:     in.Symbol,
		Action:     action,
		Confidence: signal.ClampConfidence(confidence),
		Price:      in.Tick.Price,
		Reason:     reason,
	}
}
