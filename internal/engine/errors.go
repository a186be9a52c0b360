package engine

import (
	"errors"
	"fmt"
)

var (
	ErrRiskLimitBreached = errors.New("risk limit breached")
	ErrSlotExhausted     = errors.New("no free position slot")
	ErrEntryLimit        = errors.New("entry limit for cycle reached")
	ErrPositionOpen      = errors.New("position already open")
	ErrExitedThisCycle   = errors.New("position exited this cycle")
	ErrUnbookedFill      = errors.New("fill not booked")
	ErrUnwindFailed      = errors.New("unwind of unbooked fill failed")
)

// RiskLimitError reports a portfolio drawdown beyond the configured limit.
// The engine is in ERROR once this is returned.
type RiskLimitError struct {
	Drawdown float64
	Limit    float64
	Equity   float64
}

func (e *RiskLimitError) Error() string {
	return fmt.Sprintf("drawdown %.2f%% exceeds limit %.2f%% (equity %.2f)", e.Drawdown*100, e.Limit*100, e.Equity)
}

func (e *RiskLimitError) Unwrap() error {
	return ErrRiskLimitBreached
}
