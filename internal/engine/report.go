package engine

import (
	"time"

	"equitybot/internal/ledger"
)

// SymbolIssue names an instrument the cycle could not process and why.
type SymbolIssue struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func issue(symbol string, err error) SymbolIssue {
	return SymbolIssue{Symbol: symbol, Reason: err.Error(), Err: err}
}

// Rejection is an entry candidate the risk checks turned down.
type Rejection struct {
	Symbol     string  `json:"symbol"`
	Strategy   string  `json:"strategy"`
	Confidence float64 `json:"confidence"`
	Kind       string  `json:"kind"`
	Reason     string  `json:"reason"`
	Err        error   `json:"-"`
}

// CycleReport describes what one ExecuteCycle call did.
type CycleReport struct {
	Time           time.Time      `json:"time"`
	State          BotState       `json:"state"`
	Skipped        bool           `json:"skipped"`
	SkippedSymbols []SymbolIssue  `json:"skipped_symbols,omitempty"`
	Detected       int            `json:"detected"`
	Candidates     int            `json:"candidates"`
	Entries        []ledger.Trade `json:"entries,omitempty"`
	Exits          []ledger.Trade `json:"exits,omitempty"`
	Rejected       []Rejection    `json:"rejected,omitempty"`
	Failures       []SymbolIssue  `json:"failures,omitempty"`
	Equity         float64        `json:"equity"`
	Cash           float64        `json:"cash"`
	Drawdown       float64        `json:"drawdown"`
}

func (r CycleReport) Traded() bool {
	return len(r.Entries) > 0 || len(r.Exits) > 0
}
