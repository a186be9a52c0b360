package ledger

import (
	"fmt"
	"time"
)

// Side is the direction of a trade. Positions are long only.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Position is one open long holding. There is at most one per symbol.
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     int64     `json:"quantity"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	EntryTime    time.Time `json:"entry_time"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	Strategy     string    `json:"strategy"`
}

func (p Position) CostBasis() float64 {
	return decToFloat(decFromFloat(p.EntryPrice).Mul(qty(p.Quantity)))
}

func (p Position) MarketValue() float64 {
	return decToFloat(p.marketValue())
}

func (p Position) UnrealizedPnL() float64 {
	return decToFloat(decFromFloat(p.CurrentPrice).Sub(decFromFloat(p.EntryPrice)).Mul(qty(p.Quantity)))
}

func (p Position) UnrealizedPct() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice/p.EntryPrice - 1) * 100
}

func (p Position) String() string {
	return fmt.Sprintf("%s x%d @%.4f now %.4f sl=%.4f tp=%.4f", p.Symbol, p.Quantity, p.EntryPrice, p.CurrentPrice, p.StopLoss, p.TakeProfit)
}

// Trade is one fill recorded in the ledger. PnL fields are set on SELL only.
type Trade struct {
	ID        string    `json:"id"`
	Side      Side      `json:"side"`
	Symbol    string    `json:"symbol"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	Cost      float64   `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
	Strategy  string    `json:"strategy"`
	Reason    string    `json:"reason"`
	PnL       float64   `json:"pnl"`
	PnLPct    float64   `json:"pnl_pct"`
}

func (t Trade) String() string {
	if t.Side == SideSell {
		return fmt.Sprintf("%s %s x%d @%.4f pnl=%.2f (%.2f%%) %s", t.Side, t.Symbol, t.Quantity, t.Price, t.PnL, t.PnLPct, t.Reason)
	}
	return fmt.Sprintf("%s %s x%d @%.4f cost=%.2f %s", t.Side, t.Symbol, t.Quantity, t.Price, t.Cost, t.Reason)
}

// TradeStats are running totals over every closed trade, including ones
// already evicted from the in-memory history.
type TradeStats struct {
	Buys        int     `json:"buys"`
	Sells       int     `json:"sells"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	RealizedPnL float64 `json:"realized_pnl"`
	Best        *Trade  `json:"best,omitempty"`
	Worst       *Trade  `json:"worst,omitempty"`
}

// WinRate is wins over closed trades, 0 when nothing has closed.
func (s TradeStats) WinRate() float64 {
	if s.Sells == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Sells)
}
