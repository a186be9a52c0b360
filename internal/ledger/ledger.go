package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"equitybot/internal/logger"
	"equitybot/internal/pkg/ring"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPositionExists    = errors.New("position already open")
	ErrNoPosition        = errors.New("no open position")
	ErrInvalidOrder      = errors.New("invalid order")
)

// TradeExporter persists trades pulled from the bounded in-memory history.
type TradeExporter interface {
	ExportTrades(ctx context.Context, trades []Trade) error
}

// OpenRequest describes a confirmed buy fill.
type OpenRequest struct {
	Symbol     string
	Quantity   int64
	Price      float64
	Time       time.Time
	StopLoss   float64
	TakeProfit float64
	Strategy   string
	Reason     string
}

// Ledger owns cash, open positions and the trade history. Cash is kept in
// decimal so a round trip at an unchanged price restores it exactly.
type Ledger struct {
	mu        sync.RWMutex
	initial   decimal.Decimal
	cash      decimal.Decimal
	positions map[string]*Position
	trades    *ring.Buffer[Trade]
	flushed   uint64
	stats     TradeStats
	realized  decimal.Decimal
}

func New(initialCapital float64, tradeBuffer int) *Ledger {
	initial := decFromFloat(initialCapital)
	return &Ledger{
		initial:   initial,
		cash:      initial,
		positions: make(map[string]*Position),
		trades:    ring.New[Trade](tradeBuffer),
	}
}

// Open debits cash and records a BUY trade.
func (l *Ledger) Open(req OpenRequest) (Trade, error) {
	if req.Symbol == "" || req.Quantity <= 0 || req.Price <= 0 {
		return Trade{}, fmt.Errorf("%w: %s qty=%d price=%.4f", ErrInvalidOrder, req.Symbol, req.Quantity, req.Price)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.positions[req.Symbol]; ok {
		return Trade{}, fmt.Errorf("%w: %s", ErrPositionExists, req.Symbol)
	}
	cost := decFromFloat(req.Price).Mul(qty(req.Quantity))
	if cost.GreaterThan(l.cash) {
		return Trade{}, fmt.Errorf("%w: %s cost %s > cash %s", ErrInsufficientFunds, req.Symbol, cost.StringFixed(2), l.cash.StringFixed(2))
	}
	l.cash = l.cash.Sub(cost)
	l.positions[req.Symbol] = &Position{
		Symbol:       req.Symbol,
		Quantity:     req.Quantity,
		EntryPrice:   req.Price,
		CurrentPrice: req.Price,
		EntryTime:    req.Time,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		Strategy:     req.Strategy,
	}
	trade := Trade{
		ID:        uuid.NewString(),
		Side:      SideBuy,
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
		Price:     req.Price,
		Cost:      decToFloat(cost),
		Timestamp: req.Time,
		Strategy:  req.Strategy,
		Reason:    req.Reason,
	}
	l.trades.Push(trade)
	l.stats.Buys++
	return trade, nil
}

// Close sells the whole position at price, credits cash and records a SELL
// trade carrying the realized pnl.
func (l *Ledger) Close(symbol string, price float64, at time.Time, reason string) (Trade, error) {
	if price <= 0 {
		return Trade{}, fmt.Errorf("%w: %s exit price %.4f", ErrInvalidOrder, symbol, price)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return Trade{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	exit := decFromFloat(price)
	proceeds := exit.Mul(qty(pos.Quantity))
	pnl := exit.Sub(decFromFloat(pos.EntryPrice)).Mul(qty(pos.Quantity))
	l.cash = l.cash.Add(proceeds)
	l.realized = l.realized.Add(pnl)
	delete(l.positions, symbol)

	trade := Trade{
		ID:        uuid.NewString(),
		Side:      SideSell,
		Symbol:    symbol,
		Quantity:  pos.Quantity,
		Price:     price,
		Cost:      decToFloat(proceeds),
		Timestamp: at,
		Strategy:  pos.Strategy,
		Reason:    reason,
		PnL:       decToFloat(pnl),
		PnLPct:    (price/pos.EntryPrice - 1) * 100,
	}
	l.trades.Push(trade)
	l.recordClose(trade)
	return trade, nil
}

func (l *Ledger) recordClose(t Trade) {
	l.stats.Sells++
	if t.PnL > 0 {
		l.stats.Wins++
	} else if t.PnL < 0 {
		l.stats.Losses++
	}
	l.stats.RealizedPnL = decToFloat(l.realized)
	if l.stats.Best == nil || t.PnL > l.stats.Best.PnL {
		best := t
		l.stats.Best = &best
	}
	if l.stats.Worst == nil || t.PnL < l.stats.Worst.PnL {
		worst := t
		l.stats.Worst = &worst
	}
}

// MarkToMarket updates the current price of an open position.
func (l *Ledger) MarkToMarket(symbol string, price float64) bool {
	if price <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return false
	}
	pos.CurrentPrice = price
	return true
}

func (l *Ledger) InitialCapital() float64 { return decToFloat(l.initial) }

func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return decToFloat(l.cash)
}

func (l *Ledger) CashDecimal() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// PositionsValue is the marked value of all open positions.
func (l *Ledger) PositionsValue() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return decToFloat(l.positionsValueLocked())
}

// Equity is cash plus marked position value.
func (l *Ledger) Equity() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return decToFloat(l.cash.Add(l.positionsValueLocked()))
}

func (l *Ledger) UnrealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, p := range l.positions {
		total = total.Add(decFromFloat(p.CurrentPrice).Sub(decFromFloat(p.EntryPrice)).Mul(qty(p.Quantity)))
	}
	return decToFloat(total)
}

func (l *Ledger) positionsValueLocked() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.positions {
		total = total.Add(p.marketValue())
	}
	return total
}

func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

func (l *Ledger) Holding(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[symbol]
	return ok
}

func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns a copy of the open positions sorted by symbol.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades returns the retained trade history, oldest first.
func (l *Ledger) Trades() []Trade {
	return l.trades.Items()
}

// TradeCount is the number of trades ever recorded.
func (l *Ledger) TradeCount() int {
	return int(l.trades.Seq())
}

func (l *Ledger) Stats() TradeStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := l.stats
	if st.Best != nil {
		best := *st.Best
		st.Best = &best
	}
	if st.Worst != nil {
		worst := *st.Worst
		st.Worst = &worst
	}
	return st
}

// Flush hands every trade recorded since the previous successful flush to exp.
// Trades evicted before they could be flushed are reported and skipped.
func (l *Ledger) Flush(ctx context.Context, exp TradeExporter) (int, error) {
	if exp == nil {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := l.trades.Seq()
	pending, dropped := l.trades.Since(l.flushed)
	if dropped > 0 {
		logger.Warnf("[ledger] %d trades evicted before flush", dropped)
	}
	if len(pending) == 0 {
		l.flushed = seq
		return 0, nil
	}
	if err := exp.ExportTrades(ctx, pending); err != nil {
		return 0, fmt.Errorf("export trades: %w", err)
	}
	l.flushed = seq
	return len(pending), nil
}

func (p Position) marketValue() decimal.Decimal {
	return decFromFloat(p.CurrentPrice).Mul(qty(p.Quantity))
}

func qty(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}
