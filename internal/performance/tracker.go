package performance

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"equitybot/internal/ledger"
	"equitybot/internal/logger"
	"equitybot/internal/pkg/ring"
)

const tradingDaysPerYear = 252

// EquityPoint is the portfolio valuation at the end of one cycle.
type EquityPoint struct {
	Time           time.Time `json:"time"`
	Equity         float64   `json:"equity"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	Positions      int       `json:"positions"`
}

// EquityExporter persists equity points pulled from the bounded curve.
type EquityExporter interface {
	ExportEquity(ctx context.Context, points []EquityPoint) error
}

// Tracker keeps the equity curve and the running return statistics. Sharpe
// and drawdown are updated on every Record so they survive curve eviction.
type Tracker struct {
	mu      sync.Mutex
	initial float64
	curve   *ring.Buffer[EquityPoint]
	flushed uint64

	lastEquity  float64
	returns     int
	meanReturn  float64
	m2          float64
	peak        float64
	maxDrawdown float64
}

func NewTracker(initialCapital float64, bufferSize int) *Tracker {
	return &Tracker{
		initial:    initialCapital,
		curve:      ring.New[EquityPoint](bufferSize),
		lastEquity: initialCapital,
		peak:       initialCapital,
	}
}

// Record appends p and folds its return against the previous point (or the
// initial capital for the first point) into the statistics.
func (t *Tracker) Record(p EquityPoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.curve.Push(p)
	if t.lastEquity > 0 {
		r := p.Equity/t.lastEquity - 1
		t.returns++
		delta := r - t.meanReturn
		t.meanReturn += delta / float64(t.returns)
		t.m2 += delta * (r - t.meanReturn)
	}
	t.lastEquity = p.Equity
	if p.Equity > t.peak {
		t.peak = p.Equity
	}
	if t.peak > 0 {
		if dd := (t.peak - p.Equity) / t.peak; dd > t.maxDrawdown {
			t.maxDrawdown = dd
		}
	}
}

// Sharpe is the annualized mean over population stdev of per-cycle returns.
// It is 0 until two returns exist or when returns do not vary.
func (t *Tracker) Sharpe() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sharpeLocked()
}

func (t *Tracker) sharpeLocked() float64 {
	if t.returns < 2 {
		return 0
	}
	std := math.Sqrt(t.m2 / float64(t.returns))
	if std < 1e-12 {
		return 0
	}
	return t.meanReturn / std * math.Sqrt(tradingDaysPerYear)
}

// MaxDrawdown is the largest peak-to-trough fall of the curve, as a fraction.
func (t *Tracker) MaxDrawdown() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxDrawdown
}

func (t *Tracker) Curve() []EquityPoint {
	return t.curve.Items()
}

func (t *Tracker) Last() (EquityPoint, bool) {
	last := t.curve.Last(1)
	if len(last) == 0 {
		return EquityPoint{}, false
	}
	return last[0], true
}

func (t *Tracker) Points() int {
	return int(t.curve.Seq())
}

// Flush hands every point recorded since the previous successful flush to exp.
func (t *Tracker) Flush(ctx context.Context, exp EquityExporter) (int, error) {
	if exp == nil {
		return 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.curve.Seq()
	pending, dropped := t.curve.Since(t.flushed)
	if dropped > 0 {
		logger.Warnf("[performance] %d equity points evicted before flush", dropped)
	}
	if len(pending) == 0 {
		t.flushed = seq
		return 0, nil
	}
	if err := exp.ExportEquity(ctx, pending); err != nil {
		return 0, fmt.Errorf("export equity: %w", err)
	}
	t.flushed = seq
	return len(pending), nil
}

// Report is the performance summary exposed by the engine.
type Report struct {
	TotalTrades   int           `json:"total_trades"`
	ClosedTrades  int           `json:"closed_trades"`
	Wins          int           `json:"wins"`
	Losses        int           `json:"losses"`
	WinRate       float64       `json:"win_rate"`
	RealizedPnL   float64       `json:"realized_pnl"`
	UnrealizedPnL float64       `json:"unrealized_pnl"`
	TotalPnL      float64       `json:"total_pnl"`
	Sharpe        float64       `json:"sharpe"`
	MaxDrawdown   float64       `json:"max_drawdown"`
	BestTrade     *ledger.Trade `json:"best_trade,omitempty"`
	WorstTrade    *ledger.Trade `json:"worst_trade,omitempty"`
	Equity        float64       `json:"equity"`
	Cash          float64       `json:"cash"`
	OpenPositions int           `json:"open_positions"`
	ReturnPct     float64       `json:"return_pct"`
	Cycles        int           `json:"cycles"`
}

// Report combines the ledger's trade totals with the curve statistics.
func (t *Tracker) Report(l *ledger.Ledger) Report {
	stats := l.Stats()
	unrealized := l.UnrealizedPnL()
	equity := l.Equity()
	t.mu.Lock()
	defer t.mu.Unlock()
	rep := Report{
		TotalTrades:   stats.Buys + stats.Sells,
		ClosedTrades:  stats.Sells,
		Wins:          stats.Wins,
		Losses:        stats.Losses,
		WinRate:       stats.WinRate(),
		RealizedPnL:   stats.RealizedPnL,
		UnrealizedPnL: unrealized,
		TotalPnL:      stats.RealizedPnL + unrealized,
		Sharpe:        t.sharpeLocked(),
		MaxDrawdown:   t.maxDrawdown,
		BestTrade:     stats.Best,
		WorstTrade:    stats.Worst,
		Equity:        equity,
		Cash:          l.Cash(),
		OpenPositions: l.Count(),
		Cycles:        int(t.curve.Seq()),
	}
	if t.initial > 0 {
		rep.ReturnPct = (equity/t.initial - 1) * 100
	}
	return rep
}

func (r Report) Lines() []string {
	lines := []string{
		fmt.Sprintf("Equity: %.2f (cash %.2f, %d open)", r.Equity, r.Cash, r.OpenPositions),
		fmt.Sprintf("Return: %.2f%%  PnL: %.2f (realized %.2f, unrealized %.2f)", r.ReturnPct, r.TotalPnL, r.RealizedPnL, r.UnrealizedPnL),
		fmt.Sprintf("Trades: %d closed, win rate %.1f%%", r.ClosedTrades, r.WinRate*100),
		fmt.Sprintf("Sharpe: %.2f  Max drawdown: %.2f%%", r.Sharpe, r.MaxDrawdown*100),
	}
	if r.BestTrade != nil {
		lines = append(lines, fmt.Sprintf("Best: %s %.2f", r.BestTrade.Symbol, r.BestTrade.PnL))
	}
	if r.WorstTrade != nil {
		lines = append(lines, fmt.Sprintf("Worst: %s %.2f", r.WorstTrade.Symbol, r.WorstTrade.PnL))
	}
	return lines
}
