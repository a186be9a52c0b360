package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"equitybot/internal/execution"
	"equitybot/internal/ledger"
	"equitybot/internal/logger"
	"equitybot/internal/performance"
	"equitybot/internal/scanner"
	"equitybot/internal/signal"
	"equitybot/internal/strategy"
)

// Config holds the risk limits and sizing rules.
type Config struct {
	InitialCapital     float64
	MaxPositions       int
	MaxPositionSize    float64
	StopLossPct        float64
	TakeProfitPct      float64
	MaxDrawdownLimit   float64
	MinConfidence      float64
	MaxEntriesPerCycle int
	SignalExits        bool
	TradeBuffer        int
	EquityBuffer       int
	// FillBuffer is the fraction above the quote an entry fill may land at.
	// Sizing reserves it so a confirmed fill fits in cash.
	FillBuffer float64

	OpportunityTopN          int
	OpportunityMinConfidence float64
	OpportunityMinStrength   signal.Strength
}

func DefaultConfig() Config {
	return Config{
		InitialCapital:           100000,
		MaxPositions:             5,
		MaxPositionSize:          0.2,
		StopLossPct:              0.05,
		TakeProfitPct:            0.10,
		MaxDrawdownLimit:         0.20,
		MinConfidence:            0.70,
		MaxEntriesPerCycle:       1,
		SignalExits:              true,
		TradeBuffer:              1000,
		EquityBuffer:             1000,
		OpportunityTopN:          10,
		OpportunityMinConfidence: 0.6,
		OpportunityMinStrength:   signal.StrengthModerate,
	}
}

func (c Config) Validate() error {
	switch {
	case c.InitialCapital <= 0:
		return fmt.Errorf("initial capital must be > 0")
	case c.MaxPositions <= 0:
		return fmt.Errorf("max positions must be > 0")
	case c.MaxPositionSize <= 0 || c.MaxPositionSize > 1:
		return fmt.Errorf("max position size must be in (0,1]")
	case c.StopLossPct <= 0 || c.StopLossPct >= 1:
		return fmt.Errorf("stop loss pct must be in (0,1)")
	case c.TakeProfitPct <= 0:
		return fmt.Errorf("take profit pct must be > 0")
	case c.MaxDrawdownLimit <= 0 || c.MaxDrawdownLimit >= 1:
		return fmt.Errorf("max drawdown limit must be in (0,1)")
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return fmt.Errorf("min confidence must be in [0,1]")
	case c.MaxEntriesPerCycle <= 0:
		return fmt.Errorf("max entries per cycle must be > 0")
	case c.FillBuffer < 0 || c.FillBuffer >= 1:
		return fmt.Errorf("fill buffer must be in [0,1)")
	}
	return nil
}

// Notifier delivers operator alerts.
type Notifier interface {
	SendText(text string) error
}

// Metrics receives per-cycle observations.
type Metrics interface {
	ObserveCycle(state string, equity, cash, drawdown float64, openPositions int)
	ObserveTrade(side string)
	ObserveSignal(kind string)
	ObserveRejection(kind string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCycle(string, float64, float64, float64, int) {}
func (noopMetrics) ObserveTrade(string)                                 {}
func (noopMetrics) ObserveSignal(string)                                {}
func (noopMetrics) ObserveRejection(string)                             {}

// Deps are the engine collaborators. Scanner, Notifier, Metrics and the
// exporters are optional.
type Deps struct {
	Scanner        *scanner.Scanner
	Strategies     *strategy.Registry
	Executor       execution.Executor
	Notifier       Notifier
	Metrics        Metrics
	TradeExporter  ledger.TradeExporter
	EquityExporter performance.EquityExporter
	Clock          func() time.Time
}

// Engine is the risk manager and cycle loop. Every exported method takes the
// engine lock; the caller still drives cycles one at a time.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	state    BotState
	scanner  *scanner.Scanner
	registry *strategy.Registry
	executor execution.Executor
	notifier Notifier
	metrics  Metrics
	tradeExp ledger.TradeExporter
	eqExp    performance.EquityExporter
	nowFn    func() time.Time

	ledger        *ledger.Ledger
	tracker       *performance.Tracker
	opportunities []signal.Signal
	cycles        int

	alerts sync.WaitGroup
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if deps.Strategies == nil {
		return nil, fmt.Errorf("engine requires a strategy registry")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("engine requires an executor")
	}
	e := &Engine{
		cfg:      cfg,
		state:    StateIdle,
		scanner:  deps.Scanner,
		registry: deps.Strategies,
		executor: deps.Executor,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		tradeExp: deps.TradeExporter,
		eqExp:    deps.EquityExporter,
		nowFn:    deps.Clock,
		ledger:   ledger.New(cfg.InitialCapital, cfg.TradeBuffer),
		tracker:  performance.NewTracker(cfg.InitialCapital, cfg.EquityBuffer),
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}
	if e.nowFn == nil {
		e.nowFn = time.Now
	}
	return e, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) State() BotState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Start() error  { return e.transition(StateRunning, StateIdle) }
func (e *Engine) Pause() error  { return e.transition(StatePaused, StateRunning) }
func (e *Engine) Resume() error { return e.transition(StateRunning, StatePaused) }

// Stop moves RUNNING or PAUSED to STOPPED and flushes pending history.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !canTransition(e.state, StateStopped) {
		return transitionError(e.state, StateStopped)
	}
	e.setStateLocked(StateStopped)
	e.flushLocked(ctx)
	return nil
}

func (e *Engine) transition(to BotState, from BotState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != from || !canTransition(from, to) {
		return transitionError(e.state, to)
	}
	e.setStateLocked(to)
	return nil
}

func (e *Engine) setStateLocked(to BotState) {
	if e.state == to {
		return
	}
	logger.Infof("[engine] state %s -> %s", e.state, to)
	e.state = to
}

// EmergencyStop liquidates every position at its last price and moves the
// engine to ERROR. Positions whose exit order fails stay open and are
// reported in the returned error.
func (e *Engine) EmergencyStop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !canTransition(e.state, StateError) {
		return transitionError(e.state, StateError)
	}
	rep := CycleReport{Time: e.nowFn()}
	failed := e.liquidateLocked(ctx, &rep, "Emergency stop")
	e.setStateLocked(StateError)
	logger.Criticalf("[engine] emergency stop: closed %d positions, %d failed", len(rep.Exits), len(failed))
	e.notify(fmt.Sprintf("Emergency stop: %d positions closed, equity %.2f", len(rep.Exits), e.ledger.Equity()))
	e.recordEquityLocked(rep.Time)
	e.flushLocked(ctx)
	return errors.Join(failed...)
}

func (e *Engine) Performance() performance.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Report(e.ledger)
}

// Positions returns the open positions sorted by symbol.
func (e *Engine) Positions() []ledger.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Positions()
}

// Opportunities returns the ranked scanner output of the latest running cycle.
func (e *Engine) Opportunities() []signal.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]signal.Signal, len(e.opportunities))
	copy(out, e.opportunities)
	return out
}

func (e *Engine) Trades() []ledger.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Trades()
}

func (e *Engine) EquityCurve() []performance.EquityPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Curve()
}

func (e *Engine) Cash() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Cash()
}

func (e *Engine) Equity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Equity()
}

// Flush pushes pending trades and equity points to the exporters.
func (e *Engine) Flush(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushLocked(ctx)
}

func (e *Engine) flushLocked(ctx context.Context) {
	if _, err := e.ledger.Flush(ctx, e.tradeExp); err != nil {
		logger.Warnf("[engine] %v", err)
	}
	if _, err := e.tracker.Flush(ctx, e.eqExp); err != nil {
		logger.Warnf("[engine] %v", err)
	}
}

// notify delivers text on its own goroutine so a slow channel never holds
// the engine lock.
func (e *Engine) notify(text string) {
	if e.notifier == nil {
		return
	}
	e.alerts.Add(1)
	go func() {
		defer e.alerts.Done()
		if err := e.notifier.SendText(text); err != nil {
			logger.Warnf("[engine] notify failed: %v", err)
		}
	}()
}

// WaitAlerts blocks until every queued alert has been handed to the notifier.
func (e *Engine) WaitAlerts() {
	e.alerts.Wait()
}

func (e *Engine) recordEquityLocked(at time.Time) performance.EquityPoint {
	p := performance.EquityPoint{
		Time:           at,
		Equity:         e.ledger.Equity(),
		Cash:           e.ledger.Cash(),
		PositionsValue: e.ledger.PositionsValue(),
		Positions:      e.ledger.Count(),
	}
	e.tracker.Record(p)
	return p
}

func (e *Engine) drawdownLocked() (float64, float64) {
	equity := e.ledger.Equity()
	initial := e.cfg.InitialCapital
	return (initial - equity) / initial, equity
}
