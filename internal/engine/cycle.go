package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"equitybot/internal/execution"
	"equitybot/internal/ledger"
	"equitybot/internal/logger"
	"equitybot/internal/market"
	"equitybot/internal/scanner"
	"equitybot/internal/strategy"
)

const (
	reasonStopLoss    = "Stop-loss"
	reasonTakeProfit  = "Take-profit"
	reasonDrawdown    = "Drawdown liquidation"
	signalExitPrefix  = "Signal: "
	rejectEntryLimit  = "entry_limit"
	rejectSlots       = "slot_exhausted"
	rejectOpen        = "position_open"
	rejectFunds       = "insufficient_funds"
	rejectExited      = "exited_this_cycle"
	rejectUnknownKind = "other"
)

// ExecuteCycle runs one decision cycle over the given quotes and histories.
// It does nothing unless the engine is RUNNING. A drawdown breach liquidates
// the book, moves the engine to ERROR and returns a *RiskLimitError.
func (e *Engine) ExecuteCycle(ctx context.Context, snapshots map[string]market.Snapshot, histories map[string]market.Bars) (CycleReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.nowFn()
	rep := CycleReport{Time: now, State: e.state}
	if e.state != StateRunning {
		rep.Skipped = true
		return rep, nil
	}
	e.cycles++

	valid := e.validQuotesLocked(snapshots, &rep)
	for sym, snap := range valid {
		e.ledger.MarkToMarket(sym, snap.Price)
	}
	e.scanLocked(valid, histories, &rep)

	if dd, equity := e.drawdownLocked(); dd > e.cfg.MaxDrawdownLimit {
		return e.breachLocked(ctx, rep, dd, equity)
	}

	exited := e.processExitsLocked(ctx, valid, histories, &rep)
	if e.ledger.Count() < e.cfg.MaxPositions {
		e.processEntriesLocked(ctx, valid, histories, exited, &rep)
	}

	e.finishLocked(ctx, &rep)
	return rep, nil
}

func (e *Engine) validQuotesLocked(snapshots map[string]market.Snapshot, rep *CycleReport) map[string]market.Snapshot {
	valid := make(map[string]market.Snapshot, len(snapshots))
	for _, sym := range market.SortedSymbols(snapshots) {
		snap := snapshots[sym]
		if err := snap.Validate(); err != nil {
			logger.Warnf("[engine] skip %s: %v", sym, err)
			rep.SkippedSymbols = append(rep.SkippedSymbols, issue(sym, err))
			continue
		}
		valid[sym] = snap
	}
	return valid
}

func (e *Engine) scanLocked(valid map[string]market.Snapshot, histories map[string]market.Bars, rep *CycleReport) {
	if e.scanner == nil {
		return
	}
	found := e.scanner.Scan(valid, histories)
	rep.Detected = len(found)
	for _, sig := range found {
		e.metrics.ObserveSignal(sig.Type.String())
	}
	e.opportunities = scanner.TopOpportunities(found, e.cfg.OpportunityMinConfidence, e.cfg.OpportunityMinStrength, e.cfg.OpportunityTopN)
}

func (e *Engine) breachLocked(ctx context.Context, rep CycleReport, dd, equity float64) (CycleReport, error) {
	riskErr := &RiskLimitError{Drawdown: dd, Limit: e.cfg.MaxDrawdownLimit, Equity: equity}
	logger.Criticalf("[engine] %v, liquidating %d positions", riskErr, e.ledger.Count())
	if failed := e.liquidateLocked(ctx, &rep, reasonDrawdown); len(failed) > 0 {
		logger.Criticalf("[engine] %d positions could not be liquidated: %v", len(failed), errors.Join(failed...))
	}
	e.setStateLocked(StateError)
	e.notify(fmt.Sprintf("Risk limit breached: %v. Engine halted with %d open positions.", riskErr, e.ledger.Count()))
	e.finishLocked(ctx, &rep)
	return rep, riskErr
}

func (e *Engine) finishLocked(ctx context.Context, rep *CycleReport) {
	point := e.recordEquityLocked(rep.Time)
	dd, _ := e.drawdownLocked()
	rep.State = e.state
	rep.Equity = point.Equity
	rep.Cash = point.Cash
	rep.Drawdown = dd
	e.metrics.ObserveCycle(e.state.String(), point.Equity, point.Cash, dd, point.Positions)
	e.flushLocked(ctx)
	if rep.Traded() {
		logger.Infof("[engine] cycle %d: %d entries, %d exits, equity %.2f cash %.2f", e.cycles, len(rep.Entries), len(rep.Exits), rep.Equity, rep.Cash)
	}
}

// liquidateLocked closes every open position at its last marked price.
func (e *Engine) liquidateLocked(ctx context.Context, rep *CycleReport, reason string) []error {
	var failed []error
	for _, pos := range e.ledger.Positions() {
		if err := e.closeLocked(ctx, pos, pos.CurrentPrice, reason, rep); err != nil {
			failed = append(failed, err)
		}
	}
	return failed
}

// processExitsLocked applies stop-loss, take-profit and strategy exits, and
// returns the symbols closed this cycle.
func (e *Engine) processExitsLocked(ctx context.Context, valid map[string]market.Snapshot, histories map[string]market.Bars, rep *CycleReport) map[string]bool {
	exited := make(map[string]bool)
	for _, pos := range e.ledger.Positions() {
		snap, ok := valid[pos.Symbol]
		if !ok {
			continue
		}
		reason := e.exitReason(pos, snap, histories[pos.Symbol])
		if reason == "" {
			continue
		}
		if err := e.closeLocked(ctx, pos, snap.Price, reason, rep); err == nil {
			exited[pos.Symbol] = true
		}
	}
	return exited
}

func (e *Engine) exitReason(pos ledger.Position, snap market.Snapshot, hist market.Bars) string {
	switch {
	case ledger.HitStopLoss(snap.Price, pos.StopLoss):
		return reasonStopLoss
	case ledger.HitTakeProfit(snap.Price, pos.TakeProfit):
		return reasonTakeProfit
	case !e.cfg.SignalExits:
		return ""
	}
	sells := filterSignals(e.registry.Evaluate(strategy.Input{
		Symbol:  pos.Symbol,
		Tick:    snap,
		History: hist,
		Holding: true,
	}), strategy.ActionSell, e.cfg.MinConfidence)
	if len(sells) == 0 {
		return ""
	}
	return signalExitPrefix + sells[0].Reason
}

func (e *Engine) closeLocked(ctx context.Context, pos ledger.Position, price float64, reason string, rep *CycleReport) error {
	fill, err := e.executor.Execute(ctx, execution.Order{
		Symbol:   pos.Symbol,
		Side:     ledger.SideSell,
		Quantity: pos.Quantity,
		Type:     execution.OrderMarket,
		Price:    price,
	})
	if err != nil {
		logger.Errorf("[engine] exit %s (%s) failed: %v", pos.Symbol, reason, err)
		rep.Failures = append(rep.Failures, issue(pos.Symbol, err))
		return fmt.Errorf("close %s: %w", pos.Symbol, err)
	}
	trade, err := e.ledger.Close(pos.Symbol, fill.Price, e.fillTime(fill, rep.Time), reason)
	if err != nil {
		logger.Errorf("[engine] ledger close %s: %v", pos.Symbol, err)
		rep.Failures = append(rep.Failures, issue(pos.Symbol, err))
		return err
	}
	logger.Infof("[engine] %s", trade)
	rep.Exits = append(rep.Exits, trade)
	e.metrics.ObserveTrade(trade.Side.String())
	return nil
}

func (e *Engine) processEntriesLocked(ctx context.Context, valid map[string]market.Snapshot, histories map[string]market.Bars, exited map[string]bool, rep *CycleReport) {
	var candidates []strategy.Signal
	for _, sym := range market.SortedSymbols(valid) {
		in := strategy.Input{
			Symbol:  sym,
			Tick:    valid[sym],
			History: histories[sym],
			Holding: e.ledger.Holding(sym),
		}
		candidates = append(candidates, filterSignals(e.registry.Evaluate(in), strategy.ActionBuy, e.cfg.MinConfidence)...)
	}
	rep.Candidates = len(candidates)

	accepted := 0
	for _, c := range candidates {
		var err error
		switch {
		case accepted >= e.cfg.MaxEntriesPerCycle:
			err = ErrEntryLimit
		case e.ledger.Count() >= e.cfg.MaxPositions:
			err = ErrSlotExhausted
		case e.ledger.Holding(c.Symbol):
			err = ErrPositionOpen
		case exited[c.Symbol]:
			err = ErrExitedThisCycle
		default:
			var opened bool
			opened, err = e.openLocked(ctx, c, rep)
			if opened {
				accepted++
			}
		}
		if err != nil {
			e.reject(rep, c, err)
		}
	}
}

// openLocked sizes and fills one entry. Executor failures are reported in
// rep.Failures and return (false, nil) since they are not risk rejections.
// Sizing uses the quote raised by FillBuffer, so an adverse fill still fits.
func (e *Engine) openLocked(ctx context.Context, c strategy.Signal, rep *CycleReport) (bool, error) {
	cash := e.ledger.CashDecimal()
	worst := c.Price * (1 + e.cfg.FillBuffer)
	qty := ledger.SizeFor(cash, e.cfg.MaxPositionSize, worst)
	if qty <= 0 {
		return false, fmt.Errorf("%w: %.2f cash buys no shares at %.4f", ledger.ErrInsufficientFunds, e.ledger.Cash(), worst)
	}
	if cost := worst * float64(qty); cost > e.ledger.Cash() {
		return false, fmt.Errorf("%w: cost %.2f > cash %.2f", ledger.ErrInsufficientFunds, cost, e.ledger.Cash())
	}
	fill, err := e.executor.Execute(ctx, execution.Order{
		Symbol:   c.Symbol,
		Side:     ledger.SideBuy,
		Quantity: qty,
		Type:     execution.OrderMarket,
		Price:    c.Price,
	})
	if err != nil {
		logger.Errorf("[engine] entry %s failed: %v", c.Symbol, err)
		rep.Failures = append(rep.Failures, issue(c.Symbol, err))
		return false, nil
	}
	trade, err := e.ledger.Open(ledger.OpenRequest{
		Symbol:     c.Symbol,
		Quantity:   fill.Quantity,
		Price:      fill.Price,
		Time:       e.fillTime(fill, rep.Time),
		StopLoss:   ledger.StopLossFor(fill.Price, e.cfg.StopLossPct),
		TakeProfit: ledger.TakeProfitFor(fill.Price, e.cfg.TakeProfitPct),
		Strategy:   c.Strategy,
		Reason:     c.Reason,
	})
	if err != nil {
		logger.Errorf("[engine] filled %s but ledger refused it: %v", c.Symbol, err)
		e.unwindLocked(ctx, c.Symbol, fill, rep)
		return false, err
	}
	logger.Infof("[engine] %s (%s conf=%.2f)", trade, c.Strategy, c.Confidence)
	rep.Entries = append(rep.Entries, trade)
	e.metrics.ObserveTrade(trade.Side.String())
	return true, nil
}

// unwindLocked sells back a confirmed entry fill the ledger could not book,
// so the broker never holds a position the ledger does not mirror.
func (e *Engine) unwindLocked(ctx context.Context, symbol string, fill execution.Fill, rep *CycleReport) {
	_, err := e.executor.Execute(ctx, execution.Order{
		Symbol:   symbol,
		Side:     ledger.SideSell,
		Quantity: fill.Quantity,
		Type:     execution.OrderMarket,
		Price:    fill.Price,
	})
	if err != nil {
		err = fmt.Errorf("%w: %s %d shares: %v", ErrUnwindFailed, symbol, fill.Quantity, err)
		logger.Criticalf("[engine] %v", err)
		e.notify(fmt.Sprintf("Untracked position: %v", err))
	} else {
		err = fmt.Errorf("%w: %s %d shares sold back", ErrUnbookedFill, symbol, fill.Quantity)
		logger.Warnf("[engine] %v", err)
	}
	rep.Failures = append(rep.Failures, issue(symbol, err))
}

func (e *Engine) reject(rep *CycleReport, c strategy.Signal, err error) {
	kind := rejectionKind(err)
	logger.Debugf("[engine] reject %s %s: %v", c.Strategy, c.Symbol, err)
	rep.Rejected = append(rep.Rejected, Rejection{
		Symbol:     c.Symbol,
		Strategy:   c.Strategy,
		Confidence: c.Confidence,
		Kind:       kind,
		Reason:     err.Error(),
		Err:        err,
	})
	e.metrics.ObserveRejection(kind)
}

func rejectionKind(err error) string {
	switch {
	case errors.Is(err, ErrEntryLimit):
		return rejectEntryLimit
	case errors.Is(err, ErrSlotExhausted):
		return rejectSlots
	case errors.Is(err, ErrPositionOpen), errors.Is(err, ledger.ErrPositionExists):
		return rejectOpen
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return rejectFunds
	case errors.Is(err, ErrExitedThisCycle):
		return rejectExited
	default:
		return rejectUnknownKind
	}
}

// filterSignals keeps signals with the given action and enough confidence,
// ordered by confidence descending. Ties keep evaluation order.
func filterSignals(signals []strategy.Signal, action strategy.Action, minConfidence float64) []strategy.Signal {
	out := signals[:0:0]
	for _, s := range signals {
		if s.Action == action && s.Confidence >= minConfidence {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func (e *Engine) fillTime(fill execution.Fill, fallback time.Time) time.Time {
	if fill.Time.IsZero() {
		return fallback
	}
	return fill.Time
}
