package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"equitybot/internal/engine"
	"equitybot/internal/execution"
	"equitybot/internal/feed"
	"equitybot/internal/ledger"
	"equitybot/internal/logger"
	"equitybot/internal/performance"
	"equitybot/internal/scanner"
	"equitybot/internal/scheduler"
	"equitybot/internal/store"
	"equitybot/internal/strategy"

	"github.com/google/uuid"
)

const (
	ModeBacktest = "backtest"
	ModePaper    = "paper"
)

// Config is what every run shares.
type Config struct {
	Engine      engine.Config
	Scanner     scanner.Config
	SlippageBps float64
	Timeframe   string
	HistoryBars int
}

// Request selects the data a run replays.
type Request struct {
	Symbols []string
	Start   time.Time
	End     time.Time
}

// Result summarizes a finished run.
type Result struct {
	RunID     string             `json:"run_id"`
	Mode      string             `json:"mode"`
	Status    string             `json:"status"`
	Frames    int                `json:"frames"`
	Cycles    int                `json:"cycles"`
	Halted    bool               `json:"halted"`
	Message   string             `json:"message,omitempty"`
	Report    performance.Report `json:"report"`
	Positions []ledger.Position  `json:"positions,omitempty"`
}

func (r Result) Lines() []string {
	lines := []string{fmt.Sprintf("Run %s (%s) %s: %d cycles", r.RunID, r.Mode, r.Status, r.Cycles)}
	lines = append(lines, r.Report.Lines()...)
	for _, p := range r.Positions {
		lines = append(lines, "Open: "+p.String())
	}
	if r.Message != "" {
		lines = append(lines, r.Message)
	}
	return lines
}

// ExecutorFactory builds the executor of one run. now is the run clock.
type ExecutorFactory func(now func() time.Time) execution.Executor

// Runner drives a fresh engine over stored bars, either as fast as possible
// (backtest) or one frame per scheduler tick (paper).
type Runner struct {
	cfg         Config
	store       *store.Store
	strategies  *strategy.Registry
	notifier    engine.Notifier
	metrics     engine.Metrics
	newExecutor ExecutorFactory

	mu      sync.Mutex
	current *engine.Engine
}

func NewRunner(cfg Config, st *store.Store, strategies *strategy.Registry, notifier engine.Notifier, metrics engine.Metrics) (*Runner, error) {
	if st == nil {
		return nil, fmt.Errorf("backtest runner requires a store")
	}
	if strategies == nil {
		return nil, fmt.Errorf("backtest runner requires strategies")
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Runner{
		cfg:        cfg,
		store:      st,
		strategies: strategies,
		notifier:   notifier,
		metrics:    metrics,
		newExecutor: func(now func() time.Time) execution.Executor {
			sim := execution.NewSimulator(cfg.SlippageBps)
			sim.SetClock(now)
			return sim
		},
	}, nil
}

// SetExecutorFactory replaces the default simulator, e.g. with a broker-backed
// executor for paper sessions against a live venue.
func (r *Runner) SetExecutorFactory(fn ExecutorFactory) {
	if fn != nil {
		r.newExecutor = fn
	}
}

// Engine returns the engine of the run in progress, if any.
func (r *Runner) Engine() *engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// replayClock is the shared time source of one run; every component stamps
// with the current frame time.
type replayClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *replayClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *replayClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type session struct {
	runID  string
	mode   string
	replay *feed.Replay
	clock  *replayClock
	eng    *engine.Engine
	frames int
	cycles int
}

func (r *Runner) prepare(ctx context.Context, mode string, req Request) (*session, error) {
	symbols := normalizeSymbols(req.Symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to replay")
	}
	if !req.End.IsZero() && req.End.Before(req.Start) {
		return nil, fmt.Errorf("end %s is before start %s", req.End.Format(time.DateOnly), req.Start.Format(time.DateOnly))
	}
	replay, err := feed.Load(ctx, r.store, symbols, r.cfg.Timeframe, req.Start, req.End, r.cfg.HistoryBars)
	if err != nil {
		return nil, err
	}

	s := &session{
		runID:  uuid.NewString(),
		mode:   mode,
		replay: replay,
		clock:  &replayClock{now: req.Start},
	}
	sc := scanner.New(r.cfg.Scanner)
	sc.SetClock(s.clock.Now)
	exporter := r.store.Exporter(s.runID)
	eng, err := engine.New(r.cfg.Engine, engine.Deps{
		Scanner:        sc,
		Strategies:     r.strategies,
		Executor:       r.newExecutor(s.clock.Now),
		Notifier:       r.notifier,
		Metrics:        r.metrics,
		TradeExporter:  exporter,
		EquityExporter: exporter,
		Clock:          s.clock.Now,
	})
	if err != nil {
		return nil, err
	}
	s.eng = eng

	err = r.store.CreateRun(ctx, store.Run{
		ID:      s.runID,
		Mode:    mode,
		Symbols: replay.Symbols(),
		Params: map[string]any{
			"timeframe":        r.cfg.Timeframe,
			"start":            req.Start,
			"end":              req.End,
			"initial_capital":  r.cfg.Engine.InitialCapital,
			"max_positions":    r.cfg.Engine.MaxPositions,
			"max_drawdown":     r.cfg.Engine.MaxDrawdownLimit,
			"slippage_bps":     r.cfg.SlippageBps,
			"strategies":       r.strategies.Names(),
			"history_bars":     r.cfg.HistoryBars,
			"min_confidence":   r.cfg.Engine.MinConfidence,
			"entries_per_tick": r.cfg.Engine.MaxEntriesPerCycle,
		},
		StartedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := eng.Start(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.current = eng
	r.mu.Unlock()
	logger.Infof("[backtest] run %s (%s) started: %d frames, symbols=%s",
		s.runID, mode, replay.Len(), strings.Join(replay.Symbols(), ","))
	return s, nil
}

// step replays one frame. It returns false once the replay is exhausted.
func (s *session) step(ctx context.Context) (bool, error) {
	frame, ok := s.replay.Next()
	if !ok {
		return false, nil
	}
	s.frames++
	s.clock.set(frame.Time)
	rep, err := s.eng.ExecuteCycle(ctx, frame.Snapshots, frame.Histories)
	if !rep.Skipped {
		s.cycles++
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Run replays the whole range synchronously.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	s, err := r.prepare(ctx, ModeBacktest, req)
	if err != nil {
		return Result{}, err
	}
	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		more, err := s.step(ctx)
		if err != nil {
			runErr = err
			break
		}
		if !more {
			break
		}
	}
	return r.finish(ctx, s, runErr)
}

// RunPaper advances the replay one frame per scheduler tick until the data
// runs out, the risk limit halts the engine or ctx is cancelled.
func (r *Runner) RunPaper(ctx context.Context, sched *scheduler.Scheduler, req Request) (Result, error) {
	s, err := r.prepare(ctx, ModePaper, req)
	if err != nil {
		return Result{}, err
	}
	runErr := sched.Run(ctx, func(ctx context.Context) error {
		more, err := s.step(ctx)
		if err != nil {
			return err
		}
		if !more {
			return scheduler.ErrStop
		}
		return nil
	})
	if runErr == nil {
		runErr = ctx.Err()
	}
	return r.finish(ctx, s, runErr)
}

func (r *Runner) finish(ctx context.Context, s *session, runErr error) (Result, error) {
	// persistence must still happen after a cancelled run
	saveCtx := context.WithoutCancel(ctx)

	res := Result{
		RunID:  s.runID,
		Mode:   s.mode,
		Frames: s.frames,
		Cycles: s.cycles,
		Status: store.RunStatusDone,
	}
	var limitErr *engine.RiskLimitError
	switch {
	case runErr == nil:
		if err := s.eng.Stop(saveCtx); err != nil {
			logger.Warnf("[backtest] run %s stop: %v", s.runID, err)
		}
	case errors.As(runErr, &limitErr):
		res.Status = store.RunStatusHalted
		res.Halted = true
		res.Message = limitErr.Error()
		runErr = nil
	default:
		res.Status = store.RunStatusFailed
		res.Message = runErr.Error()
		if err := s.eng.Stop(saveCtx); err != nil {
			s.eng.Flush(saveCtx)
		}
	}
	res.Report = s.eng.Performance()
	res.Positions = s.eng.Positions()

	if err := r.store.FinishRun(saveCtx, s.runID, res.Status, res, res.Message); err != nil {
		logger.Errorf("[backtest] run %s: save summary: %v", s.runID, err)
	}
	logger.Infof("[backtest] run %s %s: %d cycles, equity %.2f, return %.2f%%",
		s.runID, res.Status, res.Cycles, res.Report.Equity, res.Report.ReturnPct)
	s.eng.WaitAlerts()
	r.notify(res)

	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
	return res, runErr
}

func (r *Runner) notify(res Result) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.SendText(strings.Join(res.Lines(), "\n")); err != nil {
		logger.Warnf("[backtest] notify failed: %v", err)
	}
}

func normalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, sym := range in {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
