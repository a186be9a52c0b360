package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"equitybot/internal/backtest"
	"equitybot/internal/config"
	"equitybot/internal/feed"
	"equitybot/internal/logger"
	"equitybot/internal/metrics"
	"equitybot/internal/notifier"
	"equitybot/internal/scheduler"
	"equitybot/internal/store"
	"equitybot/internal/strategy"

	"golang.org/x/sync/errgroup"
)

// App wires configuration to the runner and its collaborators.
type App struct {
	cfg      *config.Config
	store    *store.Store
	registry *strategy.Registry
	runner   *backtest.Runner
	metrics  *metrics.Registry
	notifier notifier.TextNotifier
	cleanup  func()

	Summary *StartupSummary
}

// NewApp builds the application (nothing starts).
func NewApp(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	a, cleanup, err := buildAppWithWire(cfg, opts)
	if err != nil {
		return nil, err
	}
	a.cleanup = cleanup
	return a, nil
}

func newApp(cfg *config.Config, st *store.Store, reg *strategy.Registry, runner *backtest.Runner, m *metrics.Registry, n notifier.TextNotifier) *App {
	return &App{
		cfg:      cfg,
		store:    st,
		registry: reg,
		runner:   runner,
		metrics:  m,
		notifier: n,
		Summary:  newStartupSummary(cfg, reg),
	}
}

func (a *App) Close() {
	if a == nil || a.cleanup == nil {
		return
	}
	a.cleanup()
	a.cleanup = nil
}

func (a *App) Store() *store.Store { return a.store }

func (a *App) Strategies() *strategy.Registry { return a.registry }

func (a *App) request(symbols []string) backtest.Request {
	if len(symbols) == 0 {
		symbols = a.cfg.Market.Symbols
	}
	start, end := a.cfg.Backtest.Range()
	return backtest.Request{Symbols: symbols, Start: start, End: end}
}

// RunBacktest replays the configured window over the stored bars. With no
// symbols configured or given, every symbol stored for the timeframe is used.
func (a *App) RunBacktest(ctx context.Context, symbols []string) (backtest.Result, error) {
	req, err := a.resolve(ctx, symbols)
	if err != nil {
		return backtest.Result{}, err
	}
	return a.withMetrics(ctx, func(ctx context.Context) (backtest.Result, error) {
		return a.runner.Run(ctx, req)
	})
}

// RunPaper advances one frame per scheduler tick.
func (a *App) RunPaper(ctx context.Context, symbols []string) (backtest.Result, error) {
	req, err := a.resolve(ctx, symbols)
	if err != nil {
		return backtest.Result{}, err
	}
	interval, ok := scheduler.ParseIntervalDuration(a.cfg.Scheduler.Interval)
	if !ok {
		return backtest.Result{}, fmt.Errorf("scheduler.interval %q is invalid", a.cfg.Scheduler.Interval)
	}
	sched := scheduler.New("paper", interval, a.cfg.Scheduler.Aligned)
	sched.RunImmediately = true
	return a.withMetrics(ctx, func(ctx context.Context) (backtest.Result, error) {
		return a.runner.RunPaper(ctx, sched, req)
	})
}

func (a *App) resolve(ctx context.Context, symbols []string) (backtest.Request, error) {
	req := a.request(symbols)
	if len(req.Symbols) > 0 {
		return req, nil
	}
	stored, err := a.store.Symbols(ctx, a.cfg.Market.Timeframe)
	if err != nil {
		return req, err
	}
	if len(stored) == 0 {
		return req, fmt.Errorf("no %s bars stored; run import first", a.cfg.Market.Timeframe)
	}
	req.Symbols = stored
	return req, nil
}

// withMetrics serves /metrics next to fn when enabled and stops it when fn returns.
func (a *App) withMetrics(ctx context.Context, fn func(context.Context) (backtest.Result, error)) (backtest.Result, error) {
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.metrics == nil || strings.TrimSpace(a.cfg.Metrics.ListenAddr) == "" {
		return fn(ctx)
	}
	group, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()
	var res backtest.Result
	group.Go(func() error {
		if err := a.metrics.Serve(runCtx, a.cfg.Metrics.ListenAddr); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		defer stop()
		var err error
		res, err = fn(runCtx)
		return err
	})
	err := group.Wait()
	return res, err
}

// Import loads CSV bars for symbol into the store.
func (a *App) Import(ctx context.Context, symbol string, r io.Reader) (int, error) {
	bars, err := feed.ReadCSV(r)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", symbol, err)
	}
	n, err := a.store.SaveBars(ctx, symbol, a.cfg.Market.Timeframe, bars)
	if err != nil {
		return 0, err
	}
	logger.Infof("[app] imported %d %s bars for %s", n, a.cfg.Market.Timeframe, strings.ToUpper(symbol))
	return n, nil
}

// Runs lists the most recent persisted runs.
func (a *App) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	return a.store.ListRuns(ctx, limit)
}

// EnableHotReload swaps the strategy set whenever the watched config changes.
// Risk limits are fixed for the lifetime of a run and are not reloaded.
func (a *App) EnableHotReload(w *config.Watcher) {
	w.Subscribe(a.reloadStrategies)
}

func (a *App) reloadStrategies(cfg *config.Config) {
	list, err := strategy.BuildAll(strategySettings(cfg.Strategies))
	if err != nil {
		logger.Errorf("[app] strategy reload rejected: %v", err)
		return
	}
	if err := a.registry.Reset(list); err != nil {
		logger.Errorf("[app] strategy reload rejected: %v", err)
		return
	}
	logger.Infof("[app] strategies reloaded: %s", strings.Join(a.registry.Names(), ", "))
}
