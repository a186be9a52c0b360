package app

import (
	"fmt"
	"strings"
	"time"

	"equitybot/internal/backtest"
	"equitybot/internal/config"
	"equitybot/internal/engine"
	"equitybot/internal/execution"
	"equitybot/internal/feed"
	"equitybot/internal/logger"
	"equitybot/internal/metrics"
	"equitybot/internal/notifier"
	"equitybot/internal/pkg/circuit"
	"equitybot/internal/scanner"
	"equitybot/internal/signal"
	"equitybot/internal/store"
	"equitybot/internal/strategy"
)

// Options carries collaborators the host supplies instead of configuration.
type Options struct {
	// Broker is required when execution.mode is live.
	Broker execution.Broker
}

func provideStore(cfg *config.Config) (*store.Store, func(), error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warnf("[app] close store: %v", err)
		}
	}
	return st, cleanup, nil
}

func provideStrategies(cfg *config.Config) (*strategy.Registry, error) {
	reg, err := strategy.FromConfig(strategySettings(cfg.Strategies))
	if err != nil {
		return nil, fmt.Errorf("strategies: %w", err)
	}
	return reg, nil
}

func provideNotifier(cfg *config.Config) notifier.TextNotifier {
	tg := cfg.Notify.Telegram
	if !tg.Enabled {
		return notifier.Log{}
	}
	return notifier.Multi{notifier.Log{}, notifier.NewTelegram(tg.BotToken, tg.ChatID)}
}

func provideMetrics(cfg *config.Config) *metrics.Registry {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New()
}

func provideRunnerConfig(cfg *config.Config) (backtest.Config, error) {
	if _, err := feed.ParseTimeframe(cfg.Market.Timeframe); err != nil {
		return backtest.Config{}, fmt.Errorf("market.timeframe: %w", err)
	}
	engCfg, err := engineConfig(cfg.Engine)
	if err != nil {
		return backtest.Config{}, err
	}
	engCfg.FillBuffer = cfg.Execution.FillBuffer()
	return backtest.Config{
		Engine:      engCfg,
		Scanner:     scannerConfig(cfg.Scanner),
		SlippageBps: cfg.Execution.SlippageBps,
		Timeframe:   cfg.Market.Timeframe,
		HistoryBars: cfg.Market.HistoryBars,
	}, nil
}

func provideRunner(cfg *config.Config, rc backtest.Config, st *store.Store, reg *strategy.Registry, n notifier.TextNotifier, m *metrics.Registry, opts Options) (*backtest.Runner, error) {
	var em engine.Metrics
	if m != nil {
		em = m
	}
	runner, err := backtest.NewRunner(rc, st, reg, n, em)
	if err != nil {
		return nil, err
	}
	if cfg.Execution.IsLive() {
		if opts.Broker == nil {
			return nil, fmt.Errorf("execution.mode=%s requires a broker", config.ExecutionLive)
		}
		runner.SetExecutorFactory(liveExecutorFactory(cfg.Execution, opts.Broker, n))
	}
	return runner, nil
}

func liveExecutorFactory(ec config.ExecutionConfig, broker execution.Broker, n notifier.TextNotifier) backtest.ExecutorFactory {
	return func(now func() time.Time) execution.Executor {
		breaker := circuit.New("broker", ec.BreakerThreshold, time.Duration(ec.BreakerCooldownSeconds)*time.Second)
		breaker.OnStateChange(func(name string, from, to circuit.State) {
			logger.Warnf("[app] circuit %s %s -> %s", name, from, to)
			if to == circuit.StateOpen && n != nil {
				msg := fmt.Sprintf("Broker circuit %s opened, orders are rejected for %ds", name, ec.BreakerCooldownSeconds)
				// called under the breaker and engine locks
				go func() {
					if err := n.SendText(msg); err != nil {
						logger.Warnf("[app] notify: %v", err)
					}
				}()
			}
		})
		return execution.NewLive(broker, breaker, time.Duration(ec.TimeoutSeconds)*time.Second)
	}
}

func engineConfig(c config.EngineConfig) (engine.Config, error) {
	strength, err := signal.ParseStrength(c.OpportunityMinStrength)
	if err != nil {
		return engine.Config{}, fmt.Errorf("engine.opportunity_min_strength: %w", err)
	}
	out := engine.Config{
		InitialCapital:           c.InitialCapital,
		MaxPositions:             c.MaxPositions,
		MaxPositionSize:          c.MaxPositionSize,
		StopLossPct:              c.StopLossPct,
		TakeProfitPct:            c.TakeProfitPct,
		MaxDrawdownLimit:         c.MaxDrawdownLimit,
		MinConfidence:            c.MinConfidence,
		MaxEntriesPerCycle:       c.MaxEntriesPerCycle,
		SignalExits:              c.SignalExits,
		TradeBuffer:              c.TradeBuffer,
		EquityBuffer:             c.EquityBuffer,
		OpportunityTopN:          c.OpportunityTopN,
		OpportunityMinConfidence: c.OpportunityMinConfidence,
		OpportunityMinStrength:   strength,
	}
	if err := out.Validate(); err != nil {
		return engine.Config{}, fmt.Errorf("engine: %w", err)
	}
	return out, nil
}

func scannerConfig(c config.ScannerConfig) scanner.Config {
	return scanner.Config{
		VolumeSpikeThreshold: c.VolumeSpikeThreshold,
		VolumeLookback:       c.VolumeLookback,
		VolatilityThreshold:  c.VolatilityThreshold,
		VolatilityLookback:   c.VolatilityLookback,
		BreakoutLookback:     c.BreakoutLookback,
		BufferSize:           c.BufferSize,
		Concurrency:          c.Concurrency,
	}
}

func strategySettings(list []config.StrategyConfig) []strategy.Settings {
	out := make([]strategy.Settings, 0, len(list))
	for _, s := range list {
		out = append(out, strategy.Settings{
			Name:      strings.ToLower(strings.TrimSpace(s.Name)),
			Enabled:   s.IsEnabled(),
			Lookback:  s.Lookback,
			Threshold: s.Threshold,
			EntryZ:    s.EntryZ,
		})
	}
	return out
}
