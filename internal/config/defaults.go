package config

import "strings"

const (
	ExecutionSimulated = "simulated"
	ExecutionLive      = "live"

	defaultAppEnv             = "dev"
	defaultAppLogLevel        = "info"
	defaultAppLogPath         = "data/logs/equitybot.log"
	defaultTimeframe          = "1d"
	defaultHistoryBars        = 60
	defaultInitialCapital     = 100000
	defaultMaxPositions       = 5
	defaultMaxPositionSize    = 0.2
	defaultStopLossPct        = 0.05
	defaultTakeProfitPct      = 0.10
	defaultMaxDrawdown        = 0.20
	defaultMinConfidence      = 0.70
	defaultMaxEntries         = 1
	defaultBuffer             = 1000
	defaultOpportunityTopN    = 10
	defaultOpportunityConf    = 0.6
	defaultOpportunityMinStr  = "MODERATE"
	defaultVolumeSpike        = 2.0
	defaultVolatility         = 2.5
	defaultLookback           = 20
	defaultScanConcurrency    = 4
	defaultExecTimeout        = 10
	defaultBreakerThreshold   = 3
	defaultBreakerCooldown    = 30
	defaultStorePath          = "data/equitybot.db"
	defaultSchedulerInterval  = "1m"
	defaultMetricsListenAddr  = ":9102"
	defaultMomentumThreshold  = 0.05
	defaultMeanReversionEntry = 2.0
)

// DefaultStrategies is the strategy list used when none is configured.
func DefaultStrategies() []StrategyConfig {
	return []StrategyConfig{
		{Name: "momentum", Lookback: defaultLookback, Threshold: defaultMomentumThreshold},
		{Name: "mean_reversion", Lookback: defaultLookback, EntryZ: defaultMeanReversionEntry},
		{Name: "breakout", Lookback: defaultLookback},
	}
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Scanner.applyDefaults(keys)
	c.applyStrategyDefaults(keys)
	c.Execution.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
	c.Metrics.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("market.timeframe", &m.Timeframe, defaultTimeframe),
		intFieldDefault("market.history_bars", &m.HistoryBars, defaultHistoryBars),
	)
	seen := make(map[string]bool, len(m.Symbols))
	symbols := m.Symbols[:0]
	for _, sym := range m.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	m.Symbols = symbols
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("engine.initial_capital", &e.InitialCapital, defaultInitialCapital),
		intFieldDefault("engine.max_positions", &e.MaxPositions, defaultMaxPositions),
		floatFieldDefault("engine.max_position_size", &e.MaxPositionSize, defaultMaxPositionSize),
		floatFieldDefault("engine.stop_loss_pct", &e.StopLossPct, defaultStopLossPct),
		floatFieldDefault("engine.take_profit_pct", &e.TakeProfitPct, defaultTakeProfitPct),
		floatFieldDefault("engine.max_drawdown_limit", &e.MaxDrawdownLimit, defaultMaxDrawdown),
		floatFieldDefault("engine.min_confidence", &e.MinConfidence, defaultMinConfidence),
		intFieldDefault("engine.max_entries_per_cycle", &e.MaxEntriesPerCycle, defaultMaxEntries),
		boolFieldDefault("engine.signal_exits", &e.SignalExits, true),
		intFieldDefault("engine.trade_buffer", &e.TradeBuffer, defaultBuffer),
		intFieldDefault("engine.equity_buffer", &e.EquityBuffer, defaultBuffer),
		intFieldDefault("engine.opportunity_top_n", &e.OpportunityTopN, defaultOpportunityTopN),
		floatFieldDefault("engine.opportunity_min_confidence", &e.OpportunityMinConfidence, defaultOpportunityConf),
		stringFieldDefault("engine.opportunity_min_strength", &e.OpportunityMinStrength, defaultOpportunityMinStr),
	)
}

func (s *ScannerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("scanner.volume_spike_threshold", &s.VolumeSpikeThreshold, defaultVolumeSpike),
		intFieldDefault("scanner.volume_lookback", &s.VolumeLookback, defaultLookback),
		floatFieldDefault("scanner.volatility_threshold", &s.VolatilityThreshold, defaultVolatility),
		intFieldDefault("scanner.volatility_lookback", &s.VolatilityLookback, defaultLookback),
		intFieldDefault("scanner.breakout_lookback", &s.BreakoutLookback, defaultLookback),
		intFieldDefault("scanner.buffer_size", &s.BufferSize, defaultBuffer),
		intFieldDefault("scanner.concurrency", &s.Concurrency, defaultScanConcurrency),
	)
}

func (c *Config) applyStrategyDefaults(keys keySet) {
	if !keys.isSet("strategies") && len(c.Strategies) == 0 {
		c.Strategies = DefaultStrategies()
		return
	}
	for i := range c.Strategies {
		s := &c.Strategies[i]
		s.Name = strings.ToLower(strings.TrimSpace(s.Name))
		if s.Lookback <= 0 {
			s.Lookback = defaultLookback
		}
		switch s.Name {
		case "momentum":
			if s.Threshold <= 0 {
				s.Threshold = defaultMomentumThreshold
			}
		case "mean_reversion":
			if s.EntryZ <= 0 {
				s.EntryZ = defaultMeanReversionEntry
			}
		}
	}
}

func (e *ExecutionConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("execution.mode", &e.Mode, ExecutionSimulated),
		intFieldDefault("execution.timeout_seconds", &e.TimeoutSeconds, defaultExecTimeout),
		intFieldDefault("execution.breaker_threshold", &e.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("execution.breaker_cooldown_seconds", &e.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
	e.Mode = strings.ToLower(strings.TrimSpace(e.Mode))
	if e.SlippageBps < 0 {
		e.SlippageBps = 0
	}
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys, stringFieldDefault("store.path", &s.Path, defaultStorePath))
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys, stringFieldDefault("scheduler.interval", &s.Interval, defaultSchedulerInterval))
}

func (m *MetricsConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys, stringFieldDefault("metrics.listen_addr", &m.ListenAddr, defaultMetricsListenAddr))
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

// boolFieldDefault applies def only when the key is absent, so an explicit
// false survives.
func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}
