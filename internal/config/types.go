package config

import "strings"

// Config is the root configuration of equitybot.
type Config struct {
	App        AppConfig        `toml:"app"`
	Market     MarketConfig     `toml:"market"`
	Engine     EngineConfig     `toml:"engine"`
	Scanner    ScannerConfig    `toml:"scanner"`
	Strategies []StrategyConfig `toml:"strategies"`
	Execution  ExecutionConfig  `toml:"execution"`
	Store      StoreConfig      `toml:"store"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Backtest   BacktestConfig   `toml:"backtest"`
	Notify     NotifyConfig     `toml:"notify"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

// MarketConfig selects the instruments and how much history each cycle sees.
type MarketConfig struct {
	Symbols     []string `toml:"symbols"`
	Timeframe   string   `toml:"timeframe"`
	HistoryBars int      `toml:"history_bars"`
}

// EngineConfig holds the risk limits. Fractions are 0~1.
type EngineConfig struct {
	InitialCapital           float64 `toml:"initial_capital"`
	MaxPositions             int     `toml:"max_positions"`
	MaxPositionSize          float64 `toml:"max_position_size"`
	StopLossPct              float64 `toml:"stop_loss_pct"`
	TakeProfitPct            float64 `toml:"take_profit_pct"`
	MaxDrawdownLimit         float64 `toml:"max_drawdown_limit"`
	MinConfidence            float64 `toml:"min_confidence"`
	MaxEntriesPerCycle       int     `toml:"max_entries_per_cycle"`
	SignalExits              bool    `toml:"signal_exits"`
	TradeBuffer              int     `toml:"trade_buffer"`
	EquityBuffer             int     `toml:"equity_buffer"`
	OpportunityTopN          int     `toml:"opportunity_top_n"`
	OpportunityMinConfidence float64 `toml:"opportunity_min_confidence"`
	OpportunityMinStrength   string  `toml:"opportunity_min_strength"`
}

type ScannerConfig struct {
	VolumeSpikeThreshold float64 `toml:"volume_spike_threshold"`
	VolumeLookback       int     `toml:"volume_lookback"`
	VolatilityThreshold  float64 `toml:"volatility_threshold"`
	VolatilityLookback   int     `toml:"volatility_lookback"`
	BreakoutLookback     int     `toml:"breakout_lookback"`
	BufferSize           int     `toml:"buffer_size"`
	Concurrency          int     `toml:"concurrency"`
}

// StrategyConfig is one entry of the ordered strategy list. Enabled is a
// pointer so an omitted flag means enabled.
type StrategyConfig struct {
	Name      string  `toml:"name"`
	Enabled   *bool   `toml:"enabled"`
	Lookback  int     `toml:"lookback"`
	Threshold float64 `toml:"threshold"`
	EntryZ    float64 `toml:"entry_z"`
}

func (s StrategyConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ExecutionConfig picks the executor. Live mode needs a broker wired by the host.
type ExecutionConfig struct {
	Mode                   string  `toml:"mode"`
	SlippageBps            float64 `toml:"slippage_bps"`
	FillBufferBps          float64 `toml:"fill_buffer_bps"`
	TimeoutSeconds         int     `toml:"timeout_seconds"`
	BreakerThreshold       int     `toml:"breaker_threshold"`
	BreakerCooldownSeconds int     `toml:"breaker_cooldown_seconds"`
}

func (e ExecutionConfig) IsLive() bool {
	return strings.EqualFold(strings.TrimSpace(e.Mode), ExecutionLive)
}

// FillBuffer is the fraction of the quote reserved for adverse entry fills.
// Simulated fills always move by the slippage, so it is included there.
func (e ExecutionConfig) FillBuffer() float64 {
	bps := e.FillBufferBps
	if !e.IsLive() {
		bps += e.SlippageBps
	}
	return bps / 10000
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type SchedulerConfig struct {
	Interval string `toml:"interval"`
	Aligned  bool   `toml:"aligned"`
}

type BacktestConfig struct {
	Start string `toml:"start"`
	End   string `toml:"end"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

// keySet tracks the dotted paths set explicitly in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

// fieldDefault fills one field when the key is absent and need reports true.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
