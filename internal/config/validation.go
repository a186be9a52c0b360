package config

import (
	"fmt"
	"strings"
	"time"
)

func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Scanner.validate(); err != nil {
		return err
	}
	if err := validateStrategies(c.Strategies); err != nil {
		return err
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.ListenAddr) == "" {
		return fmt.Errorf("metrics.listen_addr required when metrics are enabled")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if m.HistoryBars <= 0 {
		return fmt.Errorf("market.history_bars must be > 0")
	}
	return nil
}

func (e *EngineConfig) validate() error {
	switch {
	case e.InitialCapital <= 0:
		return fmt.Errorf("engine.initial_capital must be > 0")
	case e.MaxPositions <= 0:
		return fmt.Errorf("engine.max_positions must be > 0")
	case e.MaxPositionSize <= 0 || e.MaxPositionSize > 1:
		return fmt.Errorf("engine.max_position_size must be within (0,1]")
	case e.StopLossPct <= 0 || e.StopLossPct >= 1:
		return fmt.Errorf("engine.stop_loss_pct must be within (0,1)")
	case e.TakeProfitPct <= 0:
		return fmt.Errorf("engine.take_profit_pct must be > 0")
	case e.MaxDrawdownLimit <= 0 || e.MaxDrawdownLimit >= 1:
		return fmt.Errorf("engine.max_drawdown_limit must be within (0,1)")
	case e.MinConfidence < 0 || e.MinConfidence > 1:
		return fmt.Errorf("engine.min_confidence must be within [0,1]")
	case e.MaxEntriesPerCycle <= 0:
		return fmt.Errorf("engine.max_entries_per_cycle must be > 0")
	}
	switch strings.ToUpper(strings.TrimSpace(e.OpportunityMinStrength)) {
	case "WEAK", "MODERATE", "STRONG", "VERY_STRONG":
	default:
		return fmt.Errorf("engine.opportunity_min_strength %q is not a signal strength", e.OpportunityMinStrength)
	}
	return nil
}

func (s *ScannerConfig) validate() error {
	if s.VolumeSpikeThreshold <= 0 || s.VolatilityThreshold <= 0 {
		return fmt.Errorf("scanner thresholds must be > 0")
	}
	if s.VolumeLookback <= 0 || s.VolatilityLookback <= 0 || s.BreakoutLookback <= 0 {
		return fmt.Errorf("scanner lookbacks must be > 0")
	}
	return nil
}

func validateStrategies(list []StrategyConfig) error {
	seen := make(map[string]bool, len(list))
	enabled := 0
	for i, s := range list {
		switch s.Name {
		case "momentum", "mean_reversion", "breakout":
		case "":
			return fmt.Errorf("strategies[%d] missing name", i)
		default:
			return fmt.Errorf("strategies[%d] unknown strategy %q", i, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("strategies contains %s twice", s.Name)
		}
		seen[s.Name] = true
		if s.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("strategies requires at least one enabled strategy")
	}
	return nil
}

func (e *ExecutionConfig) validate() error {
	switch e.Mode {
	case ExecutionSimulated, ExecutionLive:
	default:
		return fmt.Errorf("execution.mode must be %s or %s", ExecutionSimulated, ExecutionLive)
	}
	if e.FillBufferBps < 0 || e.FillBuffer() >= 1 {
		return fmt.Errorf("execution.fill_buffer_bps must be >= 0 and leave the buffer below 100%%")
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	start, err := parseDate("backtest.start", b.Start)
	if err != nil {
		return err
	}
	end, err := parseDate("backtest.end", b.End)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return fmt.Errorf("backtest.end must be after backtest.start")
	}
	return nil
}

// Range returns the configured backtest window; zero values mean unbounded.
func (b BacktestConfig) Range() (time.Time, time.Time) {
	start, _ := parseDate("", b.Start)
	end, _ := parseDate("", b.End)
	return start, end
}

func parseDate(key, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD: %w", key, err)
	}
	return t, nil
}

func (n *NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}
