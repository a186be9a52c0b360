package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"equitybot/internal/config"
	"equitybot/internal/strategy"
)

// StartupSummary is the configuration digest printed before a run.
type StartupSummary struct {
	Symbols    []string
	Timeframe  string
	History    int
	Strategies []string
	Execution  string
	Store      string
	Risk       RiskSummary
	Scheduler  string
	Window     string
}

type RiskSummary struct {
	InitialCapital  float64
	MaxPositions    int
	MaxPositionSize float64
	StopLossPct     float64
	TakeProfitPct   float64
	MaxDrawdown     float64
	MinConfidence   float64
}

func newStartupSummary(cfg *config.Config, reg *strategy.Registry) *StartupSummary {
	s := &StartupSummary{
		Symbols:    cfg.Market.Symbols,
		Timeframe:  cfg.Market.Timeframe,
		History:    cfg.Market.HistoryBars,
		Strategies: reg.Names(),
		Execution:  cfg.Execution.Mode,
		Store:      cfg.Store.Path,
		Scheduler:  cfg.Scheduler.Interval,
		Risk: RiskSummary{
			InitialCapital:  cfg.Engine.InitialCapital,
			MaxPositions:    cfg.Engine.MaxPositions,
			MaxPositionSize: cfg.Engine.MaxPositionSize,
			StopLossPct:     cfg.Engine.StopLossPct,
			TakeProfitPct:   cfg.Engine.TakeProfitPct,
			MaxDrawdown:     cfg.Engine.MaxDrawdownLimit,
			MinConfidence:   cfg.Engine.MinConfidence,
		},
	}
	if cfg.Scheduler.Aligned {
		s.Scheduler += " (aligned)"
	}
	start, end := cfg.Backtest.Range()
	s.Window = formatDate(start, "-inf") + " .. " + formatDate(end, "+inf")
	return s
}

func (s *StartupSummary) Print() {
	s.Fprint(os.Stdout)
}

func (s *StartupSummary) Fprint(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len("STARTUP SUMMARY")/2, "STARTUP SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[MARKET]")
	fmt.Fprintf(w, "  Symbols:   %s\n", formatList(s.Symbols))
	fmt.Fprintf(w, "  Timeframe: %s (history %d bars)\n", s.Timeframe, s.History)
	fmt.Fprintf(w, "  Window:    %s\n", s.Window)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[STRATEGIES]")
	fmt.Fprintf(w, "  %s\n", formatList(s.Strategies))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[RISK]")
	fmt.Fprintf(w, "  Capital: %.2f  Max positions: %d  Position size: %.0f%%\n",
		s.Risk.InitialCapital, s.Risk.MaxPositions, s.Risk.MaxPositionSize*100)
	fmt.Fprintf(w, "  Stop-loss: %.1f%%  Take-profit: %.1f%%  Max drawdown: %.1f%%  Min confidence: %.2f\n",
		s.Risk.StopLossPct*100, s.Risk.TakeProfitPct*100, s.Risk.MaxDrawdown*100, s.Risk.MinConfidence)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[RUNTIME]")
	fmt.Fprintf(w, "  Execution: %s  Scheduler: %s\n", s.Execution, s.Scheduler)
	fmt.Fprintf(w, "  Store:     %s\n", s.Store)
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func formatDate(t time.Time, open string) string {
	if t.IsZero() {
		return open
	}
	return t.Format(time.DateOnly)
}
