package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"equitybot/internal/app"
	"equitybot/internal/backtest"
	"equitybot/internal/config"
	"equitybot/internal/logger"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/equitybot.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "equitybot",
		Short:         "Rule-based equity trading engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", envOr("EQUITYBOT_CONFIG", defaultConfigPath), "config file")

	var symbols []string
	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay stored bars through the engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfgPath, false, func(a *app.App) error {
				res, err := a.RunBacktest(cmd.Context(), symbols)
				printResult(cmd.OutOrStdout(), res)
				return err
			})
		},
	}
	backtestCmd.Flags().StringSliceVar(&symbols, "symbols", nil, "symbols to replay (default: market.symbols)")

	paperCmd := &cobra.Command{
		Use:   "paper",
		Short: "Advance the replay one bar per scheduler tick",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfgPath, true, func(a *app.App) error {
				res, err := a.RunPaper(cmd.Context(), symbols)
				printResult(cmd.OutOrStdout(), res)
				return err
			})
		},
	}
	paperCmd.Flags().StringSliceVar(&symbols, "symbols", nil, "symbols to trade (default: market.symbols)")

	var symbol string
	importCmd := &cobra.Command{
		Use:   "import FILE.csv",
		Short: "Load OHLCV bars from a CSV file into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sym := symbol
			if sym == "" {
				sym = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return withApp(cfgPath, false, func(a *app.App) error {
				n, err := a.Import(cmd.Context(), sym, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d bars for %s\n", n, strings.ToUpper(sym))
				return nil
			})
		},
	}
	importCmd.Flags().StringVar(&symbol, "symbol", "", "symbol (default: file name)")

	var limit int
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfgPath, false, func(a *app.App) error {
				runs, err := a.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, r := range runs {
					fmt.Fprintf(w, "%s  %-8s %-7s %s  %s\n", r.ID, r.Mode, r.Status,
						r.StartedAt.Format("2006-01-02 15:04:05"), strings.Join(r.Symbols, ","))
				}
				return nil
			})
		},
	}
	runsCmd.Flags().IntVar(&limit, "limit", 20, "number of runs")

	root.AddCommand(backtestCmd, paperCmd, importCmd, runsCmd)
	return root
}

func withApp(cfgPath string, watch bool, fn func(*app.App) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded from %s (env=%s)", cfgPath, cfg.App.Env)

	a, err := app.NewApp(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	if watch {
		w, err := config.Watch(cfgPath)
		if err != nil {
			logger.Warnf("config hot reload disabled: %v", err)
		} else {
			a.EnableHotReload(w)
		}
	}
	return fn(a)
}

func printResult(w io.Writer, res backtest.Result) {
	if res.RunID == "" {
		return
	}
	for _, line := range res.Lines() {
		fmt.Fprintln(w, line)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
