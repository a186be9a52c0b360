package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"equitybot/internal/ledger"
	"equitybot/internal/market"
	"equitybot/internal/performance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func sampleBars(n int, base float64) market.Bars {
	out := make(market.Bars, n)
	for i := range out {
		p := base + float64(i)
		out[i] = market.Bar{Time: day(i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000}
	}
	return out
}

func TestSaveAndLoadBars(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	n, err := st.SaveBars(ctx, "aapl", "1d", sampleBars(5, 100))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	bars, err := st.LoadBars(ctx, "AAPL", "1d", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 5)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.True(t, bars[4].Time.Equal(day(4)))

	ranged, err := st.LoadBars(ctx, "AAPL", "1d", day(1), day(3))
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	assert.Equal(t, 101.0, ranged[0].Close)
}

func TestSaveBarsUpsertsExistingRows(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.SaveBars(ctx, "MSFT", "1d", sampleBars(3, 50))
	require.NoError(t, err)
	_, err = st.SaveBars(ctx, "MSFT", "1d", sampleBars(3, 70))
	require.NoError(t, err)

	bars, err := st.LoadBars(ctx, "MSFT", "1d", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 70.0, bars[0].Close)
}

func TestSymbols(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for _, sym := range []string{"MSFT", "AAPL"} {
		_, err := st.SaveBars(ctx, sym, "1d", sampleBars(2, 10))
		require.NoError(t, err)
	}
	_, err := st.SaveBars(ctx, "TSLA", "1h", sampleBars(2, 10))
	require.NoError(t, err)

	syms, err := st.Symbols(ctx, "1d")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, syms)
}

func TestSaveBarsRequiresSymbol(t *testing.T) {
	st := openTestStore(t)
	_, err := st.SaveBars(context.Background(), " ", "1d", sampleBars(1, 10))
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, Run{
		ID:      "run-1",
		Mode:    "backtest",
		Symbols: []string{"AAPL", "MSFT"},
		Params:  map[string]any{"initial_capital": 100000.0},
	}))
	run, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, []string{"AAPL", "MSFT"}, run.Symbols)
	assert.True(t, run.FinishedAt.IsZero())

	require.NoError(t, st.FinishRun(ctx, "run-1", RunStatusDone, map[string]float64{"equity": 101000}, ""))
	run, err = st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, run.Status)
	assert.False(t, run.FinishedAt.IsZero())
	var stats map[string]float64
	require.NoError(t, json.Unmarshal(run.Stats, &stats))
	assert.Equal(t, 101000.0, stats["equity"])

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestUnknownRun(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	_, err := st.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, st.FinishRun(ctx, "missing", RunStatusDone, nil, ""), ErrRunNotFound)
}

func TestExporterWritesUnderRunID(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	exp := st.Exporter("run-7")

	trades := []ledger.Trade{
		{ID: "t1", Side: ledger.SideBuy, Symbol: "AAPL", Quantity: 10, Price: 100, Cost: 1000, Timestamp: day(0), Strategy: "momentum"},
		{ID: "t2", Side: ledger.SideSell, Symbol: "AAPL", Quantity: 10, Price: 110, Cost: 1100, Timestamp: day(1), PnL: 100, PnLPct: 10},
	}
	require.NoError(t, exp.ExportTrades(ctx, trades))
	// a repeated flush of the same ids is ignored
	require.NoError(t, exp.ExportTrades(ctx, trades[:1]))

	points := []performance.EquityPoint{
		{Time: day(0), Equity: 100000, Cash: 99000, PositionsValue: 1000, Positions: 1},
		{Time: day(1), Equity: 100100, Cash: 100100},
	}
	require.NoError(t, exp.ExportEquity(ctx, points))

	gotTrades, err := st.Trades(ctx, "run-7")
	require.NoError(t, err)
	require.Len(t, gotTrades, 2)
	assert.Equal(t, "BUY", gotTrades[0].Side)
	assert.Equal(t, "SELL", gotTrades[1].Side)
	assert.Equal(t, 100.0, gotTrades[1].PnL)

	curve, err := st.Equity(ctx, "run-7")
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.Equal(t, 100100.0, curve[1].Equity)

	other, err := st.Trades(ctx, "run-8")
	require.NoError(t, err)
	assert.Empty(t, other)
}
