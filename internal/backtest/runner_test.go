package backtest

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"equitybot/internal/engine"
	"equitybot/internal/market"
	"equitybot/internal/scanner"
	"equitybot/internal/scheduler"
	"equitybot/internal/store"
	"equitybot/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type buyWhenFlat struct{}

func (buyWhenFlat) Name() string { return "buy_when_flat" }

func (buyWhenFlat) GenerateSignals(in strategy.Input) []strategy.Signal {
	if in.Holding {
		return nil
	}
	return []strategy.Signal{{
		Strategy:   "buy_when_flat",
		Symbol:     in.Symbol,
		Action:     strategy.ActionBuy,
		Confidence: 0.9,
		Price:      in.Tick.Price,
		Reason:     "flat",
	}}
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendText(text string) error {
	return m.Called(text).Error(0)
}

func day(n int) time.Time {
	return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func seed(t *testing.T, st *store.Store, symbol string, closes ...float64) {
	t.Helper()
	bars := make(market.Bars, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Time: day(i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	_, err := st.SaveBars(context.Background(), symbol, "1d", bars)
	require.NoError(t, err)
}

func newTestRunner(t *testing.T, mutate func(*engine.Config), notifier engine.Notifier) (*Runner, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "bt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg, err := strategy.NewRegistry(buyWhenFlat{})
	require.NoError(t, err)
	cfg := Config{
		Engine:      engine.DefaultConfig(),
		Scanner:     scanner.DefaultConfig(),
		Timeframe:   "1d",
		HistoryBars: 20,
	}
	if mutate != nil {
		mutate(&cfg.Engine)
	}
	r, err := NewRunner(cfg, st, reg, notifier, nil)
	require.NoError(t, err)
	return r, st
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestRunReplaysAndPersists(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("SendText", mock.MatchedBy(func(s string) bool { return strings.Contains(s, "done") })).Return(nil).Once()
	r, st := newTestRunner(t, nil, notifier)
	seed(t, st, "AAA", rising(12)...)

	res, err := r.Run(context.Background(), Request{Symbols: []string{"aaa", "AAA"}})
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusDone, res.Status)
	assert.Equal(t, 12, res.Frames)
	assert.Equal(t, 12, res.Cycles)
	assert.Equal(t, 1, res.Report.ClosedTrades)
	assert.Equal(t, 1, res.Report.Wins)
	require.Len(t, res.Positions, 1)
	assert.Equal(t, 111.0, res.Positions[0].EntryPrice)
	assert.Nil(t, r.Engine())

	ctx := context.Background()
	trades, err := st.Trades(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "BUY", trades[0].Side)
	assert.Equal(t, "SELL", trades[1].Side)
	assert.Equal(t, "Take-profit", trades[1].Reason)
	assert.True(t, time.UnixMilli(trades[1].TS).Equal(day(10)))

	curve, err := st.Equity(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, curve, 12)

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusDone, run.Status)
	assert.Equal(t, ModeBacktest, run.Mode)
	var saved Result
	require.NoError(t, json.Unmarshal(run.Stats, &saved))
	assert.Equal(t, 12, saved.Cycles)
	notifier.AssertExpectations(t)
}

func TestRunHaltsOnDrawdown(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("SendText", mock.Anything).Return(nil)
	r, st := newTestRunner(t, func(c *engine.Config) {
		c.MaxPositionSize = 1
		c.StopLossPct = 0.5
	}, notifier)
	seed(t, st, "AAA", 100, 70, 70)

	res, err := r.Run(context.Background(), Request{Symbols: []string{"AAA"}})
	require.NoError(t, err)
	assert.True(t, res.Halted)
	assert.Equal(t, store.RunStatusHalted, res.Status)
	assert.Equal(t, 2, res.Frames)
	assert.Empty(t, res.Positions)
	assert.Equal(t, 70000.0, res.Report.Equity)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusHalted, run.Status)
	assert.Contains(t, run.Message, "drawdown")
	// one alert from the engine, one run summary
	notifier.AssertNumberOfCalls(t, "SendText", 2)
}

func TestRunPaperStepsPerTick(t *testing.T) {
	r, st := newTestRunner(t, nil, nil)
	seed(t, st, "AAA", rising(4)...)
	seed(t, st, "BBB", rising(4)...)

	sched := scheduler.New("paper", time.Millisecond, false)
	sched.RunImmediately = true
	res, err := r.RunPaper(context.Background(), sched, Request{Symbols: []string{"AAA", "BBB"}})
	require.NoError(t, err)
	assert.Equal(t, ModePaper, res.Mode)
	assert.Equal(t, 4, res.Cycles)
	assert.Len(t, res.Positions, 2)
}

func TestRunRejectsBadRequests(t *testing.T) {
	r, st := newTestRunner(t, nil, nil)
	seed(t, st, "AAA", rising(3)...)
	ctx := context.Background()

	_, err := r.Run(ctx, Request{})
	assert.Error(t, err)
	_, err = r.Run(ctx, Request{Symbols: []string{"AAA"}, Start: day(2), End: day(1)})
	assert.Error(t, err)
	_, err = r.Run(ctx, Request{Symbols: []string{"ZZZ"}})
	assert.Error(t, err)
}
