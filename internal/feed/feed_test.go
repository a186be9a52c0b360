package feed

import (
	"context"
	"math"
	"testing"
	"time"

	"equitybot/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func series(from, n int, base float64) market.Bars {
	out := make(market.Bars, n)
	for i := range out {
		p := base + float64(i)
		out[i] = market.Bar{Time: day(from + i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 500}
	}
	return out
}

func TestReplayFramesFollowBarTimes(t *testing.T) {
	r := NewReplay(map[string]market.Bars{
		"AAA": series(0, 5, 10),
		"BBB": series(2, 3, 50),
	}, time.Time{}, 2)
	require.Equal(t, 5, r.Len())
	assert.Equal(t, []string{"AAA", "BBB"}, r.Symbols())

	f, ok := r.Next()
	require.True(t, ok)
	assert.True(t, f.Time.Equal(day(0)))
	assert.Len(t, f.Snapshots, 1)
	assert.Empty(t, f.Histories["AAA"])

	r.Next()
	f, _ = r.Next()
	assert.True(t, f.Time.Equal(day(2)))
	require.Len(t, f.Snapshots, 2)
	assert.Equal(t, 12.0, f.Snapshots["AAA"].Price)
	assert.Equal(t, 50.0, f.Snapshots["BBB"].Price)
	require.Len(t, f.Histories["AAA"], 2)
	assert.Equal(t, 11.0, f.Histories["AAA"][1].Close)
	assert.Empty(t, f.Histories["BBB"])

	r.Next()
	r.Next()
	assert.Equal(t, 0, r.Remaining())
	_, ok = r.Next()
	assert.False(t, ok)
}

func TestReplayStartKeepsWarmupHistory(t *testing.T) {
	r := NewReplay(map[string]market.Bars{"AAA": series(0, 10, 100)}, day(6), 0)
	require.Equal(t, 4, r.Len())
	f, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, 106.0, f.Snapshots["AAA"].Price)
	assert.Len(t, f.Histories["AAA"], 6)
}

func TestReplayPassesMalformedBarsThrough(t *testing.T) {
	bars := series(0, 3, 10)
	bars[1].Close = math.NaN()
	r := NewReplay(map[string]market.Bars{"AAA": bars}, time.Time{}, 5)
	r.Next()
	f, _ := r.Next()
	assert.ErrorIs(t, f.Snapshots["AAA"].Validate(), market.ErrMalformedSnapshot)
}

type mapSource map[string]market.Bars

func (m mapSource) LoadBars(_ context.Context, symbol, _ string, start, end time.Time) (market.Bars, error) {
	var out market.Bars
	for _, b := range m[symbol] {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func TestLoadUsesWarmupWindow(t *testing.T) {
	src := mapSource{"AAA": series(0, 60, 10)}
	r, err := Load(context.Background(), src, []string{"AAA", "ZZZ"}, "1d", day(40), day(49), 20)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Len())
	assert.Equal(t, []string{"AAA"}, r.Symbols())
	f, _ := r.Next()
	assert.Len(t, f.Histories["AAA"], 20)
}

func TestLoadWithoutData(t *testing.T) {
	_, err := Load(context.Background(), mapSource{}, []string{"AAA"}, "1d", time.Time{}, time.Time{}, 20)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Load(context.Background(), mapSource{}, []string{"AAA"}, "2y", time.Time{}, time.Time{}, 20)
	assert.Error(t, err)
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe(" 1D ")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, tf.Duration)
	assert.Contains(t, SupportedTimeframes(), "15m")
	assert.True(t, tf.WarmupStart(day(40), 20).Before(day(20)))
}
