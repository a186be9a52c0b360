package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStrategy struct {
	name string
	out  []Signal
}

func (f fixedStrategy) Name() string                   { return f.name }
func (f fixedStrategy) GenerateSignals(Input) []Signal { return f.out }

func TestRegistryOrderAndReplace(t *testing.T) {
	r, err := NewRegistry(NewMomentum(0, 0), NewMeanReversion(0, 0), NewBreakout(0))
	require.NoError(t, err)
	assert.Equal(t, []string{NameMomentum, NameMeanReversion, NameBreakout}, r.Names())

	err = r.Register(NewMomentum(10, 0.1))
	assert.Error(t, err)

	replaced := r.Replace(NewMomentum(10, 0.1))
	assert.True(t, replaced)
	assert.Equal(t, []string{NameMomentum, NameMeanReversion, NameBreakout}, r.Names())
	got, ok := r.Get(NameMomentum)
	require.True(t, ok)
	assert.Equal(t, 10, got.(*Momentum).Lookback)

	assert.True(t, r.Remove(NameMeanReversion))
	assert.False(t, r.Remove(NameMeanReversion))
	assert.Equal(t, []string{NameMomentum, NameBreakout}, r.Names())

	assert.False(t, r.Replace(fixedStrategy{name: "extra"}))
	assert.Equal(t, 3, r.Len())
}

func TestRegistryEvaluateKeepsRegistrationOrder(t *testing.T) {
	r, err := NewRegistry(
		fixedStrategy{name: "b", out: []Signal{{Strategy: "b"}}},
		fixedStrategy{name: "a", out: []Signal{{Strategy: "a"}, {Strategy: "a"}}},
	)
	require.NoError(t, err)
	got := r.Evaluate(Input{Symbol: "AAA"})
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Strategy)
	assert.Equal(t, "a", got[2].Strategy)

	require.NoError(t, r.Reset([]Strategy{fixedStrategy{name: "c"}}))
	assert.Equal(t, []string{"c"}, r.Names())
}

func TestFromConfig(t *testing.T) {
	settings := DefaultSettings()
	settings[1].Enabled = false
	r, err := FromConfig(settings)
	require.NoError(t, err)
	assert.Equal(t, []string{NameMomentum, NameBreakout}, r.Names())

	_, err = FromConfig([]Settings{{Name: "martingale", Enabled: true}})
	assert.ErrorContains(t, err, "martingale")

	st, err := Build(Settings{Name: "Mean-Reversion", EntryZ: 1.5})
	require.NoError(t, err)
	mr := st.(*MeanReversion)
	assert.Equal(t, 20, mr.Lookback)
	assert.Equal(t, 1.5, mr.EntryZ)
}
