package strategy

import (
	"fmt"
	"strings"
)

// Settings describes one configured strategy. Zero numeric fields fall back to
// the strategy defaults.
type Settings struct {
	Name      string
	Enabled   bool
	Lookback  int
	Threshold float64
	EntryZ    float64
}

// DefaultSettings enables the three built-in strategies in evaluation order.
func DefaultSettings() []Settings {
	return []Settings{
		{Name: NameMomentum, Enabled: true, Lookback: 20, Threshold: 0.05},
		{Name: NameMeanReversion, Enabled: true, Lookback: 20, EntryZ: 2.0},
		{Name: NameBreakout, Enabled: true, Lookback: 20},
	}
}

// Build constructs the strategy named by s.
func Build(s Settings) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s.Name)) {
	case NameMomentum:
		return NewMomentum(s.Lookback, s.Threshold), nil
	case NameMeanReversion, "meanreversion", "mean-reversion":
		return NewMeanReversion(s.Lookback, s.EntryZ), nil
	case NameBreakout:
		return NewBreakout(s.Lookback), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", s.Name)
	}
}

// BuildAll returns the enabled strategies in the order given.
func BuildAll(settings []Settings) ([]Strategy, error) {
	out := make([]Strategy, 0, len(settings))
	for _, s := range settings {
		if !s.Enabled {
			continue
		}
		st, err := Build(s)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// FromConfig builds a registry holding the enabled strategies.
func FromConfig(settings []Settings) (*Registry, error) {
	list, err := BuildAll(settings)
	if err != nil {
		return nil, err
	}
	return NewRegistry(list...)
}
