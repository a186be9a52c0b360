package scanner

import (
	"sync"
	"time"

	"equitybot/internal/logger"
	"equitybot/internal/market"
	"equitybot/internal/pkg/ring"
	"equitybot/internal/signal"

	"golang.org/x/sync/errgroup"
)

// Config holds detector thresholds and windows.
type Config struct {
	VolumeSpikeThreshold float64
	VolumeLookback       int
	VolatilityThreshold  float64
	VolatilityLookback   int
	BreakoutLookback     int
	BufferSize           int
	Concurrency          int
}

func DefaultConfig() Config {
	return Config{
		VolumeSpikeThreshold: 2.0,
		VolumeLookback:       20,
		VolatilityThreshold:  2.5,
		VolatilityLookback:   20,
		BreakoutLookback:     20,
		BufferSize:           1000,
		Concurrency:          4,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.VolumeSpikeThreshold <= 0 {
		c.VolumeSpikeThreshold = def.VolumeSpikeThreshold
	}
	if c.VolumeLookback <= 0 {
		c.VolumeLookback = def.VolumeLookback
	}
	if c.VolatilityThreshold <= 0 {
		c.VolatilityThreshold = def.VolatilityThreshold
	}
	if c.VolatilityLookback <= 0 {
		c.VolatilityLookback = def.VolatilityLookback
	}
	if c.BreakoutLookback <= 0 {
		c.BreakoutLookback = def.BreakoutLookback
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	return c
}

// Stats summarizes everything the scanner has emitted since construction.
type Stats struct {
	Scans      int            `json:"scans"`
	Total      int            `json:"total"`
	Buffered   int            `json:"buffered"`
	ByType     map[string]int `json:"by_type"`
	ByStrength map[string]int `json:"by_strength"`
	LastScanAt time.Time      `json:"last_scan_at"`
}

// Scanner runs the detector set. Detectors are pure; the only state is the
// bounded history of emitted signals kept for reporting.
type Scanner struct {
	cfg   Config
	nowFn func() time.Time

	recent *ring.Buffer[signal.Signal]

	mu         sync.Mutex
	scans      int
	total      int
	byType     map[signal.Type]int
	byStrength map[signal.Strength]int
	lastScanAt time.Time
}

func New(cfg Config) *Scanner {
	cfg = cfg.withDefaults()
	return &Scanner{
		cfg:        cfg,
		nowFn:      time.Now,
		recent:     ring.New[signal.Signal](cfg.BufferSize),
		byType:     make(map[signal.Type]int),
		byStrength: make(map[signal.Strength]int),
	}
}

// SetClock overrides the timestamp source; used by replays so signals carry bar time.
func (s *Scanner) SetClock(now func() time.Time) {
	if now != nil {
		s.nowFn = now
	}
}

func (s *Scanner) Config() Config {
	return s.cfg
}

// Scan runs every detector over every instrument. Output is ordered by symbol,
// then by detector, regardless of how the per-symbol work was scheduled.
// Instruments with a malformed quote are skipped.
func (s *Scanner) Scan(snapshots map[string]market.Snapshot, histories map[string]market.Bars) []signal.Signal {
	symbols := market.SortedSymbols(snapshots)
	now := s.nowFn()
	results := make([][]signal.Signal, len(symbols))
	detectors := s.detectors()

	var group errgroup.Group
	group.SetLimit(s.cfg.Concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		group.Go(func() error {
			snap := snapshots[sym]
			if err := snap.Validate(); err != nil {
				logger.Debugf("[scanner] skip %s: %v", sym, err)
				return nil
			}
			hist := histories[sym]
			var found []signal.Signal
			for _, detect := range detectors {
				found = append(found, detect(sym, snap, hist, now)...)
			}
			results[i] = found
			return nil
		})
	}
	_ = group.Wait()

	var out []signal.Signal
	for _, found := range results {
		out = append(out, found...)
	}
	s.record(out, now)
	return out
}

func (s *Scanner) record(found []signal.Signal, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++
	s.lastScanAt = now
	for _, sig := range found {
		s.recent.Push(sig)
		s.total++
		s.byType[sig.Type]++
		s.byStrength[sig.Strength]++
		logger.Debugf("%s", describe(sig))
	}
}

// Stats returns a copy of the running counters.
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Scans:      s.scans,
		Total:      s.total,
		Buffered:   s.recent.Len(),
		ByType:     make(map[string]int, len(s.byType)),
		ByStrength: make(map[string]int, len(s.byStrength)),
		LastScanAt: s.lastScanAt,
	}
	for k, v := range s.byType {
		st.ByType[k.String()] = v
	}
	for k, v := range s.byStrength {
		st.ByStrength[k.String()] = v
	}
	return st
}

// Recent returns up to n of the newest emitted signals, oldest first.
func (s *Scanner) Recent(n int) []signal.Signal {
	return s.recent.Last(n)
}
