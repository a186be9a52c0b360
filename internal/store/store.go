package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"equitybot/internal/ledger"
	"equitybot/internal/market"
	"equitybot/internal/performance"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var ErrRunNotFound = errors.New("run not found")

const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
	RunStatusHalted  = "halted"
)

// Store persists bars, trades, equity points and run records in SQLite.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&BarModel{}, &TradeModel{}, &EquityModel{}, &RunModel{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveBars upserts bars for symbol/timeframe. Re-importing a range overwrites it.
func (s *Store) SaveBars(ctx context.Context, symbol, timeframe string, bars market.Bars) (int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || timeframe == "" {
		return 0, fmt.Errorf("save bars: symbol and timeframe are required")
	}
	if len(bars) == 0 {
		return 0, nil
	}
	rows := make([]BarModel, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, BarModel{
			Symbol:    symbol,
			Timeframe: timeframe,
			TS:        b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "ts"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).
		CreateInBatches(&rows, 500).Error
	if err != nil {
		return 0, fmt.Errorf("save bars %s: %w", symbol, err)
	}
	return len(rows), nil
}

// LoadBars returns bars oldest first. Zero start or end leaves that side open.
func (s *Store) LoadBars(ctx context.Context, symbol, timeframe string, start, end time.Time) (market.Bars, error) {
	q := s.db.WithContext(ctx).Where("symbol = ? AND timeframe = ?", strings.ToUpper(symbol), timeframe)
	if !start.IsZero() {
		q = q.Where("ts >= ?", start.UnixMilli())
	}
	if !end.IsZero() {
		q = q.Where("ts <= ?", end.UnixMilli())
	}
	var rows []BarModel
	if err := q.Order("ts ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load bars %s: %w", symbol, err)
	}
	out := make(market.Bars, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.Bar{
			Time:   time.UnixMilli(r.TS).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return out, nil
}

// Symbols lists the symbols that have bars for timeframe.
func (s *Store) Symbols(ctx context.Context, timeframe string) ([]string, error) {
	var out []string
	err := s.db.WithContext(ctx).Model(&BarModel{}).
		Where("timeframe = ?", timeframe).
		Distinct().Order("symbol ASC").
		Pluck("symbol", &out).Error
	return out, err
}

// Run is the public view of a run record.
type Run struct {
	ID         string
	Mode       string
	Status     string
	Symbols    []string
	Params     map[string]any
	Stats      json.RawMessage
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (s *Store) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("create run: id is required")
	}
	symbols, err := json.Marshal(run.Symbols)
	if err != nil {
		return err
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return err
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&RunModel{
		ID:        run.ID,
		Mode:      run.Mode,
		Status:    run.Status,
		Symbols:   datatypes.JSON(symbols),
		Params:    datatypes.JSON(params),
		StartedAt: run.StartedAt.UnixMilli(),
	}).Error
}

// FinishRun stores the final status and a JSON summary of the run.
func (s *Store) FinishRun(ctx context.Context, id, status string, stats any, message string) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode run stats: %w", err)
	}
	res := s.db.WithContext(ctx).Model(&RunModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":      status,
		"stats":       datatypes.JSON(raw),
		"message":     message,
		"finished_at": time.Now().UnixMilli(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var m RunModel
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	return runFromModel(m), nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []RunModel
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(rows))
	for _, m := range rows {
		out = append(out, runFromModel(m))
	}
	return out, nil
}

func runFromModel(m RunModel) Run {
	run := Run{
		ID:        m.ID,
		Mode:      m.Mode,
		Status:    m.Status,
		Stats:     json.RawMessage(m.Stats),
		Message:   m.Message,
		StartedAt: time.UnixMilli(m.StartedAt),
	}
	if m.FinishedAt > 0 {
		run.FinishedAt = time.UnixMilli(m.FinishedAt)
	}
	_ = json.Unmarshal(m.Symbols, &run.Symbols)
	_ = json.Unmarshal(m.Params, &run.Params)
	return run
}

// Exporter returns the trade/equity sink for one run.
func (s *Store) Exporter(runID string) *Exporter {
	return &Exporter{db: s.db, runID: runID}
}

// Exporter writes flushed engine history under a run id.
type Exporter struct {
	db    *gorm.DB
	runID string
}

var (
	_ ledger.TradeExporter       = (*Exporter)(nil)
	_ performance.EquityExporter = (*Exporter)(nil)
)

func (e *Exporter) ExportTrades(ctx context.Context, trades []ledger.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	rows := make([]TradeModel, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, TradeModel{
			ID:       t.ID,
			RunID:    e.runID,
			Side:     t.Side.String(),
			Symbol:   t.Symbol,
			Quantity: t.Quantity,
			Price:    t.Price,
			Cost:     t.Cost,
			PnL:      t.PnL,
			PnLPct:   t.PnLPct,
			Strategy: t.Strategy,
			Reason:   t.Reason,
			TS:       t.Timestamp.UnixMilli(),
		})
	}
	return e.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (e *Exporter) ExportEquity(ctx context.Context, points []performance.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}
	rows := make([]EquityModel, 0, len(points))
	for _, p := range points {
		rows = append(rows, EquityModel{
			RunID:          e.runID,
			TS:             p.Time.UnixMilli(),
			Equity:         p.Equity,
			Cash:           p.Cash,
			PositionsValue: p.PositionsValue,
			Positions:      p.Positions,
		})
	}
	return e.db.WithContext(ctx).CreateInBatches(&rows, 500).Error
}

// Trades returns the persisted trades of a run, oldest first.
func (s *Store) Trades(ctx context.Context, runID string) ([]TradeModel, error) {
	var rows []TradeModel
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("ts ASC, created_at ASC").Find(&rows).Error
	return rows, err
}

// Equity returns the persisted equity curve of a run.
func (s *Store) Equity(ctx context.Context, runID string) ([]EquityModel, error) {
	var rows []EquityModel
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("ts ASC, id ASC").Find(&rows).Error
	return rows, err
}
