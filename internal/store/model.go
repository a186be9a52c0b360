package store

import (
	"gorm.io/datatypes"
)

// BarModel is one stored OHLCV bar. (symbol, timeframe, ts) is unique.
type BarModel struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	Symbol    string  `gorm:"column:symbol;uniqueIndex:idx_bar,priority:1"`
	Timeframe string  `gorm:"column:timeframe;uniqueIndex:idx_bar,priority:2"`
	TS        int64   `gorm:"column:ts;uniqueIndex:idx_bar,priority:3"`
	Open      float64 `gorm:"column:open"`
	High      float64 `gorm:"column:high"`
	Low       float64 `gorm:"column:low"`
	Close     float64 `gorm:"column:close"`
	Volume    float64 `gorm:"column:volume"`
}

func (BarModel) TableName() string { return "bars" }

type TradeModel struct {
	ID        string  `gorm:"column:id;primaryKey"`
	RunID     string  `gorm:"column:run_id;index"`
	Side      string  `gorm:"column:side"`
	Symbol    string  `gorm:"column:symbol;index"`
	Quantity  int64   `gorm:"column:quantity"`
	Price     float64 `gorm:"column:price"`
	Cost      float64 `gorm:"column:cost"`
	PnL       float64 `gorm:"column:pnl"`
	PnLPct    float64 `gorm:"column:pnl_pct"`
	Strategy  string  `gorm:"column:strategy"`
	Reason    string  `gorm:"column:reason"`
	TS        int64   `gorm:"column:ts;index"`
	CreatedAt int64   `gorm:"column:created_at;autoCreateTime:milli"`
}

func (TradeModel) TableName() string { return "trades" }

type EquityModel struct {
	ID             int64   `gorm:"column:id;primaryKey"`
	RunID          string  `gorm:"column:run_id;index"`
	TS             int64   `gorm:"column:ts"`
	Equity         float64 `gorm:"column:equity"`
	Cash           float64 `gorm:"column:cash"`
	PositionsValue float64 `gorm:"column:positions_value"`
	Positions      int     `gorm:"column:positions"`
}

func (EquityModel) TableName() string { return "equity_points" }

// RunModel records one backtest or paper session.
type RunModel struct {
	ID         string         `gorm:"column:id;primaryKey"`
	Mode       string         `gorm:"column:mode"`
	Status     string         `gorm:"column:status;index"`
	Symbols    datatypes.JSON `gorm:"column:symbols;type:TEXT"`
	Params     datatypes.JSON `gorm:"column:params;type:TEXT"`
	Stats      datatypes.JSON `gorm:"column:stats;type:TEXT"`
	Message    string         `gorm:"column:message"`
	StartedAt  int64          `gorm:"column:started_at"`
	FinishedAt int64          `gorm:"column:finished_at"`
}

func (RunModel) TableName() string { return "runs" }
