package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"equitybot/internal/ledger"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrPartialFill  = errors.New("partial fill")
	ErrRejected     = errors.New("order rejected")
)

type OrderType int

const (
	OrderMarket OrderType = iota
	OrderLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderLimit:
		return "LIMIT"
	default:
		return "MARKET"
	}
}

// Order asks for a whole-share fill. Price is the quote the decision was made on
// (or the limit for OrderLimit).
type Order struct {
	Symbol   string
	Side     ledger.Side
	Quantity int64
	Type     OrderType
	Price    float64
}

func (o Order) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	if o.Side != ledger.SideBuy && o.Side != ledger.SideSell {
		return fmt.Errorf("%w: %s side %s", ErrInvalidOrder, o.Symbol, o.Side)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: %s quantity %d", ErrInvalidOrder, o.Symbol, o.Quantity)
	}
	if o.Price <= 0 {
		return fmt.Errorf("%w: %s price %.4f", ErrInvalidOrder, o.Symbol, o.Price)
	}
	return nil
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s %s x%d @%.4f", o.Type, o.Side, o.Symbol, o.Quantity, o.Price)
}

// Fill is a confirmed execution of the full order quantity.
type Fill struct {
	Symbol   string
	Side     ledger.Side
	Price    float64
	Quantity int64
	Time     time.Time
}

// Executor turns orders into fills. The engine only touches the ledger after
// Execute returns without error.
type Executor interface {
	Execute(ctx context.Context, order Order) (Fill, error)
}
