package execution

import (
	"context"
	"time"

	"equitybot/internal/ledger"

	"github.com/shopspring/decimal"
)

var bpsScale = decimal.NewFromInt(10000)

// Simulator fills every order immediately at the quoted price moved against
// the trader by a fixed number of basis points.
type Simulator struct {
	slippage decimal.Decimal
	nowFn    func() time.Time
}

func NewSimulator(slippageBps float64) *Simulator {
	if slippageBps < 0 {
		slippageBps = 0
	}
	return &Simulator{
		slippage: decimal.NewFromFloat(slippageBps).Div(bpsScale),
		nowFn:    time.Now,
	}
}

// SetClock makes fills carry the replay clock instead of wall time.
func (s *Simulator) SetClock(now func() time.Time) {
	if now != nil {
		s.nowFn = now
	}
}

func (s *Simulator) Execute(ctx context.Context, order Order) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}
	if err := order.Validate(); err != nil {
		return Fill{}, err
	}
	return Fill{
		Symbol:   order.Symbol,
		Side:     order.Side,
		Price:    s.fillPrice(order),
		Quantity: order.Quantity,
		Time:     s.nowFn(),
	}, nil
}

func (s *Simulator) fillPrice(order Order) float64 {
	if s.slippage.IsZero() {
		return order.Price
	}
	factor := decimal.NewFromInt(1)
	if order.Side == ledger.SideBuy {
		factor = factor.Add(s.slippage)
	} else {
		factor = factor.Sub(s.slippage)
	}
	price, _ := decimal.NewFromFloat(order.Price).Mul(factor).Float64()
	return price
}
