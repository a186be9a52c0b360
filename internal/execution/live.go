package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"equitybot/internal/ledger"
	"equitybot/internal/logger"
	"equitybot/internal/pkg/circuit"
)

// BrokerFill is what a broker reports for a submitted order.
type BrokerFill struct {
	OrderID  string
	Price    float64
	Quantity int64
	Time     time.Time
}

// Broker is the order transport. Implementations own the wire protocol.
type Broker interface {
	SubmitOrder(ctx context.Context, symbol string, side ledger.Side, quantity int64, typ OrderType) (BrokerFill, error)
}

// Live routes orders to a broker behind a circuit breaker and refuses any
// fill that does not cover the whole order.
type Live struct {
	broker  Broker
	breaker *circuit.Breaker
	timeout time.Duration
}

func NewLive(broker Broker, breaker *circuit.Breaker, timeout time.Duration) *Live {
	if breaker == nil {
		breaker = circuit.New("broker", 3, 30*time.Second)
	}
	return &Live{broker: broker, breaker: breaker, timeout: timeout}
}

func (l *Live) Execute(ctx context.Context, order Order) (Fill, error) {
	if err := order.Validate(); err != nil {
		return Fill{}, err
	}
	if l.broker == nil {
		return Fill{}, fmt.Errorf("%w: no broker configured", ErrRejected)
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	var bf BrokerFill
	err := l.breaker.Do(func() error {
		var err error
		bf, err = l.broker.SubmitOrder(ctx, order.Symbol, order.Side, order.Quantity, order.Type)
		return err
	}, countsAsOutage)
	if err != nil {
		logger.Warnf("[execution] %s failed: %v", order, err)
		return Fill{}, fmt.Errorf("submit %s: %w", order.Symbol, err)
	}
	if bf.Quantity != order.Quantity {
		logger.Errorf("[execution] %s filled %d of %d, order %s needs manual review", order.Symbol, bf.Quantity, order.Quantity, bf.OrderID)
		return Fill{}, fmt.Errorf("%w: %s filled %d of %d", ErrPartialFill, order.Symbol, bf.Quantity, order.Quantity)
	}
	if bf.Price <= 0 {
		return Fill{}, fmt.Errorf("%w: %s fill price %.4f", ErrRejected, order.Symbol, bf.Price)
	}
	at := bf.Time
	if at.IsZero() {
		at = time.Now()
	}
	return Fill{
		Symbol:   order.Symbol,
		Side:     order.Side,
		Price:    bf.Price,
		Quantity: bf.Quantity,
		Time:     at,
	}, nil
}

// Broker-side rejections are business outcomes and do not trip the breaker.
func countsAsOutage(err error) bool {
	return !errors.Is(err, ErrRejected)
}
