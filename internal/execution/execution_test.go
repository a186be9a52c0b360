package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"equitybot/internal/ledger"
	"equitybot/internal/pkg/circuit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

func TestSimulatorFillsAtQuote(t *testing.T) {
	sim := NewSimulator(0)
	sim.SetClock(func() time.Time { return t0 })
	fill, err := sim.Execute(context.Background(), Order{Symbol: "AAA", Side: ledger.SideBuy, Quantity: 10, Price: 101.25})
	require.NoError(t, err)
	assert.Equal(t, 101.25, fill.Price)
	assert.Equal(t, int64(10), fill.Quantity)
	assert.Equal(t, t0, fill.Time)
}

func TestSimulatorSlippageMovesAgainstTrader(t *testing.T) {
	sim := NewSimulator(10)
	buy, err := sim.Execute(context.Background(), Order{Symbol: "AAA", Side: ledger.SideBuy, Quantity: 1, Price: 100})
	require.NoError(t, err)
	assert.Equal(t, 100.1, buy.Price)

	sell, err := sim.Execute(context.Background(), Order{Symbol: "AAA", Side: ledger.SideSell, Quantity: 1, Price: 100})
	require.NoError(t, err)
	assert.Equal(t, 99.9, sell.Price)
}

func TestSimulatorRejectsInvalidOrders(t *testing.T) {
	sim := NewSimulator(0)
	for _, o := range []Order{
		{Side: ledger.SideBuy, Quantity: 1, Price: 1},
		{Symbol: "AAA", Quantity: 1, Price: 1},
		{Symbol: "AAA", Side: ledger.SideBuy, Price: 1},
		{Symbol: "AAA", Side: ledger.SideBuy, Quantity: 1},
	} {
		_, err := sim.Execute(context.Background(), o)
		assert.ErrorIs(t, err, ErrInvalidOrder)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Execute(ctx, Order{Symbol: "AAA", Side: ledger.SideBuy, Quantity: 1, Price: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) SubmitOrder(ctx context.Context, symbol string, side ledger.Side, qty int64, typ OrderType) (BrokerFill, error) {
	args := m.Called(ctx, symbol, side, qty, typ)
	return args.Get(0).(BrokerFill), args.Error(1)
}

func TestLiveFill(t *testing.T) {
	b := &mockBroker{}
	b.On("SubmitOrder", mock.Anything, "AAA", ledger.SideBuy, int64(5), OrderMarket).
		Return(BrokerFill{OrderID: "x1", Price: 10.5, Quantity: 5, Time: t0}, nil)
	live := NewLive(b, nil, time.Second)

	fill, err := live.Execute(context.Background(), Order{Symbol: "AAA", Side: ledger.SideBuy, Quantity: 5, Price: 10})
	require.NoError(t, err)
	assert.Equal(t, 10.5, fill.Price)
	assert.Equal(t, t0, fill.Time)
	b.AssertExpectations(t)
}

func TestLivePartialFillRejected(t *testing.T) {
	b := &mockBroker{}
	b.On("SubmitOrder", mock.Anything, "AAA", ledger.SideBuy, int64(5), OrderMarket).
		Return(BrokerFill{OrderID: "x1", Price: 10, Quantity: 3}, nil)
	live := NewLive(b, nil, 0)

	_, err := live.Execute(context.Background(), Order{Symbol: "AAA", Side: ledger.SideBuy, Quantity: 5, Price: 10})
	assert.ErrorIs(t, err, ErrPartialFill)
}

func TestLiveBreakerOpensOnOutage(t *testing.T) {
	b := &mockBroker{}
	b.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(BrokerFill{}, errors.New("connection reset")).Twice()
	breaker := circuit.New("broker", 2, time.Hour)
	live := NewLive(b, breaker, 0)
	order := Order{Symbol: "AAA", Side: ledger.SideSell, Quantity: 1, Price: 10}

	for i := 0; i < 2; i++ {
		_, err := live.Execute(context.Background(), order)
		assert.ErrorContains(t, err, "connection reset")
	}
	_, err := live.Execute(context.Background(), order)
	assert.ErrorIs(t, err, circuit.ErrOpen)
	b.AssertNumberOfCalls(t, "SubmitOrder", 2)
}

func TestLiveRejectionDoesNotTripBreaker(t *testing.T) {
	b := &mockBroker{}
	b.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(BrokerFill{}, ErrRejected)
	breaker := circuit.New("broker", 1, time.Hour)
	live := NewLive(b, breaker, 0)

	_, err := live.Execute(context.Background(), Order{Symbol: "AAA", Side: ledger.SideBuy, Quantity: 1, Price: 10})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, circuit.StateClosed, breaker.State())
}
