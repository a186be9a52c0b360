package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	b := New("broker", 2, time.Minute)
	b.SetClock(func() time.Time { return now })

	var transitions []string
	b.OnStateChange(func(_ string, from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	})

	boom := errors.New("boom")
	assert.ErrorIs(t, b.Do(func() error { return boom }, nil), boom)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Do(func() error { return boom }, nil), boom)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	assert.NoError(t, b.Do(func() error { return nil }, nil))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"CLOSED>OPEN", "OPEN>HALF-OPEN", "HALF-OPEN>CLOSED"}, transitions)
}

func TestBreakerIgnoresClassifiedErrors(t *testing.T) {
	b := New("broker", 1, time.Minute)
	rejected := errors.New("rejected")
	err := b.Do(func() error { return rejected }, func(err error) bool { return !errors.Is(err, rejected) })
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	b := New("broker", 1, time.Second)
	b.SetClock(func() time.Time { return now })
	b.RecordFailure()
	now = now.Add(2 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}
