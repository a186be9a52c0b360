package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"equitybot/internal/logger"
)

// ErrStop ends Run without an error when returned by the task.
var ErrStop = errors.New("scheduler stop")

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler runs a task every Interval. When Aligned is set the ticks land on
// interval boundaries (plus Offset), otherwise they are Interval apart.
type Scheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	Aligned        bool
	RunImmediately bool

	nowFn func() time.Time
}

func New(name string, interval time.Duration, aligned bool) *Scheduler {
	return &Scheduler{
		Name:     name,
		Interval: interval,
		Aligned:  aligned,
		nowFn:    time.Now,
	}
}

// Run blocks until ctx is done, the task returns ErrStop (nil result) or the
// task fails (its error is returned).
func (s *Scheduler) Run(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("scheduler %s: task is nil", s.Name)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("scheduler %s: invalid interval=%s", s.Name, s.Interval)
	}
	if s.Offset < 0 {
		logger.Warnf("[scheduler] %s: negative offset=%s, clamp to 0", s.Name, s.Offset)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	startAt := s.nowFn().UTC()
	logger.Infof("[scheduler] %s: started interval=%s aligned=%v offset=%s run_immediately=%v at=%s",
		s.Name, s.Interval, s.Aligned, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		if done, err := s.runTask(ctx, task); done {
			return err
		}
	}
	for {
		now := s.nowFn().UTC()
		wakeAt := s.nextWake(now)
		wait := wakeAt.Sub(now)
		logger.Debugf("[scheduler] %s: next run at %s (in %s) | uptime=%s",
			s.Name, wakeAt.Format(time.RFC3339), wait.Truncate(time.Millisecond), now.Sub(startAt).Truncate(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("[scheduler] %s: ctx done, exit", s.Name)
			return nil
		case <-timer.C:
		}
		if done, err := s.runTask(ctx, task); done {
			return err
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task Task) (bool, error) {
	err := task(ctx)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrStop):
		logger.Infof("[scheduler] %s: task finished, exit", s.Name)
		return true, nil
	default:
		return true, err
	}
}

func (s *Scheduler) nextWake(now time.Time) time.Time {
	if !s.Aligned {
		return now.Add(s.Interval)
	}
	wake := now.Truncate(s.Interval).Add(s.Offset)
	for !wake.After(now) {
		wake = wake.Add(s.Interval)
	}
	return wake
}
