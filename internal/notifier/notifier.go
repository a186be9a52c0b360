package notifier

import (
	"errors"
	"strings"

	"equitybot/internal/logger"
)

// TextNotifier is the minimal alert interface the engine and runners depend on.
type TextNotifier interface {
	SendText(text string) error
}

// Log writes alerts to the process log. It is the fallback when no remote
// channel is configured.
type Log struct{}

func (Log) SendText(text string) error {
	logger.Warnf("[notify] %s", strings.ReplaceAll(strings.TrimSpace(text), "\n", " | "))
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []TextNotifier

func (m Multi) SendText(text string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.SendText(text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
