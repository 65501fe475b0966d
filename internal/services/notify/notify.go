// Package notify delivers alert and budget messages to the operator.
package notify

import (
	"errors"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/tokenwatch/internal/logger"
)

// Notifier delivers a short message.
type Notifier interface {
	Notify(title, body string) error
}

// Func adapts a function to the Notifier interface.
type Func func(title, body string) error

// Notify implements Notifier.
func (f Func) Notify(title, body string) error {
	return f(title, body)
}

// Log writes notifications to the application logger.
type Log struct{}

// Notify implements Notifier.
func (Log) Notify(title, body string) error {
	logger.Warn(title, "detail", body)
	return nil
}

// desktopNotify is swapped in tests to avoid touching the desktop.
var desktopNotify = func(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Desktop shows notifications through the OS notification center.
type Desktop struct{}

// Notify implements Notifier.
func (Desktop) Notify(title, body string) error {
	return desktopNotify(title, body)
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(title, body string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New returns the log notifier, plus the desktop notifier when enabled.
func New(desktop bool) Notifier {
	if desktop {
		return Multi{Log{}, Desktop{}}
	}
	return Log{}
}
