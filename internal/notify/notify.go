// Package notify delivers job status events.
package notify

import (
	"context"
	"errors"

	"github.com/programme-lv/runtrack/api"
)

//go:generate mockgen -source=notify.go -destination=mocks/mock_notifier.go -package=mocks

// Notifier receives an event whenever the displayed status of a job changes.
type Notifier interface {
	Notify(ctx context.Context, ev api.StatusEvent) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(ctx context.Context, ev api.StatusEvent) error { return nil }

// Multi fans an event out to every notifier, joining their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev api.StatusEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
