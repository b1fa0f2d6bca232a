// Package notify delivers short text messages to an external topic.
package notify

import (
	"context"
	"errors"
)

// Notifier publishes one UTF-8 text message.
type Notifier interface {
	Publish(ctx context.Context, text string) error
}

// Multi publishes to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
