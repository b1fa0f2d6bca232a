package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Log only writes messages to the logger. Used for dry runs.
type Log struct {
	Entry *logrus.Entry
}

func (l Log) Publish(_ context.Context, text string) error {
	l.Entry.WithField("message", text).Info("notification")
	return nil
}
