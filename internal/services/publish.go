package services

import (
	"context"

	"stockledger/server/internal/events"

	"github.com/sirupsen/logrus"
)

// publish is called after commit. Delivery failures are logged and never
// reported to the caller.
func publish(ctx context.Context, publisher events.Publisher, logger *logrus.Logger, event events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.WithFields(logrus.Fields{
			"event":        event.Type,
			"aggregate_id": event.AggregateID,
		}).WithError(err).Warn("event publish failed")
	}
}
