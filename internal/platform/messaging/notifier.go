package messaging

import (
	"context"
	"time"

	reviewports "agegate/contexts/review-core/review-service/ports"
	"agegate/internal/shared/events"

	"github.com/google/uuid"
)

// NotificationsTopic carries per-account workflow notifications from the API
// process to the worker that delivers them.
const NotificationsTopic = "review.notifications"

// BusNotifier publishes review notifications onto the bus as envelopes.
type BusNotifier struct {
	Bus           *Bus
	SourceService string
}

func (n BusNotifier) Notify(ctx context.Context, accountID string, eventKind string, payload map[string]any) error {
	return n.Bus.Publish(ctx, NotificationsTopic, events.Envelope{
		EventID:        uuid.NewString(),
		EventType:      eventKind,
		SourceService:  n.SourceService,
		OccurredAtUTC:  time.Now().UTC(),
		EntityType:     "account",
		EntityID:       accountID,
		PayloadVersion: 1,
		Payload:        payload,
	})
}

var _ reviewports.Notifier = BusNotifier{}
