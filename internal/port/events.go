package port

import (
	"context"

	"github.com/olyamironova/lending-engine/internal/domain"
)

// EventSink receives one-way notifications for dashboards. Publish failures
// never abort the operation that produced the event.
type EventSink interface {
	Publish(ctx context.Context, ev domain.Event) error
}
