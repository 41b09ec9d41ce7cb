package ports

import (
	"context"

	"dispatch/internal/core/domain/model/batch"
)

// Notifier publishes batch lifecycle events. Notify is fire-and-forget: it
// must not block on the network and has no error to report.
type Notifier interface {
	Notify(ctx context.Context, event batch.LifecycleEvent)
}
