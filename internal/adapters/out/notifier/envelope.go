// Package notifier publishes batch lifecycle events to Kafka as CloudEvents
// JSON. Publishing is best-effort: events are queued in memory and dropped
// when the queue is full.
package notifier

import (
	"time"

	"dispatch/internal/core/domain/model/batch"

	"github.com/google/uuid"
)

const (
	SpecVersion     = "1.0"
	DataContentType = "application/json"
	DefaultSource   = "/dispatch/batches"
)

// Envelope is a structured-mode CloudEvent.
type Envelope struct {
	SpecVersion     string    `json:"specversion"`
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	Type            string    `json:"type"`
	Subject         string    `json:"subject"`
	Time            time.Time `json:"time"`
	DataContentType string    `json:"datacontenttype"`
	Data            BatchData `json:"data"`
}

type BatchData struct {
	BatchID     string  `json:"batchId"`
	Zone        string  `json:"zone"`
	Status      string  `json:"status"`
	DriverID    *string `json:"driverId,omitempty"`
	TotalWeight string  `json:"totalWeight"`
}

// NewEnvelope wraps a lifecycle event. The batch id is the subject so that
// every event of one batch lands on the same partition.
func NewEnvelope(source string, event batch.LifecycleEvent) Envelope {
	data := BatchData{
		BatchID:     event.BatchID.String(),
		Zone:        event.Zone,
		Status:      event.Status.String(),
		TotalWeight: event.TotalWeight.String(),
	}
	if event.DriverID != nil {
		driver := event.DriverID.String()
		data.DriverID = &driver
	}

	return Envelope{
		SpecVersion:     SpecVersion,
		ID:              uuid.NewString(),
		Source:          source,
		Type:            string(event.Type),
		Subject:         data.BatchID,
		Time:            event.OccurredAt.UTC(),
		DataContentType: DataContentType,
		Data:            data,
	}
}
