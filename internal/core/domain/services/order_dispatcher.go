package services

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/order"
)

// ErrNoCandidateBatch is returned when none of the offered batches can take
// the order.
var ErrNoCandidateBatch = errors.New("no candidate batch")

// ErrZoneMismatch is returned when an order is offered a batch of another
// zone. Zones are matched strictly.
var ErrZoneMismatch = errors.New("order zone does not match batch zone")

// OrderDispatcher attaches approved orders to batches.
//
// Business rules:
//   - the order and the batch must share the zone
//   - the batch must be open and have room for the full order weight
//   - weight, membership and readiness change together or not at all
//
// Example usage:
//
//	dispatcher := services.NewOrderDispatcher()
//	becameReady, err := dispatcher.Dispatch(o, b, time.Now())
type OrderDispatcher struct{}

func NewOrderDispatcher() OrderDispatcher {
	return OrderDispatcher{}
}

// Dispatch adds the order's frozen weight to b, links the order to it and
// re-evaluates the batch readiness. It reports whether b became ready for
// delivery.
func (d OrderDispatcher) Dispatch(o *order.Order, b *batch.Batch, at time.Time) (bool, error) {
	if err := errors.Join(o.Validate(), b.Validate()); err != nil {
		return false, err
	}
	if err := o.CanJoinBatch(); err != nil {
		return false, err
	}
	if o.Zone() != b.Zone() {
		return false, fmt.Errorf("%w: order %s is in %q, batch %s is in %q",
			ErrZoneMismatch, o.ID(), o.Zone(), b.ID(), b.Zone())
	}

	w, _ := o.Weight()
	if err := b.AddWeight(w); err != nil {
		return false, err
	}
	if err := o.AttachToBatch(b.ID(), at); err != nil {
		// keep batch and order consistent
		_ = b.RemoveWeight(w)
		return false, err
	}

	return b.EvaluateReadiness(), nil
}

// SelectCandidate applies the candidate policy to an in-memory set of
// batches. Among open batches of the order's zone that fit, the one with the
// least remaining capacity wins and the oldest breaks ties. The repository
// implements the same ordering in SQL.
func (d OrderDispatcher) SelectCandidate(o *order.Order, batches []*batch.Batch) (*batch.Batch, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	w, ok := o.Weight()
	if !ok {
		return nil, ErrNoCandidateBatch
	}

	var best *batch.Batch
	for _, b := range batches {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if !b.IsOpen() || b.Zone() != o.Zone() || !b.CanFit(w) {
			continue
		}
		if best == nil || tighterFit(b, best) {
			best = b
		}
	}

	if best == nil {
		return nil, ErrNoCandidateBatch
	}
	return best, nil
}

func tighterFit(b, than *batch.Batch) bool {
	if c := b.RemainingCapacity().Cmp(than.RemainingCapacity()); c != 0 {
		return c < 0
	}
	return b.OlderThan(than)
}
