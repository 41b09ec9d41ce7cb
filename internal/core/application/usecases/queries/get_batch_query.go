package queries

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var ErrGetBatchQueryIsNotConstructed = errors.New(
	"GetBatchQuery must be created via NewGetBatchQuery constructor",
)

// GetBatchQuery reads one batch together with its member orders.
//
// Example:
//
//	query, err := NewGetBatchQuery(batchID)
//	if err != nil {
//	    return err
//	}
//	view, err := handler.Handle(ctx, query)
//	if err != nil {
//	    return fmt.Errorf("failed to get batch: %w", err)
//	}
//	fmt.Printf("%s #%d holds %s kg in %d orders\n",
//	    view.Zone, view.Sequence, view.TotalWeight, len(view.Members))
type GetBatchQuery struct { //nolint:recvcheck //using for validation
	batchID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetBatchQuery(batchID kernel.UUID) (GetBatchQuery, error) {
	if err := batchID.Validate(); err != nil {
		return GetBatchQuery{}, err
	}
	return GetBatchQuery{batchID: batchID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the query was created through the constructor.
func (q GetBatchQuery) Validate() error {
	return q.guard.Validate(ErrGetBatchQueryIsNotConstructed)
}

func (q GetBatchQuery) BatchID() kernel.UUID {
	return q.batchID
}

// BatchView is the read model of a batch. Weights are decimal strings.
type BatchView struct {
	ID           kernel.UUID
	Zone         string
	Sequence     int64
	Status       string
	TotalWeight  string
	MinThreshold string
	MaxCapacity  string
	DriverID     *kernel.UUID
	CreatedAt    time.Time
	Members      []MemberView
}

type MemberView struct {
	OrderID       kernel.UUID
	Weight        string
	ApprovalState string
	DeliveryState string
	BatchedAt     *time.Time
}
