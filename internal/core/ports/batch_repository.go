package ports

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
)

// ErrBatchCreateConflict is returned by Create when another transaction
// stored a batch with the same zone and sequence first. The caller's
// transaction is still usable.
var ErrBatchCreateConflict = errors.New("batch create conflict")

// BatchRepository persists batch aggregates. Every method runs inside the
// transaction of the unit of work that produced the repository.
type BatchRepository interface {
	// Create assigns the next per-zone sequence and inserts the batch under a
	// savepoint. A (zone, sequence) unique violation rolls back to the
	// savepoint and returns ErrBatchCreateConflict.
	Create(ctx context.Context, b *batch.Batch) error

	// Update persists status, driver and total weight.
	Update(ctx context.Context, b *batch.Batch) error

	Delete(ctx context.Context, id kernel.UUID) error

	Get(ctx context.Context, id kernel.UUID) (*batch.Batch, error)

	// GetForUpdate locks the batch row until the transaction ends.
	GetForUpdate(ctx context.Context, id kernel.UUID) (*batch.Batch, error)

	// FindCandidate returns the pending batch of zone with the least remaining
	// capacity that still fits w, the oldest one on ties.
	// Rows locked by other transactions are skipped. Returns
	// errs.ObjectNotFoundError when none fits.
	FindCandidate(ctx context.Context, zone string, w kernel.Weight) (*batch.Batch, error)

	// AddWeight increments the stored total in a single guarded statement. A
	// delta that would exceed max capacity changes nothing and returns an
	// errs.CapacityExceededError.
	AddWeight(ctx context.Context, id kernel.UUID, delta kernel.Weight) error

	// SubtractWeight decrements the stored total, never below zero.
	SubtractWeight(ctx context.Context, id kernel.UUID, delta kernel.Weight) error

	// RecomputeWeight sums the weights of approved member orders, stores the
	// sum as the new total and returns it.
	RecomputeWeight(ctx context.Context, id kernel.UUID) (kernel.Weight, error)

	// ListPendingForUpdate locks and returns the pending batches of zone,
	// oldest first, skipping rows locked elsewhere.
	ListPendingForUpdate(ctx context.Context, zone string) ([]*batch.Batch, error)

	// ListZonesWithPending returns zones that have more than minCount pending
	// batches.
	ListZonesWithPending(ctx context.Context, minCount int) ([]string, error)

	// ListRepairableForUpdate locks and returns every batch that is not
	// delivered or cancelled, skipping rows locked elsewhere.
	ListRepairableForUpdate(ctx context.Context) ([]*batch.Batch, error)

	// ListReady returns up to limit ready_for_delivery batches, oldest first.
	// Limit 0 means all of them. Rows are not locked.
	ListReady(ctx context.Context, limit int) ([]*batch.Batch, error)
}
