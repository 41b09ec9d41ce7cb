package batch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var (
	ErrBatchIsNotConstructed = errors.New("Batch must be created via NewBatch or RestoreBatch constructor")

	// ErrInvalidTransition is returned for any status change the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid batch status transition")

	// ErrBatchNotOpen is returned when weight is added to a batch that is no
	// longer pending.
	ErrBatchNotOpen = errors.New("batch is not open for new orders")

	// ErrBatchHasDriver is returned when weight is removed from a batch that a
	// driver already took over.
	ErrBatchHasDriver = errors.New("batch already has a driver")
)

// Batch is the aggregate root of a dispatch batch.
//
// Batch follows these invariants:
//   - totalWeight never exceeds the max capacity through AddWeight
//   - driverRef is set exactly when the status has a driver
//   - zone is fixed at creation
type Batch struct {
	id       kernel.UUID
	zone     string
	sequence int64
	status   Status

	totalWeight kernel.Weight
	policy      CapacityPolicy

	driverRef *kernel.UUID
	createdAt time.Time

	guard guard.ConstructorGuard
}

// Snapshot carries persisted batch state into RestoreBatch.
type Snapshot struct {
	Sequence     int64
	Status       Status
	TotalWeight  kernel.Weight
	MinThreshold kernel.Weight
	MaxCapacity  kernel.Weight
	DriverRef    *kernel.UUID
	CreatedAt    time.Time
}

// NewBatch creates an empty pending batch for zone. The repository assigns the
// per-zone sequence when the batch is stored.
func NewBatch(id kernel.UUID, zone string, policy CapacityPolicy, createdAt time.Time) (*Batch, error) {
	b := &Batch{
		status:      StatusPending,
		totalWeight: kernel.ZeroWeight(),
		createdAt:   createdAt,
		guard:       guard.NewConstructorGuard(),
	}

	if err := errors.Join(b.setID(id), b.setZone(zone), b.setPolicy(policy)); err != nil {
		return nil, err
	}

	return b, nil
}

func RestoreBatch(id kernel.UUID, zone string, s Snapshot) (*Batch, error) {
	policy, errPolicy := NewCapacityPolicy(s.MinThreshold, s.MaxCapacity)

	b := &Batch{
		sequence:    s.Sequence,
		status:      s.Status,
		totalWeight: s.TotalWeight,
		driverRef:   s.DriverRef,
		createdAt:   s.CreatedAt,
		guard:       guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		b.setID(id),
		b.setZone(zone),
		errPolicy,
		s.Status.Validate(),
		s.TotalWeight.Validate(),
	); err != nil {
		return nil, err
	}
	b.policy = policy

	if s.Status.HasDriver() != (s.DriverRef != nil) {
		return nil, errs.NewValueIsInvalidErrorWithCause("driverRef",
			fmt.Errorf("status %s does not match driver presence", s.Status))
	}

	return b, nil
}

func (b *Batch) Validate() error {
	if b == nil {
		return ErrBatchIsNotConstructed
	}
	return b.guard.Validate(ErrBatchIsNotConstructed)
}

func (b *Batch) IsEqual(other *Batch) bool {
	return other != nil && b.id.IsEqual(other.id)
}

func (b *Batch) ID() kernel.UUID { return b.id }

func (b *Batch) Zone() string { return b.zone }

func (b *Batch) Sequence() int64 { return b.sequence }

func (b *Batch) Status() Status { return b.status }

func (b *Batch) TotalWeight() kernel.Weight { return b.totalWeight }

func (b *Batch) MinThreshold() kernel.Weight { return b.policy.MinThreshold() }

func (b *Batch) MaxCapacity() kernel.Weight { return b.policy.MaxCapacity() }

func (b *Batch) Policy() CapacityPolicy { return b.policy }

func (b *Batch) CreatedAt() time.Time { return b.createdAt }

// Driver returns the bound driver, or nil before assignment.
func (b *Batch) Driver() *kernel.UUID {
	if b.driverRef == nil {
		return nil
	}
	d := *b.driverRef
	return &d
}

// IsOpen is true while the batch accepts new members.
func (b *Batch) IsOpen() bool { return b.status == StatusPending }

// RemainingCapacity is max capacity minus total weight, floored at zero.
func (b *Batch) RemainingCapacity() kernel.Weight {
	left, err := b.policy.MaxCapacity().Sub(b.totalWeight)
	if err != nil {
		return kernel.ZeroWeight()
	}
	return left
}

// CanFit reports whether w can be added without exceeding max capacity.
func (b *Batch) CanFit(w kernel.Weight) bool {
	return b.totalWeight.Fits(w, b.policy.MaxCapacity())
}

func (b *Batch) IsOverCapacity() bool {
	return b.totalWeight.GreaterThan(b.policy.MaxCapacity())
}

// OlderThan orders batches by creation time, then sequence.
func (b *Batch) OlderThan(other *Batch) bool {
	if !b.createdAt.Equal(other.createdAt) {
		return b.createdAt.Before(other.createdAt)
	}
	return b.sequence < other.sequence
}

// SetSequence is called by the repository once the per-zone number is known.
func (b *Batch) SetSequence(sequence int64) error {
	if sequence <= 0 {
		return errs.NewValueIsOutOfRangeError("sequence", sequence, 1, "+inf")
	}
	b.sequence = sequence
	return nil
}

// AddWeight grows the total of an open batch. Exceeding max capacity returns
// an errs.CapacityExceededError and leaves the batch untouched.
func (b *Batch) AddWeight(delta kernel.Weight) error {
	if err := delta.Validate(); err != nil {
		return err
	}
	if !b.IsOpen() {
		return fmt.Errorf("%w: batch %s is %s", ErrBatchNotOpen, b.id, b.status)
	}
	if !b.CanFit(delta) {
		return errs.NewCapacityExceededError(b.id.String(), b.totalWeight.String(), delta.String(),
			b.policy.MaxCapacity().String())
	}
	b.totalWeight = b.totalWeight.Add(delta)
	return nil
}

// RemoveWeight shrinks the total of a batch without a driver.
func (b *Batch) RemoveWeight(delta kernel.Weight) error {
	if err := delta.Validate(); err != nil {
		return err
	}
	if !b.status.IsPreDriver() {
		return fmt.Errorf("%w: batch %s is %s", ErrBatchHasDriver, b.id, b.status)
	}
	next, err := b.totalWeight.Sub(delta)
	if err != nil {
		return err
	}
	b.totalWeight = next
	return nil
}

// OverwriteWeight replaces the cached total with the recomputed member sum.
// It reports whether the stored value drifted.
func (b *Batch) OverwriteWeight(recomputed kernel.Weight) (bool, error) {
	if err := recomputed.Validate(); err != nil {
		return false, err
	}
	drifted := !b.totalWeight.IsEqual(recomputed)
	b.totalWeight = recomputed
	return drifted, nil
}

// EvaluateReadiness promotes a pending batch whose total reached the min
// threshold. It reports whether the status changed.
func (b *Batch) EvaluateReadiness() bool {
	if b.status != StatusPending || b.totalWeight.LessThan(b.policy.MinThreshold()) {
		return false
	}
	b.status = StatusReadyForDelivery
	return true
}

func (b *Batch) AssignDriver(driverID kernel.UUID) error {
	if err := driverID.Validate(); err != nil {
		return err
	}
	next, err := b.status.TransitionTo(StatusAssigned)
	if err != nil {
		return err
	}
	b.status = next
	b.driverRef = &driverID
	return nil
}

func (b *Batch) StartDelivery() error {
	next, err := b.status.TransitionTo(StatusDelivering)
	if err != nil {
		return err
	}
	b.status = next
	return nil
}

// MarkDelivered should only be called once every approved member is
// delivered; the coordinator derives it from member state.
func (b *Batch) MarkDelivered() error {
	next, err := b.status.TransitionTo(StatusDelivered)
	if err != nil {
		return err
	}
	b.status = next
	return nil
}

func (b *Batch) Cancel() error {
	next, err := b.status.TransitionTo(StatusCancelled)
	if err != nil {
		return err
	}
	b.status = next
	return nil
}

func (b *Batch) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	b.id = id
	return nil
}

func (b *Batch) setZone(zone string) error {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return errs.NewValueIsRequiredError("zone")
	}
	b.zone = zone
	return nil
}

func (b *Batch) setPolicy(policy CapacityPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	b.policy = policy
	return nil
}
