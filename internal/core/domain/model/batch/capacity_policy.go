package batch

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var ErrCapacityPolicyIsNotConstructed = errors.New("CapacityPolicy must be created via NewCapacityPolicy")

var (
	DefaultMinThreshold = kernel.MustWeight(3500)
	DefaultMaxCapacity  = kernel.MustWeight(5000)
)

// CapacityPolicy holds the two limits stamped on every new batch.
type CapacityPolicy struct {
	minThreshold kernel.Weight
	maxCapacity  kernel.Weight
	guard        guard.ConstructorGuard
}

// NewCapacityPolicy requires 0 < minThreshold <= maxCapacity.
func NewCapacityPolicy(minThreshold, maxCapacity kernel.Weight) (CapacityPolicy, error) {
	if err := errors.Join(minThreshold.Validate(), maxCapacity.Validate()); err != nil {
		return CapacityPolicy{}, err
	}
	if maxCapacity.IsZero() {
		return CapacityPolicy{}, errs.NewValueIsInvalidErrorWithCause("max capacity", errors.New("must be greater than 0"))
	}
	if minThreshold.IsZero() || minThreshold.GreaterThan(maxCapacity) {
		return CapacityPolicy{}, errs.NewValueIsOutOfRangeError("min threshold", minThreshold.String(), 0, maxCapacity.String())
	}
	return CapacityPolicy{minThreshold: minThreshold, maxCapacity: maxCapacity, guard: guard.NewConstructorGuard()}, nil
}

// DefaultCapacityPolicy is 3500 kg to become ready and 5000 kg hard ceiling.
func DefaultCapacityPolicy() CapacityPolicy {
	p, _ := NewCapacityPolicy(DefaultMinThreshold, DefaultMaxCapacity)
	return p
}

func (p CapacityPolicy) Validate() error {
	return p.guard.Validate(ErrCapacityPolicyIsNotConstructed)
}

func (p CapacityPolicy) MinThreshold() kernel.Weight { return p.minThreshold }

func (p CapacityPolicy) MaxCapacity() kernel.Weight { return p.maxCapacity }

// Admits reports whether a single order of weight w can ever fit a batch.
func (p CapacityPolicy) Admits(w kernel.Weight) bool {
	return !w.GreaterThan(p.maxCapacity)
}
