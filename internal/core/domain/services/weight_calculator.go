package services

import (
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

var (
	// DefaultUnitWeight is used for products without a recorded weight.
	DefaultUnitWeight = kernel.MustWeight(1)

	// MinOrderWeight is the floor of every computed order weight.
	MinOrderWeight = kernel.MustWeight(1)
)

// WeightCalculator derives shipping weight from line items. It is
// deterministic, so recomputing an unchanged order reproduces its weight.
type WeightCalculator struct{}

func NewWeightCalculator() WeightCalculator {
	return WeightCalculator{}
}

// Calculate returns the sum of quantity times unit weight, never less than
// MinOrderWeight.
func (c WeightCalculator) Calculate(items []order.LineItem, unitWeights map[kernel.UUID]kernel.Weight) (kernel.Weight, error) {
	total := kernel.ZeroWeight()
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return kernel.Weight{}, err
		}
		unit, ok := unitWeights[item.ProductID()]
		if !ok || unit.Validate() != nil {
			unit = DefaultUnitWeight
		}
		line, err := unit.Times(item.Quantity())
		if err != nil {
			return kernel.Weight{}, err
		}
		total = total.Add(line)
	}

	if total.LessThan(MinOrderWeight) {
		return MinOrderWeight, nil
	}
	return total, nil
}

// ProductIDs lists the distinct products referenced by items.
func ProductIDs(items []order.LineItem) []kernel.UUID {
	seen := make(map[kernel.UUID]struct{}, len(items))
	ids := make([]kernel.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID()]; ok {
			continue
		}
		seen[item.ProductID()] = struct{}{}
		ids = append(ids, item.ProductID())
	}
	return ids
}
