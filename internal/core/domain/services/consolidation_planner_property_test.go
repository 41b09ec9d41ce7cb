//go:build property
// +build property

package services_test

import (
	"testing"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/services"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildBatches turns generated weights into pending batches that respect the
// capacity, dropping members that would overflow.
func buildBatches(raw [][]int) []services.PlannedBatch {
	var out []services.PlannedBatch
	for i, weights := range raw {
		var kept []float64
		total := 0
		for _, w := range weights {
			if total+w > 5000 {
				continue
			}
			total += w
			kept = append(kept, float64(w))
		}
		if len(kept) > 0 {
			out = append(out, plannedBatch(int64(i+1), kept...))
		}
	}
	return out
}

func memberSet(batches []services.PlannedBatch) map[kernel.UUID]string {
	set := make(map[kernel.UUID]string)
	for _, b := range batches {
		for _, m := range b.Members {
			set[m.OrderID] = m.Weight.String()
		}
	}
	return set
}

func batchesGen() gopter.Gen {
	return gen.SliceOfN(6, gen.SliceOfN(4, gen.IntRange(1, 2500)))
}

func TestPlanCompactionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	planner := services.NewConsolidationPlanner()

	properties.Property("orders and weights are conserved", prop.ForAll(
		func(raw [][]int) bool {
			batches := buildBatches(raw)
			result := applyPlan(batches, planner.PlanCompaction(batches))

			before, after := memberSet(batches), memberSet(result)
			if len(before) != len(after) {
				return false
			}
			for id, w := range before {
				if after[id] != w {
					return false
				}
			}
			return true
		},
		batchesGen(),
	))

	properties.Property("no batch exceeds capacity", prop.ForAll(
		func(raw [][]int) bool {
			batches := buildBatches(raw)
			for _, b := range applyPlan(batches, planner.PlanCompaction(batches)) {
				if b.Total().GreaterThan(b.MaxCapacity) {
					return false
				}
			}
			return true
		},
		batchesGen(),
	))

	properties.Property("no two remaining batches can be merged", prop.ForAll(
		func(raw [][]int) bool {
			batches := buildBatches(raw)
			result := applyPlan(batches, planner.PlanCompaction(batches))
			for i := range result {
				for j := i + 1; j < len(result); j++ {
					if !result[i].Total().Add(result[j].Total()).GreaterThan(capacity) {
						return false
					}
				}
			}
			return true
		},
		batchesGen(),
	))

	properties.Property("batch count never grows and replanning is a no-op", prop.ForAll(
		func(raw [][]int) bool {
			batches := buildBatches(raw)
			result := applyPlan(batches, planner.PlanCompaction(batches))
			return len(result) <= len(batches) && planner.PlanCompaction(result).IsEmpty()
		},
		batchesGen(),
	))

	properties.TestingRun(t)
}

func TestPlanSplitProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	planner := services.NewConsolidationPlanner()

	properties.Property("split restores capacity and keeps every order", prop.ForAll(
		func(weights []int) bool {
			fs := make([]float64, len(weights))
			for i, w := range weights {
				fs[i] = float64(w)
			}
			b := plannedBatch(1, fs...)
			groups := planner.PlanSplit(b, capacity)

			peeled := make(map[kernel.UUID]bool)
			for _, g := range groups {
				if g.Weight.GreaterThan(capacity) {
					return false
				}
				for _, id := range g.OrderIDs {
					peeled[id] = true
				}
			}
			remaining := kernel.ZeroWeight()
			for _, m := range b.Members {
				if !peeled[m.OrderID] {
					remaining = remaining.Add(m.Weight)
				}
			}
			return !remaining.GreaterThan(capacity)
		},
		gen.SliceOfN(8, gen.IntRange(1, 2500)),
	))

	properties.TestingRun(t)
}
