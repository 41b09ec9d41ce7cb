package services

import (
	"sort"
	"time"

	"dispatch/internal/core/domain/model/kernel"
)

// PlannedMember is a batch member as seen by the planner.
type PlannedMember struct {
	OrderID   kernel.UUID
	Weight    kernel.Weight
	BatchedAt time.Time
}

// PlannedBatch is a batch with its recomputed members.
type PlannedBatch struct {
	ID          kernel.UUID
	CreatedAt   time.Time
	Sequence    int64
	MaxCapacity kernel.Weight
	Members     []PlannedMember
}

// Total is the recomputed member sum.
func (b PlannedBatch) Total() kernel.Weight {
	total := kernel.ZeroWeight()
	for _, m := range b.Members {
		total = total.Add(m.Weight)
	}
	return total
}

func (b PlannedBatch) olderThan(other PlannedBatch) bool {
	if !b.CreatedAt.Equal(other.CreatedAt) {
		return b.CreatedAt.Before(other.CreatedAt)
	}
	return b.Sequence < other.Sequence
}

// Merge moves every member of Absorbed into Survivor; Absorbed is deleted.
type Merge struct {
	Survivor kernel.UUID
	Absorbed kernel.UUID
}

// Move transfers one order between two pending batches.
type Move struct {
	OrderID kernel.UUID
	From    kernel.UUID
	To      kernel.UUID
}

// CompactionPlan is the net effect of compaction. Moves holds one entry per
// order whose batch changes, from its current batch to its final one. Emptied
// holds batches that end without members and must be deleted. Merges records
// which batch absorbed which, for reporting.
type CompactionPlan struct {
	Merges  []Merge
	Moves   []Move
	Emptied []kernel.UUID
}

func (p CompactionPlan) IsEmpty() bool {
	return len(p.Moves) == 0
}

// SplitGroup is a set of peeled orders that fits one new batch.
type SplitGroup struct {
	OrderIDs []kernel.UUID
	Weight   kernel.Weight
}

// ConsolidationPlanner computes repair plans for the pending batches of a
// single zone. It never touches storage; the caller applies the plan under
// row locks.
type ConsolidationPlanner struct{}

func NewConsolidationPlanner() ConsolidationPlanner {
	return ConsolidationPlanner{}
}

// PlanCompaction repeatedly merges the pair with the lightest combined weight
// that fits the older batch, then tops up older batches with single orders
// taken from the newest ones, until neither step changes anything. The
// result is a fixpoint: planning again over the outcome yields an empty plan.
func (p ConsolidationPlanner) PlanCompaction(batches []PlannedBatch) CompactionPlan {
	work := cloneBatches(batches)
	sort.SliceStable(work, func(i, j int) bool { return work[i].olderThan(work[j]) })

	var plan CompactionPlan
	for {
		merged := p.mergePass(work, &plan)
		moved := p.topUpPass(work)
		if !merged && !moved {
			break
		}
	}

	origin := make(map[kernel.UUID]kernel.UUID)
	for _, b := range batches {
		for _, m := range b.Members {
			origin[m.OrderID] = b.ID
		}
	}
	for _, b := range work {
		for _, m := range b.Members {
			if from := origin[m.OrderID]; !from.IsEqual(b.ID) {
				plan.Moves = append(plan.Moves, Move{OrderID: m.OrderID, From: from, To: b.ID})
			}
		}
	}
	for _, b := range batches {
		if len(b.Members) > 0 && len(membersOf(work, b.ID)) == 0 {
			plan.Emptied = append(plan.Emptied, b.ID)
		}
	}
	return plan
}

// mergePass applies merges until no pair fits. An absorbed batch stays in
// work with no members.
func (p ConsolidationPlanner) mergePass(work []PlannedBatch, plan *CompactionPlan) bool {
	changed := false
	for {
		bi, bj := -1, -1
		var best kernel.Weight
		for i := 0; i < len(work); i++ {
			for j := i + 1; j < len(work); j++ {
				older, newer := work[i], work[j]
				if len(older.Members) == 0 || len(newer.Members) == 0 {
					continue
				}
				sum := older.Total().Add(newer.Total())
				if sum.GreaterThan(older.MaxCapacity) {
					continue
				}
				// ties keep the first pair found, which is the oldest
				if bi < 0 || sum.LessThan(best) {
					bi, bj, best = i, j, sum
				}
			}
		}
		if bi < 0 {
			return changed
		}

		survivor, absorbed := &work[bi], &work[bj]
		survivor.Members = append(survivor.Members, absorbed.Members...)
		absorbed.Members = nil
		plan.Merges = append(plan.Merges, Merge{Survivor: survivor.ID, Absorbed: absorbed.ID})
		changed = true
	}
}

// topUpPass moves single orders from newer batches into older ones,
// heaviest fitting order first, newest source first.
func (p ConsolidationPlanner) topUpPass(work []PlannedBatch) bool {
	changed := false
	for ti := 0; ti < len(work); ti++ {
		target := &work[ti]
		if len(target.Members) == 0 {
			continue
		}
		for si := len(work) - 1; si > ti; si-- {
			source := &work[si]
			sort.SliceStable(source.Members, func(a, b int) bool {
				return source.Members[a].Weight.GreaterThan(source.Members[b].Weight)
			})
			kept := source.Members[:0:0]
			for _, m := range source.Members {
				if target.Total().Fits(m.Weight, target.MaxCapacity) {
					target.Members = append(target.Members, m)
					changed = true
					continue
				}
				kept = append(kept, m)
			}
			source.Members = kept
		}
	}
	return changed
}

// PlanSplit peels the most recently batched members off an over-capacity
// batch until it fits again, and groups the peeled orders into new batches
// of at most maxCapacity each. It returns nil when b already fits.
func (p ConsolidationPlanner) PlanSplit(b PlannedBatch, maxCapacity kernel.Weight) []SplitGroup {
	total := b.Total()
	if !total.GreaterThan(b.MaxCapacity) {
		return nil
	}

	members := append([]PlannedMember(nil), b.Members...)
	sort.SliceStable(members, func(i, j int) bool {
		if !members[i].BatchedAt.Equal(members[j].BatchedAt) {
			return members[i].BatchedAt.After(members[j].BatchedAt)
		}
		return members[i].OrderID.String() > members[j].OrderID.String()
	})

	var peeled []PlannedMember
	for _, m := range members {
		if !total.GreaterThan(b.MaxCapacity) {
			break
		}
		total, _ = total.Sub(m.Weight)
		peeled = append(peeled, m)
	}

	var groups []SplitGroup
	for _, m := range peeled {
		placed := false
		for gi := range groups {
			if groups[gi].Weight.Fits(m.Weight, maxCapacity) {
				groups[gi].OrderIDs = append(groups[gi].OrderIDs, m.OrderID)
				groups[gi].Weight = groups[gi].Weight.Add(m.Weight)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, SplitGroup{OrderIDs: []kernel.UUID{m.OrderID}, Weight: m.Weight})
		}
	}
	return groups
}

func cloneBatches(in []PlannedBatch) []PlannedBatch {
	out := make([]PlannedBatch, len(in))
	for i, b := range in {
		out[i] = b
		out[i].Members = append([]PlannedMember(nil), b.Members...)
	}
	return out
}

func membersOf(work []PlannedBatch, id kernel.UUID) []PlannedMember {
	for _, b := range work {
		if b.ID.IsEqual(id) {
			return b.Members
		}
	}
	return nil
}
