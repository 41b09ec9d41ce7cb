package kernel

import (
	"fmt"

	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"

	"github.com/shopspring/decimal"
)

// WeightPrecision is the number of decimal places kept by Weight. Every
// arithmetic result is rounded to it so that sums computed in Go and in
// PostgreSQL numeric columns agree.
const WeightPrecision int32 = 3

// ErrWeightIsNotConstructed is returned by Validate for a zero-value Weight.
var ErrWeightIsNotConstructed = errs.NewValueIsRequiredError("weight must be created via NewWeight or a related constructor")

// Weight is a non-negative amount in kilograms.
//
// Batches hold running totals and capacity limits as Weight, orders hold their
// frozen shipping weight. Arithmetic never mutates the receiver.
//
//	w, _ := kernel.WeightFromString("1200.5")
//	total := w.Add(kernel.MustWeight(300))
//	fmt.Println(total) // 1500.5
type Weight struct { //nolint:recvcheck // value object
	value decimal.Decimal
	guard guard.ConstructorGuard
}

// NewWeight rounds v to WeightPrecision and rejects negative amounts.
func NewWeight(v decimal.Decimal) (Weight, error) {
	rounded := v.Round(WeightPrecision)
	if rounded.IsNegative() {
		return Weight{}, errs.NewValueIsOutOfRangeError("weight", rounded.String(), 0, "+inf")
	}
	return Weight{value: rounded, guard: guard.NewConstructorGuard()}, nil
}

// ZeroWeight is the weight of an empty batch.
func ZeroWeight() Weight {
	return Weight{value: decimal.Zero, guard: guard.NewConstructorGuard()}
}

// WeightFromString parses decimal text such as "3500" or "12.250".
func WeightFromString(s string) (Weight, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Weight{}, errs.NewValueIsInvalidErrorWithCause("weight", err)
	}
	return NewWeight(v)
}

// WeightFromFloat converts configuration values and test fixtures.
func WeightFromFloat(f float64) (Weight, error) {
	return NewWeight(decimal.NewFromFloat(f))
}

// MustWeight is WeightFromFloat for compile-time constants. It panics on a
// negative value.
func MustWeight(f float64) Weight {
	w, err := WeightFromFloat(f)
	if err != nil {
		panic(err)
	}
	return w
}

func (w Weight) Validate() error {
	return w.guard.Validate(ErrWeightIsNotConstructed)
}

// Decimal returns the underlying amount for persistence and arithmetic that
// Weight does not expose.
func (w Weight) Decimal() decimal.Decimal {
	return w.value
}

func (w Weight) String() string {
	return w.value.String()
}

func (w Weight) Add(other Weight) Weight {
	return Weight{value: w.value.Add(other.value).Round(WeightPrecision), guard: guard.NewConstructorGuard()}
}

// Sub returns w - other. It fails instead of producing a negative weight.
func (w Weight) Sub(other Weight) (Weight, error) {
	diff := w.value.Sub(other.value)
	if diff.IsNegative() {
		return Weight{}, errs.NewValueIsOutOfRangeError("weight", diff.String(), 0, w.value.String())
	}
	return NewWeight(diff)
}

// Times multiplies the weight by a line item quantity.
func (w Weight) Times(quantity int64) (Weight, error) {
	if quantity < 0 {
		return Weight{}, errs.NewValueIsInvalidErrorWithCause("quantity", fmt.Errorf("%d is negative", quantity))
	}
	return NewWeight(w.value.Mul(decimal.NewFromInt(quantity)))
}

func (w Weight) IsZero() bool {
	return w.value.IsZero()
}

func (w Weight) IsEqual(other Weight) bool {
	return w.value.Equal(other.value)
}

func (w Weight) LessThan(other Weight) bool {
	return w.value.LessThan(other.value)
}

func (w Weight) GreaterThan(other Weight) bool {
	return w.value.GreaterThan(other.value)
}

func (w Weight) GreaterThanOrEqual(other Weight) bool {
	return w.value.GreaterThanOrEqual(other.value)
}

// Fits reports whether w plus delta stays within capacity.
func (w Weight) Fits(delta, capacity Weight) bool {
	return !w.Add(delta).GreaterThan(capacity)
}

// Cmp orders weights like decimal.Decimal.Cmp.
func (w Weight) Cmp(other Weight) int {
	return w.value.Cmp(other.value)
}

// SumWeights adds all weights, returning ZeroWeight for an empty slice.
func SumWeights(weights ...Weight) Weight {
	total := ZeroWeight()
	for _, w := range weights {
		total = total.Add(w)
	}
	return total
}
