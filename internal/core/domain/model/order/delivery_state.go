package order

import (
	"fmt"
	"strings"

	"dispatch/internal/pkg/errs"
)

// DeliveryState mirrors the state of the order's parent batch.
//
// State transitions:
//
//	Pending ──> Assigned ──> Delivering ──> Delivered
//
// Detaching an order from a batch that has no driver yet resets it to Pending.
type DeliveryState int

const (
	DeliveryUnknown DeliveryState = iota
	DeliveryPending
	DeliveryAssigned
	DeliveryDelivering
	DeliveryDelivered
)

var deliveryStateNames = map[DeliveryState]string{
	DeliveryPending:    "pending",
	DeliveryAssigned:   "assigned",
	DeliveryDelivering: "delivering",
	DeliveryDelivered:  "delivered",
}

// ParseDeliveryState maps the persisted text form back to a DeliveryState.
func ParseDeliveryState(s string) (DeliveryState, error) {
	for state, name := range deliveryStateNames {
		if strings.EqualFold(name, s) {
			return state, nil
		}
	}
	return DeliveryUnknown, errs.NewValueIsInvalidErrorWithCause("delivery state", fmt.Errorf("%q is not a valid delivery state", s))
}

func (s DeliveryState) Validate() error {
	if _, ok := deliveryStateNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("delivery state", fmt.Errorf("%d is not a valid delivery state", s))
	}
	return nil
}

func (s DeliveryState) String() string {
	if name, ok := deliveryStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// next returns the only state reachable from s, or DeliveryUnknown for the
// terminal state.
func (s DeliveryState) next() DeliveryState {
	switch s { //nolint:exhaustive // terminal and unknown states have no successor
	case DeliveryPending:
		return DeliveryAssigned
	case DeliveryAssigned:
		return DeliveryDelivering
	case DeliveryDelivering:
		return DeliveryDelivered
	default:
		return DeliveryUnknown
	}
}

// Advance moves s one step towards target. Skipping a state is refused.
func (s DeliveryState) Advance(target DeliveryState) (DeliveryState, error) {
	if s.next() != target || target == DeliveryUnknown {
		return DeliveryUnknown, errs.NewValueIsInvalidErrorWithCause(
			"delivery state", fmt.Errorf("cannot move from %s to %s", s, target))
	}
	return target, nil
}
