package batch

import (
	"fmt"
	"strings"

	"dispatch/internal/pkg/errs"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusReadyForDelivery
	StatusAssigned
	StatusDelivering
	StatusDelivered
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusPending:          "pending",
	StatusReadyForDelivery: "ready_for_delivery",
	StatusAssigned:         "assigned",
	StatusDelivering:       "delivering",
	StatusDelivered:        "delivered",
	StatusCancelled:        "cancelled",
}

// ParseStatus maps the persisted and API text form back to a Status.
func ParseStatus(s string) (Status, error) {
	for status, name := range statusNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return status, nil
		}
	}
	return StatusUnknown, errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%q is not a valid batch status", s))
}

func (s Status) Validate() error {
	if _, ok := statusNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%d is not a valid batch status", s))
	}
	return nil
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsPreDriver is true while membership may still change.
func (s Status) IsPreDriver() bool {
	return s == StatusPending || s == StatusReadyForDelivery
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// HasDriver is true for every status at or after assigned, except cancelled.
func (s Status) HasDriver() bool {
	return s == StatusAssigned || s == StatusDelivering || s == StatusDelivered
}

// transitions lists the only legal successor states of each status.
var transitions = map[Status][]Status{
	StatusPending:          {StatusReadyForDelivery, StatusCancelled},
	StatusReadyForDelivery: {StatusAssigned},
	StatusAssigned:         {StatusDelivering},
	StatusDelivering:       {StatusDelivered},
}

// CanTransitionTo reports whether target directly follows s.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// TransitionTo returns target when the move is legal.
func (s Status) TransitionTo(target Status) (Status, error) {
	if !s.CanTransitionTo(target) {
		return StatusUnknown, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, target)
	}
	return target, nil
}
