package order

import (
	"fmt"
	"strings"

	"dispatch/internal/pkg/errs"
)

// ApprovalState tracks the business decision on an order.
//
//	Pending ──> Approved ──> Rejected
//	   │                        ^
//	   └────────────────────────┘
type ApprovalState int

const (
	ApprovalUnknown ApprovalState = iota
	ApprovalPending
	ApprovalApproved
	ApprovalRejected
)

var approvalStateNames = map[ApprovalState]string{
	ApprovalPending:  "pending",
	ApprovalApproved: "approved",
	ApprovalRejected: "rejected",
}

// ParseApprovalState maps the persisted text form back to an ApprovalState.
func ParseApprovalState(s string) (ApprovalState, error) {
	for state, name := range approvalStateNames {
		if strings.EqualFold(name, s) {
			return state, nil
		}
	}
	return ApprovalUnknown, errs.NewValueIsInvalidErrorWithCause("approval state", fmt.Errorf("%q is not a valid approval state", s))
}

func (s ApprovalState) Validate() error {
	if _, ok := approvalStateNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("approval state", fmt.Errorf("%d is not a valid approval state", s))
	}
	return nil
}

func (s ApprovalState) String() string {
	if name, ok := approvalStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Approve is allowed only from Pending.
func (s ApprovalState) Approve() (ApprovalState, error) {
	if s != ApprovalPending {
		return ApprovalUnknown, errs.NewValueIsInvalidErrorWithCause(
			"approval state", fmt.Errorf("%s is not a valid state to approve", s))
	}
	return ApprovalApproved, nil
}

// Reject is allowed from Pending and Approved.
func (s ApprovalState) Reject() (ApprovalState, error) {
	if s != ApprovalPending && s != ApprovalApproved {
		return ApprovalUnknown, errs.NewValueIsInvalidErrorWithCause(
			"approval state", fmt.Errorf("%s is not a valid state to reject", s))
	}
	return ApprovalRejected, nil
}
