package queries

import (
	"errors"
	"strings"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

var ErrListBatchesQueryIsNotConstructed = errors.New(
	"ListBatchesQuery must be created via NewListBatchesQuery constructor",
)

// ListBatchesQuery lists batches, newest first, optionally filtered by zone
// and status. An empty filter matches everything.
type ListBatchesQuery struct { //nolint:recvcheck //using for validation
	zone   string
	status *batch.Status
	limit  int

	guard guard.ConstructorGuard
}

// NewListBatchesQuery parses the status filter and clamps limit. A limit of 0
// means DefaultListLimit.
func NewListBatchesQuery(zone, status string, limit int) (ListBatchesQuery, error) {
	q := ListBatchesQuery{
		zone:  strings.TrimSpace(zone),
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(q.setStatus(status), q.setLimit(limit)); err != nil {
		return ListBatchesQuery{}, err
	}

	return q, nil
}

func (q ListBatchesQuery) Validate() error {
	return q.guard.Validate(ErrListBatchesQueryIsNotConstructed)
}

func (q ListBatchesQuery) Zone() string { return q.zone }

// Status returns the status filter and whether one is set.
func (q ListBatchesQuery) Status() (batch.Status, bool) {
	if q.status == nil {
		return batch.StatusUnknown, false
	}
	return *q.status, true
}

func (q ListBatchesQuery) Limit() int { return q.limit }

func (q *ListBatchesQuery) setStatus(status string) error {
	if strings.TrimSpace(status) == "" {
		return nil
	}
	parsed, err := batch.ParseStatus(status)
	if err != nil {
		return err
	}
	q.status = &parsed
	return nil
}

func (q *ListBatchesQuery) setLimit(limit int) error {
	switch {
	case limit < 0 || limit > MaxListLimit:
		return errs.NewValueIsOutOfRangeError("limit", limit, 0, MaxListLimit)
	case limit == 0:
		q.limit = DefaultListLimit
	default:
		q.limit = limit
	}
	return nil
}
