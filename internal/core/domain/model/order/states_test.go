package order_test

import (
	"testing"

	"dispatch/internal/core/domain/model/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalState(t *testing.T) {
	tests := []struct {
		from      order.ApprovalState
		approveOK bool
		rejectOK  bool
	}{
		{order.ApprovalPending, true, true},
		{order.ApprovalApproved, false, true},
		{order.ApprovalRejected, false, false},
		{order.ApprovalUnknown, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			_, err := tt.from.Approve()
			assert.Equal(t, tt.approveOK, err == nil)
			_, err = tt.from.Reject()
			assert.Equal(t, tt.rejectOK, err == nil)
		})
	}
}

func TestParseStates(t *testing.T) {
	a, err := order.ParseApprovalState("Approved")
	require.NoError(t, err)
	assert.Equal(t, order.ApprovalApproved, a)

	d, err := order.ParseDeliveryState("delivering")
	require.NoError(t, err)
	assert.Equal(t, order.DeliveryDelivering, d)

	_, err = order.ParseApprovalState("maybe")
	require.Error(t, err)
	_, err = order.ParseDeliveryState("lost")
	require.Error(t, err)

	assert.Equal(t, "unknown", order.DeliveryState(42).String())
	require.Error(t, order.DeliveryState(42).Validate())
}

func TestDeliveryState_Advance(t *testing.T) {
	next, err := order.DeliveryPending.Advance(order.DeliveryAssigned)
	require.NoError(t, err)
	assert.Equal(t, order.DeliveryAssigned, next)

	_, err = order.DeliveryPending.Advance(order.DeliveryDelivering)
	require.Error(t, err)

	_, err = order.DeliveryDelivered.Advance(order.DeliveryUnknown)
	require.Error(t, err)
}
