package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toybox/backend/internal/domain/shared"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("TIQ123456", uuid.New(), []NewItemInput{
		{ToyID: uuid.New(), Name: "Wooden Blocks", Quantity: 2, Points: 3, PriceAtTime: decimal.NewFromInt(499)},
		{ToyID: uuid.New(), Name: "Puzzle Cube", Quantity: 1, Points: 2, PriceAtTime: decimal.NewFromInt(299)},
	})
	require.NoError(t, err)
	return o
}

func TestNewOrder(t *testing.T) {
	o := newTestOrder(t)

	assert.Equal(t, StatusPendingPayment, o.Status)
	assert.Equal(t, "TIQ123456", o.OrderNumber)
	assert.Equal(t, 1, o.Version)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, 3, o.TotalQuantity())
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(1297)))
	assert.Equal(t, PaymentStatusPending, o.Payment.Status)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, StatusPendingPayment, o.StatusHistory[0].Status)
}

func TestNewOrder_Validation(t *testing.T) {
	userID := uuid.New()
	item := NewItemInput{ToyID: uuid.New(), Name: "Toy", Quantity: 1, PriceAtTime: decimal.NewFromInt(100)}

	tests := []struct {
		name        string
		orderNumber string
		userID      uuid.UUID
		items       []NewItemInput
		wantCode    string
	}{
		{"empty order number", "", userID, []NewItemInput{item}, "INVALID_ORDER_NUMBER"},
		{"empty user", "TIQ1", uuid.Nil, []NewItemInput{item}, "INVALID_USER"},
		{"no items", "TIQ1", userID, nil, "NO_ITEMS"},
		{"zero quantity", "TIQ1", userID, []NewItemInput{{ToyID: uuid.New(), Quantity: 0, PriceAtTime: decimal.NewFromInt(1)}}, "INVALID_QUANTITY"},
		{"nil toy", "TIQ1", userID, []NewItemInput{{Quantity: 1, PriceAtTime: decimal.NewFromInt(1)}}, "INVALID_TOY"},
		{"negative price", "TIQ1", userID, []NewItemInput{{ToyID: uuid.New(), Quantity: 1, PriceAtTime: decimal.NewFromInt(-1)}}, "INVALID_PRICE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder(tt.orderNumber, tt.userID, tt.items)
			require.Error(t, err)
			var derr *shared.DomainError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.wantCode, derr.Code)
		})
	}
}

func TestTransition_AllValidEdges(t *testing.T) {
	for from, targets := range validTransitions {
		for _, to := range targets {
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				o := newTestOrder(t)
				o.Status = from
				before := len(o.StatusHistory)

				actor := uuid.New()
				err := o.Transition(to, &actor, "test note")
				require.NoError(t, err)

				assert.Equal(t, to, o.Status)
				require.Len(t, o.StatusHistory, before+1)
				last := o.StatusHistory[len(o.StatusHistory)-1]
				assert.Equal(t, to, last.Status)
				assert.Equal(t, &actor, last.ActorID)
				assert.Equal(t, "test note", last.Notes)
			})
		}
	}
}

func TestTransition_AllInvalidEdges(t *testing.T) {
	for from := range validTransitions {
		for _, to := range AllStatuses() {
			if from.CanTransitionTo(to) {
				continue
			}
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				o := newTestOrder(t)
				o.Status = from
				before := len(o.StatusHistory)

				err := o.Transition(to, nil, "")
				require.Error(t, err)

				var derr *shared.DomainError
				require.ErrorAs(t, err, &derr)
				assert.Equal(t, "INVALID_TRANSITION", derr.Code)
				assert.Contains(t, derr.Message, string(from))
				assert.Contains(t, derr.Message, string(to))

				assert.Equal(t, from, o.Status, "status must not change on rejected transition")
				assert.Len(t, o.StatusHistory, before, "history must not grow on rejected transition")
			})
		}
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	o := newTestOrder(t)
	err := o.Transition(Status("teleported"), nil, "")
	require.Error(t, err)
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "INVALID_TRANSITION", derr.Code)
	assert.Equal(t, StatusPendingPayment, o.Status)
}

func TestTransition_Milestones(t *testing.T) {
	o := newTestOrder(t)
	path := []Status{
		StatusConfirmed, StatusPreparing, StatusQualityCheck,
		StatusPacked, StatusShipped, StatusOutForDelivery, StatusDelivered, StatusCompleted,
	}
	for _, s := range path {
		require.NoError(t, o.Transition(s, nil, ""))
	}

	assert.NotNil(t, o.Milestones.PaymentCompletedAt)
	assert.NotNil(t, o.Milestones.PreparationStartedAt)
	assert.NotNil(t, o.Milestones.QualityCheckedAt)
	assert.NotNil(t, o.Milestones.PackedAt)
	assert.NotNil(t, o.Milestones.ShippedAt)
	assert.NotNil(t, o.Milestones.DeliveredAt)
	assert.NotNil(t, o.Milestones.CompletedAt)
	assert.Nil(t, o.Milestones.CancelledAt)
	// one history record per transition plus the creation record
	assert.Len(t, o.StatusHistory, len(path)+1)
}

func TestTransition_ReturnDeadlineOnDelivery(t *testing.T) {
	o := newTestOrder(t)
	for _, s := range []Status{StatusConfirmed, StatusPreparing, StatusPacked, StatusShipped, StatusDelivered} {
		require.NoError(t, o.Transition(s, nil, ""))
	}

	require.NotNil(t, o.ReturnDeadline)
	expected := o.Milestones.DeliveredAt.AddDate(0, 0, o.ReturnWindowDays)
	assert.WithinDuration(t, expected, *o.ReturnDeadline, time.Second)

	assert.True(t, o.CanBeReturnedAt(time.Now()))
	assert.True(t, o.CanBeReturnedAt(o.ReturnDeadline.Add(-time.Hour)))
	assert.False(t, o.CanBeReturnedAt(o.ReturnDeadline.Add(time.Hour)))
}

func TestCanBeReturnedAt_NonReturnable(t *testing.T) {
	o := newTestOrder(t)
	o.IsReturnable = false
	for _, s := range []Status{StatusConfirmed, StatusPreparing, StatusPacked, StatusShipped, StatusDelivered} {
		require.NoError(t, o.Transition(s, nil, ""))
	}
	assert.Nil(t, o.ReturnDeadline)
	assert.False(t, o.CanBeReturnedAt(time.Now()))
}

func TestCanBeCancelled(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPendingPayment, true},
		{StatusConfirmed, true},
		{StatusPreparing, true},
		{StatusQualityCheck, false},
		{StatusPacked, false},
		{StatusShipped, false},
		{StatusDelivered, false},
		{StatusCompleted, false},
		{StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			o := newTestOrder(t)
			o.Status = tt.status
			assert.Equal(t, tt.want, o.CanBeCancelled())
		})
	}
}

func TestIsTerminal(t *testing.T) {
	o := newTestOrder(t)
	assert.False(t, o.IsTerminal())
	o.Status = StatusCompleted
	assert.True(t, o.IsTerminal())
	o.Status = StatusCancelled
	assert.True(t, o.IsTerminal())
	o.Status = StatusRefunded
	assert.True(t, o.IsTerminal())
}

func TestRecordPayment(t *testing.T) {
	o := newTestOrder(t)
	paidAt := time.Now()
	o.RecordPayment("razorpay", decimal.NewFromInt(1297), paidAt)

	assert.Equal(t, PaymentStatusPaid, o.Payment.Status)
	assert.Equal(t, "razorpay", o.Payment.Method)
	assert.True(t, o.Payment.PaidAmount.Equal(decimal.NewFromInt(1297)))
	require.NotNil(t, o.Payment.PaidAt)
}

func TestRecordRefund(t *testing.T) {
	o := newTestOrder(t)
	o.RecordPayment("razorpay", decimal.NewFromInt(1000), time.Now())

	o.RecordRefund(decimal.NewFromInt(400))
	assert.Equal(t, PaymentStatusPartiallyRefunded, o.Payment.Status)
	assert.True(t, o.Payment.RefundedAmount.Equal(decimal.NewFromInt(400)))

	o.RecordRefund(decimal.NewFromInt(600))
	assert.Equal(t, PaymentStatusRefunded, o.Payment.Status)
	assert.True(t, o.Payment.RefundedAmount.Equal(decimal.NewFromInt(1000)))
}

func TestProgressOf(t *testing.T) {
	assert.Equal(t, 0, ProgressOf(StatusPendingPayment).Current)
	assert.Equal(t, 8, ProgressOf(StatusCompleted).Current)
	assert.InDelta(t, 100.0, ProgressOf(StatusCompleted).Percentage, 0.01)
	// off the happy path
	assert.Equal(t, 0, ProgressOf(StatusReturnRequested).Current)
}
