package order

// Status represents the fulfillment status of an order.
// The status strings are part of the external API contract and must not change.
type Status string

const (
	StatusPendingPayment  Status = "pending_payment"
	StatusPaymentFailed   Status = "payment_failed"
	StatusConfirmed       Status = "confirmed"
	StatusPreparing       Status = "preparing"
	StatusQualityCheck    Status = "quality_check"
	StatusPacked          Status = "packed"
	StatusShipped         Status = "shipped"
	StatusOutForDelivery  Status = "out_for_delivery"
	StatusDelivered       Status = "delivered"
	StatusReturnRequested Status = "return_requested"
	StatusReturnApproved  Status = "return_approved"
	StatusPickupScheduled Status = "pickup_scheduled"
	StatusPickedUp        Status = "picked_up"
	StatusReturnProcessed Status = "return_processed"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusRefunded        Status = "refunded"
)

// validTransitions is the single source of truth for the order lifecycle.
// An absent key or target means the transition is forbidden.
var validTransitions = map[Status][]Status{
	StatusPendingPayment:  {StatusConfirmed, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed:   {StatusPendingPayment, StatusCancelled},
	StatusConfirmed:       {StatusPreparing, StatusCancelled},
	StatusPreparing:       {StatusQualityCheck, StatusPacked, StatusCancelled},
	StatusQualityCheck:    {StatusPacked, StatusPreparing, StatusCancelled},
	StatusPacked:          {StatusShipped, StatusPreparing},
	StatusShipped:         {StatusOutForDelivery, StatusDelivered},
	StatusOutForDelivery:  {StatusDelivered, StatusReturnRequested},
	StatusDelivered:       {StatusReturnRequested, StatusCompleted},
	StatusReturnRequested: {StatusReturnApproved, StatusDelivered},
	StatusReturnApproved:  {StatusPickupScheduled},
	StatusPickupScheduled: {StatusPickedUp},
	StatusPickedUp:        {StatusReturnProcessed},
	StatusReturnProcessed: {StatusRefunded},
	StatusCompleted:       {},
	StatusCancelled:       {},
	StatusRefunded:        {},
}

// AllStatuses returns every valid order status
func AllStatuses() []Status {
	statuses := make([]Status, 0, len(validTransitions))
	for s := range validTransitions {
		statuses = append(statuses, s)
	}
	return statuses
}

// IsValid checks if the status is a known order status
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status has no outgoing transitions
func (s Status) IsTerminal() bool {
	targets, ok := validTransitions[s]
	return ok && len(targets) == 0
}

// progressPath is the happy-path sequence used for the progress indicator
var progressPath = []Status{
	StatusPendingPayment,
	StatusConfirmed,
	StatusPreparing,
	StatusQualityCheck,
	StatusPacked,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCompleted,
}

// Progress describes how far along the happy path an order is
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ProgressOf returns the happy-path progress for a status.
// Statuses off the happy path (returns, failures) report the position 0.
func ProgressOf(s Status) Progress {
	idx := 0
	for i, step := range progressPath {
		if step == s {
			idx = i
			break
		}
	}
	total := len(progressPath)
	return Progress{
		Current:    idx,
		Total:      total,
		Percentage: float64(idx) / float64(total-1) * 100,
	}
}
