package domain

import "time"

const (
	EventPaymentCreated  = "PaymentCreated"
	EventPaymentPaid     = "PaymentPaid"
	EventPaymentCanceled = "PaymentCanceled"
)

// PaymentEvent is the payload published on every lifecycle change.
// It never carries the public id.
type PaymentEvent struct {
	PaymentID       string    `json:"paymentId"`
	MerchantOrderID string    `json:"merchantOrderId"`
	Amount          int64     `json:"amount"`
	Currency        Currency  `json:"currency"`
	Status          Status    `json:"status"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// EventFor returns the event type and payload describing p's current state.
func EventFor(p Payment) (string, PaymentEvent) {
	eventType := EventPaymentCreated
	switch p.Status {
	case StatusPaid:
		eventType = EventPaymentPaid
	case StatusCanceled:
		eventType = EventPaymentCanceled
	}
	return eventType, PaymentEvent{
		PaymentID:       p.ID,
		MerchantOrderID: p.MerchantOrderID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Status:          p.Status,
		OccurredAt:      p.UpdatedAt,
	}
}
