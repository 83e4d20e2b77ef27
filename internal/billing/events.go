package billing

import (
	"time"

	"imagecraft-app/internal/domain/subscriptions"
)

// Event is the closed set of webhook events the processor understands.
// Anything else arrives as Unhandled.
type Event interface {
	Meta() EventMeta
	isEvent()
}

type EventMeta struct {
	ID   string
	Type string
}

func (m EventMeta) Meta() EventMeta { return m }

// PaymentCompleted is an invoice payment for a subscription (initial or renewal).
type PaymentCompleted struct {
	EventMeta
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
}

type SubscriptionUpdated struct {
	EventMeta
	SubscriptionID string
	Status         subscriptions.Status
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

type SubscriptionCanceled struct {
	EventMeta
	SubscriptionID string
}

type Unhandled struct {
	EventMeta
}

func (PaymentCompleted) isEvent()     {}
func (SubscriptionUpdated) isEvent()  {}
func (SubscriptionCanceled) isEvent() {}
func (Unhandled) isEvent()            {}
