package stripe

import (
	"encoding/json"
	"fmt"

	"imagecraft-app/internal/billing"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

// ParseWebhook verifies the Stripe-Signature header and maps the event onto
// the billing event set. An authenticated event whose object cannot be
// decoded comes back as Unhandled and is acknowledged.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (billing.Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrSignatureInvalid, err)
	}

	meta := billing.EventMeta{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return billing.Unhandled{EventMeta: meta}, nil
	}

	switch meta.Type {
	case "invoice.paid", "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return g.undecodable(meta, err), nil
		}
		ev := billing.PaymentCompleted{EventMeta: meta, InvoiceID: inv.ID}
		if inv.Subscription != nil {
			ev.SubscriptionID = inv.Subscription.ID
		}
		if inv.Customer != nil {
			ev.CustomerID = inv.Customer.ID
		}
		return ev, nil

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return g.undecodable(meta, err), nil
		}
		return billing.SubscriptionUpdated{
			EventMeta:      meta,
			SubscriptionID: sub.ID,
			Status:         NormalizeStatus(sub.Status),
			PeriodStart:    unixUTC(sub.CurrentPeriodStart),
			PeriodEnd:      unixUTC(sub.CurrentPeriodEnd),
		}, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return g.undecodable(meta, err), nil
		}
		return billing.SubscriptionCanceled{EventMeta: meta, SubscriptionID: sub.ID}, nil

	default:
		return billing.Unhandled{EventMeta: meta}, nil
	}
}

func (g *Gateway) undecodable(meta billing.EventMeta, err error) billing.Event {
	g.log.Warn().Err(err).Str("event_id", meta.ID).Str("event_type", meta.Type).Msg("undecodable webhook object, acknowledging")
	return billing.Unhandled{EventMeta: meta}
}
