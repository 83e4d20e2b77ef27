package stripe

import (
	"strings"

	"imagecraft-app/internal/domain/subscriptions"

	"github.com/stripe/stripe-go/v75"
)

// NormalizeStatus folds Stripe's subscription statuses into the local
// lifecycle. Unknown or empty statuses map to "" and are not applied.
func NormalizeStatus(s stripe.SubscriptionStatus) subscriptions.Status {
	switch strings.TrimSpace(string(s)) {
	case "active", "trialing":
		return subscriptions.StatusActive
	case "past_due", "unpaid", "paused":
		return subscriptions.StatusPastDue
	case "canceled", "incomplete_expired":
		return subscriptions.StatusCanceled
	case "incomplete":
		return subscriptions.StatusIncomplete
	default:
		return ""
	}
}
