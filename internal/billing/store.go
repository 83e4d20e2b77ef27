package billing

import (
	"context"
	"time"

	"imagecraft-app/internal/domain/plans"
	"imagecraft-app/internal/domain/subscriptions"
	"imagecraft-app/internal/domain/users"
)

// CreditStore holds user balances.
type CreditStore interface {
	GetUser(ctx context.Context, userID string) (*users.User, error)

	// SetStripeCustomerID stores customerID unless the user already has one,
	// and returns whichever id is stored afterwards.
	SetStripeCustomerID(ctx context.Context, userID, customerID string) (string, error)

	// AddCredits and DeductCredits return the new balance. DeductCredits
	// clamps at zero.
	AddCredits(ctx context.Context, userID string, n int) (int, error)
	DeductCredits(ctx context.Context, userID string, n int) (int, error)
}

// SubscriptionStore holds subscription rows keyed by the gateway's
// subscription id, which is unique.
type SubscriptionStore interface {
	FindSubscription(ctx context.Context, stripeSubscriptionID string) (*subscriptions.Subscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]subscriptions.Subscription, error)
	ListActiveSubscriptions(ctx context.Context, userID string) ([]subscriptions.Subscription, error)

	// InsertSubscription returns ErrDuplicateSubscription when a row with
	// the same gateway id exists. It must not abort an enclosing transaction.
	InsertSubscription(ctx context.Context, sub *subscriptions.Subscription) error

	// UpdateSubscription applies the non-nil fields. A canceled row only
	// accepts another cancellation; anything else yields ErrTerminalStatus.
	UpdateSubscription(ctx context.Context, stripeSubscriptionID string, change SubscriptionChange) error

	// ClaimCreditPeriod advances credited_period_start to periodStart if it is
	// newer and reports whether this call won the claim.
	ClaimCreditPeriod(ctx context.Context, stripeSubscriptionID string, periodStart time.Time) (bool, error)
}

// Store is the datastore the reconciliation core runs against.
type Store interface {
	CreditStore
	SubscriptionStore

	// InTx runs fn against a transactional view of the store. A non-nil
	// error from fn rolls everything back.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type SubscriptionChange struct {
	Status        *subscriptions.Status
	PlanType      *plans.PlanType
	BillingPeriod *plans.BillingPeriod
	PeriodStart   *time.Time
	PeriodEnd     *time.Time
}

func (c SubscriptionChange) IsEmpty() bool {
	return c.Status == nil && c.PlanType == nil && c.BillingPeriod == nil &&
		c.PeriodStart == nil && c.PeriodEnd == nil
}
