package billing

import (
	"context"
	"time"

	"imagecraft-app/internal/domain/subscriptions"
)

// Metadata keys written on checkout and read back during reconciliation.
const (
	MetaUserID        = "user_id"
	MetaPlanType      = "plan_type"
	MetaBillingPeriod = "billing_period"
)

// Gateway is the payment provider as seen by the reconciliation core.
// Implementations translate provider objects into the types below and
// return ErrGatewayNotFound for missing objects.
type Gateway interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)

	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)

	GetSubscription(ctx context.Context, id string) (*RemoteSubscription, error)

	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// ParseWebhook authenticates payload against signature. Authentication
	// failures wrap ErrSignatureInvalid.
	ParseWebhook(payload []byte, signature string) (Event, error)
}

type Customer struct {
	ID       string
	Email    string
	Metadata map[string]string
}

type CheckoutParams struct {
	CustomerID        string
	PriceID           string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

type CheckoutSession struct {
	ID             string
	URL            string
	Paid           bool
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
}

// RemoteSubscription is the gateway's view of a subscription, with status
// already normalized to the local vocabulary.
type RemoteSubscription struct {
	ID                 string
	CustomerID         string
	PriceID            string
	Status             subscriptions.Status
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	Metadata           map[string]string
}
