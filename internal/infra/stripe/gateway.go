package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"imagecraft-app/internal/billing"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

var _ billing.Gateway = (*Gateway)(nil)

type Config struct {
	SecretKey     string
	WebhookSecret string
	// Backends overrides the API endpoint; nil uses api.stripe.com.
	Backends *stripe.Backends
}

// Gateway implements billing.Gateway on the Stripe API.
type Gateway struct {
	sc            *client.API
	webhookSecret string
	log           zerolog.Logger
}

func NewGateway(cfg Config, log zerolog.Logger) (*Gateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY not configured")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET not configured")
	}
	return &Gateway{
		sc:            client.New(cfg.SecretKey, cfg.Backends),
		webhookSecret: cfg.WebhookSecret,
		log:           log.With().Str("component", "stripe").Logger(),
	}, nil
}

func (g *Gateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*billing.Customer, error) {
	c, err := g.sc.Customers.New(&stripe.CustomerParams{
		Params:   stripe.Params{Context: ctx},
		Email:    stripe.String(email),
		Metadata: metadata,
	})
	if err != nil {
		return nil, translate(err)
	}
	g.log.Info().Str("customer_id", c.ID).Msg("customer created")
	return toCustomer(c), nil
}

func (g *Gateway) GetCustomer(ctx context.Context, id string) (*billing.Customer, error) {
	c, err := g.sc.Customers.Get(id, &stripe.CustomerParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, translate(err)
	}
	if c.Deleted {
		return nil, fmt.Errorf("%w: customer %s deleted", billing.ErrGatewayNotFound, id)
	}
	return toCustomer(c), nil
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (*billing.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.ClientReferenceID),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		Metadata: p.Metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: p.Metadata,
		},
	}
	s, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, translate(err)
	}
	return toCheckoutSession(s), nil
}

func (g *Gateway) GetCheckoutSession(ctx context.Context, id string) (*billing.CheckoutSession, error) {
	s, err := g.sc.CheckoutSessions.Get(id, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, translate(err)
	}
	return toCheckoutSession(s), nil
}

func (g *Gateway) GetSubscription(ctx context.Context, id string) (*billing.RemoteSubscription, error) {
	s, err := g.sc.Subscriptions.Get(id, &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, translate(err)
	}
	return toRemoteSubscription(s), nil
}

func (g *Gateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	s, err := g.sc.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", translate(err)
	}
	return s.URL, nil
}

func translate(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) &&
		(se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing) {
		return fmt.Errorf("%w: %s", billing.ErrGatewayNotFound, se.Msg)
	}
	return err
}

func toCustomer(c *stripe.Customer) *billing.Customer {
	return &billing.Customer{ID: c.ID, Email: c.Email, Metadata: c.Metadata}
}

func toCheckoutSession(s *stripe.CheckoutSession) *billing.CheckoutSession {
	out := &billing.CheckoutSession{
		ID:       s.ID,
		URL:      s.URL,
		Paid:     s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: s.Metadata,
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out
}

func toRemoteSubscription(s *stripe.Subscription) *billing.RemoteSubscription {
	out := &billing.RemoteSubscription{
		ID:       s.ID,
		Status:   NormalizeStatus(s.Status),
		Metadata: s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		out.PriceID = s.Items.Data[0].Price.ID
	}
	out.CurrentPeriodStart = unixUTC(s.CurrentPeriodStart)
	out.CurrentPeriodEnd = unixUTC(s.CurrentPeriodEnd)
	return out
}

func unixUTC(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
