package billing

import (
	"context"
	"errors"

	"imagecraft-app/internal/domain/plans"

	"github.com/rs/zerolog"
)

type CheckoutRequest struct {
	UserID   string
	PlanType string
	IsAnnual bool
}

type CheckoutResult struct {
	SessionID string
	URL       string
	PlanType  plans.PlanType
	Period    plans.BillingPeriod
}

// Checkout starts hosted checkout sessions and billing portal sessions.
type Checkout struct {
	catalog *plans.Catalog
	gateway Gateway
	store   Store
	appURL  string
	log     zerolog.Logger
}

func NewCheckout(catalog *plans.Catalog, gateway Gateway, store Store, appURL string, log zerolog.Logger) *Checkout {
	return &Checkout{
		catalog: catalog,
		gateway: gateway,
		store:   store,
		appURL:  appURL,
		log:     log.With().Str("component", "checkout").Logger(),
	}
}

// Start creates a checkout session for the requested plan. A user already
// holding an active subscription for the same plan and period gets an
// *AlreadySubscribedError and no session is created.
func (c *Checkout) Start(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.UserID == "" {
		return nil, ErrUserNotAuthenticated
	}
	pt, ok := plans.ParsePlanType(req.PlanType)
	if !ok {
		return nil, ErrInvalidPlan
	}
	period := plans.PeriodFor(req.IsAnnual)
	entry, err := c.catalog.Resolve(pt, period)
	if err != nil {
		return nil, ErrInvalidPlan
	}

	active, err := c.store.ListActiveSubscriptions(ctx, req.UserID)
	if err != nil {
		return nil, persistenceErr("list active subscriptions", err)
	}
	for _, s := range active {
		if s.Matches(pt, period) {
			return nil, &AlreadySubscribedError{Subscription: s}
		}
	}

	customerID, err := c.ensureCustomer(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	md := map[string]string{
		MetaUserID:        req.UserID,
		MetaPlanType:      string(pt),
		MetaBillingPeriod: string(period),
	}
	sess, err := c.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID:        customerID,
		PriceID:           entry.PriceID,
		ClientReferenceID: req.UserID,
		SuccessURL:        c.appURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         c.appURL + "/pricing",
		Metadata:          md,
	})
	if err != nil {
		return nil, gatewayErr("create checkout session", err)
	}

	c.log.Info().
		Str("user_id", req.UserID).
		Str("session_id", sess.ID).
		Str("plan_type", string(pt)).
		Str("billing_period", string(period)).
		Msg("checkout session created")

	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL, PlanType: pt, Period: period}, nil
}

// ensureCustomer returns the user's gateway customer, creating one if needed.
// If two requests race, the first stored id wins and the other gateway
// customer is left unused.
func (c *Checkout) ensureCustomer(ctx context.Context, userID string) (string, error) {
	u, err := c.store.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrUserNotAuthenticated
	}
	if err != nil {
		return "", persistenceErr("load user", err)
	}
	if u.HasStripeCustomer() {
		return *u.StripeCustomerID, nil
	}

	cus, err := c.gateway.CreateCustomer(ctx, u.Email, map[string]string{MetaUserID: u.ID})
	if err != nil {
		return "", gatewayErr("create customer", err)
	}
	stored, err := c.store.SetStripeCustomerID(ctx, u.ID, cus.ID)
	if err != nil {
		return "", persistenceErr("store customer id", err)
	}
	if stored != cus.ID {
		c.log.Warn().
			Str("user_id", u.ID).
			Str("kept", stored).
			Str("orphaned", cus.ID).
			Msg("concurrent customer creation, keeping stored customer")
	}
	return stored, nil
}

// PortalURL opens a gateway billing portal session for the user's customer.
func (c *Checkout) PortalURL(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrUserNotAuthenticated
	}
	u, err := c.store.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrUserNotAuthenticated
	}
	if err != nil {
		return "", persistenceErr("load user", err)
	}
	if !u.HasStripeCustomer() {
		return "", ErrNoCustomer
	}
	url, err := c.gateway.CreatePortalSession(ctx, *u.StripeCustomerID, c.appURL+"/account")
	if err != nil {
		return "", gatewayErr("create portal session", err)
	}
	return url, nil
}
