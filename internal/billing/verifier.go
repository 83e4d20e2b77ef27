package billing

import (
	"context"
	"errors"
	"strings"

	"imagecraft-app/internal/domain/plans"
	"imagecraft-app/internal/domain/subscriptions"

	"github.com/rs/zerolog"
)

type VerifyResult struct {
	CreditsAdded int
	PlanType     plans.PlanType
	Subscription *subscriptions.Subscription
	// AlreadyProcessed is set when the subscription had been recorded before
	// this call, by an earlier verification or by a webhook.
	AlreadyProcessed bool
}

// Verifier reconciles a completed checkout session on the buyer's return.
// Calling it any number of times for the same session grants credits once.
type Verifier struct {
	catalog *plans.Catalog
	gateway Gateway
	store   Store
	ledger  *Ledger
	log     zerolog.Logger
}

func NewVerifier(catalog *plans.Catalog, gateway Gateway, store Store, ledger *Ledger, log zerolog.Logger) *Verifier {
	return &Verifier{
		catalog: catalog,
		gateway: gateway,
		store:   store,
		ledger:  ledger,
		log:     log.With().Str("component", "verifier").Logger(),
	}
}

func (v *Verifier) Verify(ctx context.Context, sessionID string) (*VerifyResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	sess, err := v.gateway.GetCheckoutSession(ctx, sessionID)
	if errors.Is(err, ErrGatewayNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, gatewayErr("retrieve checkout session", err)
	}
	if !sess.Paid {
		return nil, ErrSessionInvalid
	}
	if sess.SubscriptionID == "" {
		return nil, ErrNoSubscription
	}

	remote, err := v.gateway.GetSubscription(ctx, sess.SubscriptionID)
	if errors.Is(err, ErrGatewayNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, gatewayErr("retrieve subscription", err)
	}

	customerID := remote.CustomerID
	if customerID == "" {
		customerID = sess.CustomerID
	}
	var customerMeta map[string]string
	if customerID != "" {
		cus, err := v.gateway.GetCustomer(ctx, customerID)
		switch {
		case err == nil:
			customerMeta = cus.Metadata
		case !errors.Is(err, ErrGatewayNotFound):
			return nil, gatewayErr("retrieve customer", err)
		}
	}

	userID := firstNonEmpty(sess.Metadata[MetaUserID], customerMeta[MetaUserID])
	if userID == "" {
		return nil, ErrUserUnresolvable
	}

	entry, period, err := resolvePlan(v.catalog, sess.Metadata, remote.PriceID)
	if err != nil {
		return nil, err
	}

	existing, err := v.store.FindSubscription(ctx, remote.ID)
	switch {
	case err == nil:
		v.log.Info().Str("session_id", sessionID).Str("subscription_id", remote.ID).Msg("subscription already recorded")
		return &VerifyResult{PlanType: existing.PlanType, Subscription: existing, AlreadyProcessed: true}, nil
	case !errors.Is(err, ErrSubscriptionNotFound):
		return nil, persistenceErr("find subscription", err)
	}

	if remote.CustomerID == "" {
		remote.CustomerID = customerID
	}
	row, credits, err := grantInitial(ctx, v.store, v.ledger, grant{
		UserID: userID,
		Remote: remote,
		Entry:  entry,
		Period: period,
	})
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUserUnresolvable
	}
	if err != nil {
		return nil, persistenceErr("record subscription", err)
	}

	v.log.Info().
		Str("session_id", sessionID).
		Str("subscription_id", remote.ID).
		Str("user_id", userID).
		Int("credits_added", credits).
		Msg("payment verified")

	return &VerifyResult{
		CreditsAdded:     credits,
		PlanType:         row.PlanType,
		Subscription:     row,
		AlreadyProcessed: credits == 0,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
