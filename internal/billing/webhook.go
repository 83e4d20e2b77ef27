package billing

import (
	"context"
	"errors"

	"imagecraft-app/internal/domain/plans"
	"imagecraft-app/internal/domain/subscriptions"

	"github.com/rs/zerolog"
)

// WebhookProcessor applies authenticated gateway events. Business failures
// (unknown user, unknown plan, missing rows) are logged and swallowed so the
// gateway stops redelivering. Gateway and datastore failures are returned so
// it retries; every handler is safe to repeat.
type WebhookProcessor struct {
	catalog *plans.Catalog
	gateway Gateway
	store   Store
	ledger  *Ledger
	log     zerolog.Logger
}

func NewWebhookProcessor(catalog *plans.Catalog, gateway Gateway, store Store, ledger *Ledger, log zerolog.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		catalog: catalog,
		gateway: gateway,
		store:   store,
		ledger:  ledger,
		log:     log.With().Str("component", "webhook").Logger(),
	}
}

// Process authenticates and applies one delivery. It returns the parsed
// event even when handling fails.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) (Event, error) {
	ev, err := p.gateway.ParseWebhook(payload, signature)
	if err != nil {
		p.log.Warn().Err(err).Msg("rejected webhook delivery")
		return nil, err
	}

	log := p.log.With().Str("event_id", ev.Meta().ID).Str("event_type", ev.Meta().Type).Logger()
	ctx = log.WithContext(ctx)

	switch e := ev.(type) {
	case PaymentCompleted:
		err = p.paymentCompleted(ctx, e)
	case SubscriptionUpdated:
		err = p.subscriptionUpdated(ctx, e)
	case SubscriptionCanceled:
		err = p.subscriptionCanceled(ctx, e)
	case Unhandled:
		log.Debug().Msg("event ignored")
	}
	if err != nil {
		log.Error().Err(err).Msg("webhook processing failed")
		return ev, err
	}
	return ev, nil
}

func (p *WebhookProcessor) paymentCompleted(ctx context.Context, e PaymentCompleted) error {
	log := zerolog.Ctx(ctx).With().Str("subscription_id", e.SubscriptionID).Logger()
	if e.SubscriptionID == "" {
		log.Info().Str("invoice_id", e.InvoiceID).Msg("invoice without subscription, skipping")
		return nil
	}

	remote, err := p.gateway.GetSubscription(ctx, e.SubscriptionID)
	if errors.Is(err, ErrGatewayNotFound) {
		log.Warn().Msg("subscription not found at gateway, skipping")
		return nil
	}
	if err != nil {
		return gatewayErr("retrieve subscription", err)
	}
	if remote.CustomerID == "" {
		remote.CustomerID = e.CustomerID
	}

	var customerMeta map[string]string
	if remote.CustomerID != "" {
		cus, err := p.gateway.GetCustomer(ctx, remote.CustomerID)
		switch {
		case err == nil:
			customerMeta = cus.Metadata
		case !errors.Is(err, ErrGatewayNotFound):
			return gatewayErr("retrieve customer", err)
		}
	}

	userID := firstNonEmpty(customerMeta[MetaUserID], remote.Metadata[MetaUserID])
	if userID == "" {
		log.Warn().Str("customer_id", remote.CustomerID).Msg("no user_id on customer or subscription, skipping")
		return nil
	}
	log = log.With().Str("user_id", userID).Logger()

	entry, period, err := resolvePlanByPrice(p.catalog, remote.PriceID, remote.Metadata)
	if err != nil {
		log.Warn().Str("price_id", remote.PriceID).Msg("unable to determine plan, skipping")
		return nil
	}
	g := grant{UserID: userID, Remote: remote, Entry: entry, Period: period}

	_, err = p.store.FindSubscription(ctx, remote.ID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		_, credits, err := grantInitial(ctx, p.store, p.ledger, g)
		if errors.Is(err, ErrUserNotFound) {
			log.Warn().Msg("user does not exist, skipping")
			return nil
		}
		if err != nil {
			return persistenceErr("record subscription", err)
		}
		if credits > 0 {
			log.Info().Int("credits_added", credits).Msg("subscription recorded from webhook")
			return nil
		}
		// Lost the insert race; refresh the winner's row like any redelivery.
	case err != nil:
		return persistenceErr("find subscription", err)
	}

	credits, err := applyRenewal(ctx, p.store, p.ledger, g)
	switch {
	case errors.Is(err, ErrTerminalStatus):
		log.Warn().Msg("payment for canceled subscription, ignoring")
		return nil
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrSubscriptionNotFound):
		log.Warn().Err(err).Msg("renewal skipped")
		return nil
	case err != nil:
		return persistenceErr("apply renewal", err)
	}
	if credits > 0 {
		log.Info().Int("credits_added", credits).Time("period_start", remote.CurrentPeriodStart).Msg("renewal credited")
	} else {
		log.Debug().Msg("period already credited")
	}
	return nil
}

func (p *WebhookProcessor) subscriptionUpdated(ctx context.Context, e SubscriptionUpdated) error {
	change := SubscriptionChange{}
	if e.Status != "" {
		change.Status = &e.Status
	}
	if !e.PeriodStart.IsZero() {
		change.PeriodStart = &e.PeriodStart
	}
	if !e.PeriodEnd.IsZero() {
		change.PeriodEnd = &e.PeriodEnd
	}
	return p.update(ctx, e.SubscriptionID, change)
}

func (p *WebhookProcessor) subscriptionCanceled(ctx context.Context, e SubscriptionCanceled) error {
	canceled := subscriptions.StatusCanceled
	return p.update(ctx, e.SubscriptionID, SubscriptionChange{Status: &canceled})
}

func (p *WebhookProcessor) update(ctx context.Context, subscriptionID string, change SubscriptionChange) error {
	log := zerolog.Ctx(ctx).With().Str("subscription_id", subscriptionID).Logger()
	if subscriptionID == "" || change.IsEmpty() {
		log.Debug().Msg("nothing to update")
		return nil
	}

	if change.Status != nil {
		if cur, err := p.store.FindSubscription(ctx, subscriptionID); err == nil &&
			!subscriptions.Expected(cur.Status, *change.Status) {
			log.Warn().Str("from", string(cur.Status)).Str("to", string(*change.Status)).Msg("unexpected status transition")
		}
	}

	err := p.store.UpdateSubscription(ctx, subscriptionID, change)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		log.Info().Msg("subscription not recorded yet, skipping")
		return nil
	case errors.Is(err, ErrTerminalStatus):
		log.Warn().Msg("subscription already canceled, ignoring update")
		return nil
	case err != nil:
		return persistenceErr("update subscription", err)
	}
	log.Info().Msg("subscription updated")
	return nil
}
