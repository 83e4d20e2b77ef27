package billing

import (
	"context"
	"errors"

	"imagecraft-app/internal/domain/plans"
	"imagecraft-app/internal/domain/subscriptions"
)

// grant is everything needed to record a paid subscription locally.
type grant struct {
	UserID string
	Remote *RemoteSubscription
	Entry  plans.Entry
	Period plans.BillingPeriod
}

func (g grant) row() *subscriptions.Subscription {
	start := g.Remote.CurrentPeriodStart
	return &subscriptions.Subscription{
		UserID:               g.UserID,
		StripeSubscriptionID: g.Remote.ID,
		StripeCustomerID:     g.Remote.CustomerID,
		PlanType:             g.Entry.PlanType,
		BillingPeriod:        g.Period,
		Status:               statusOrActive(g.Remote.Status),
		CurrentPeriodStart:   g.Remote.CurrentPeriodStart,
		CurrentPeriodEnd:     g.Remote.CurrentPeriodEnd,
		CreditedPeriodStart:  &start,
	}
}

// A paid session or invoice without a usable status still means the
// subscription is live.
func statusOrActive(s subscriptions.Status) subscriptions.Status {
	if s == "" {
		return subscriptions.StatusActive
	}
	return s
}

// resolvePlan prefers the plan and period written into metadata at checkout
// and falls back to the price actually attached to the subscription.
func resolvePlan(catalog *plans.Catalog, metadata map[string]string, priceID string) (plans.Entry, plans.BillingPeriod, error) {
	if e, period, ok := planFromMetadata(catalog, metadata); ok {
		return e, period, nil
	}
	if e, err := catalog.ResolveByPriceID(priceID); err == nil && e.Credits > 0 {
		return e, e.Period, nil
	}
	return plans.Entry{}, "", ErrPlanUnresolvable
}

// resolvePlanByPrice trusts the price billed on the subscription over its
// metadata, which is only written at checkout and goes stale after a plan
// change at the gateway.
func resolvePlanByPrice(catalog *plans.Catalog, priceID string, metadata map[string]string) (plans.Entry, plans.BillingPeriod, error) {
	if e, err := catalog.ResolveByPriceID(priceID); err == nil && e.Credits > 0 {
		return e, e.Period, nil
	}
	if e, period, ok := planFromMetadata(catalog, metadata); ok {
		return e, period, nil
	}
	return plans.Entry{}, "", ErrPlanUnresolvable
}

func planFromMetadata(catalog *plans.Catalog, metadata map[string]string) (plans.Entry, plans.BillingPeriod, bool) {
	pt, ok := plans.ParsePlanType(metadata[MetaPlanType])
	if !ok {
		return plans.Entry{}, "", false
	}
	period, ok := plans.ParseBillingPeriod(metadata[MetaBillingPeriod])
	if !ok {
		period = plans.Monthly
	}
	e, err := catalog.Resolve(pt, period)
	if err != nil || e.Credits <= 0 {
		return plans.Entry{}, "", false
	}
	return e, period, true
}

// grantInitial credits the plan grant and inserts the subscription row in one
// transaction. The unique gateway id decides the winner: a loser revokes its
// own grant before commit and gets the winner's row back with zero credits.
func grantInitial(ctx context.Context, st Store, ledger *Ledger, g grant) (*subscriptions.Subscription, int, error) {
	var (
		out     *subscriptions.Subscription
		credits int
	)
	err := st.InTx(ctx, func(tx Store) error {
		out, credits = nil, 0
		if _, err := ledger.Grant(ctx, tx, g.UserID, g.Entry.Credits); err != nil {
			return err
		}
		row := g.row()
		err := tx.InsertSubscription(ctx, row)
		if err == nil {
			out, credits = row, g.Entry.Credits
			return nil
		}
		if !errors.Is(err, ErrDuplicateSubscription) {
			return err
		}
		if _, err := ledger.Revoke(ctx, tx, g.UserID, g.Entry.Credits); err != nil {
			return err
		}
		winner, err := tx.FindSubscription(ctx, g.Remote.ID)
		if err != nil {
			return err
		}
		out = winner
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, credits, nil
}

// applyRenewal refreshes an existing row from the gateway and grants the plan
// again if this billing period has not been credited yet. It reports the
// credits added.
func applyRenewal(ctx context.Context, st Store, ledger *Ledger, g grant) (int, error) {
	var credits int
	err := st.InTx(ctx, func(tx Store) error {
		credits = 0
		status := statusOrActive(g.Remote.Status)
		start, end := g.Remote.CurrentPeriodStart, g.Remote.CurrentPeriodEnd
		change := SubscriptionChange{
			Status:        &status,
			PlanType:      &g.Entry.PlanType,
			BillingPeriod: &g.Period,
			PeriodStart:   &start,
			PeriodEnd:     &end,
		}
		if err := tx.UpdateSubscription(ctx, g.Remote.ID, change); err != nil {
			return err
		}
		if status.IsTerminal() {
			return nil
		}
		claimed, err := tx.ClaimCreditPeriod(ctx, g.Remote.ID, start)
		if err != nil || !claimed {
			return err
		}
		if _, err := ledger.Grant(ctx, tx, g.UserID, g.Entry.Credits); err != nil {
			return err
		}
		credits = g.Entry.Credits
		return nil
	})
	if err != nil {
		return 0, err
	}
	return credits, nil
}
