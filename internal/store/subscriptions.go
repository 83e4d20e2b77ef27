package store

import (
	"context"
	"errors"
	"time"

	"imagecraft-app/internal/billing"
	"imagecraft-app/internal/domain/subscriptions"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) FindSubscription(ctx context.Context, stripeSubscriptionID string) (*subscriptions.Subscription, error) {
	var sub subscriptions.Subscription
	err := s.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]subscriptions.Subscription, error) {
	var out []subscriptions.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (s *Store) ListActiveSubscriptions(ctx context.Context, userID string) ([]subscriptions.Subscription, error) {
	var out []subscriptions.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, subscriptions.StatusActive).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// InsertSubscription relies on ON CONFLICT DO NOTHING rather than catching the
// unique violation, so an enclosing Postgres transaction stays usable.
func (s *Store) InsertSubscription(ctx context.Context, sub *subscriptions.Subscription) error {
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_subscription_id"}},
			DoNothing: true,
		}).
		Create(sub)
	if tx.Error != nil {
		if isUniqueViolation(tx.Error) {
			return billing.ErrDuplicateSubscription
		}
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return billing.ErrDuplicateSubscription
	}
	return nil
}

func (s *Store) UpdateSubscription(ctx context.Context, stripeSubscriptionID string, change billing.SubscriptionChange) error {
	updates := map[string]any{}
	if change.Status != nil {
		updates["status"] = *change.Status
	}
	if change.PlanType != nil {
		updates["plan_type"] = *change.PlanType
	}
	if change.BillingPeriod != nil {
		updates["billing_period"] = *change.BillingPeriod
	}
	if change.PeriodStart != nil {
		updates["current_period_start"] = *change.PeriodStart
	}
	if change.PeriodEnd != nil {
		updates["current_period_end"] = *change.PeriodEnd
	}
	if len(updates) == 0 {
		return nil
	}

	q := s.db.WithContext(ctx).
		Model(&subscriptions.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID)
	if change.Status == nil || *change.Status != subscriptions.StatusCanceled {
		q = q.Where("status <> ?", subscriptions.StatusCanceled)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	cur, err := s.FindSubscription(ctx, stripeSubscriptionID)
	if err != nil {
		return err
	}
	if cur.Status.IsTerminal() {
		return billing.ErrTerminalStatus
	}
	return nil
}

func (s *Store) ClaimCreditPeriod(ctx context.Context, stripeSubscriptionID string, periodStart time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&subscriptions.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Where("(credited_period_start IS NULL OR credited_period_start < ?)", periodStart).
		Update("credited_period_start", periodStart)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
