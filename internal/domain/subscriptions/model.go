package subscriptions

import (
	"time"

	"imagecraft-app/internal/domain/plans"
	"imagecraft-app/internal/domain/users"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscription is one gateway subscription as last observed. Rows are never
// deleted; cancellation is a status.
type Subscription struct {
	ID     string      `gorm:"primaryKey;type:varchar(36)"`
	UserID string      `gorm:"not null;index:idx_subscriptions_user_status,priority:1"`
	User   *users.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	StripeSubscriptionID string `gorm:"column:stripe_subscription_id;not null;uniqueIndex:idx_subscriptions_stripe_subscription_id"`
	StripeCustomerID     string `gorm:"column:stripe_customer_id"`

	PlanType      plans.PlanType      `gorm:"type:varchar(20);not null"`
	BillingPeriod plans.BillingPeriod `gorm:"type:varchar(20);not null"`
	Status        Status              `gorm:"type:varchar(20);not null;index:idx_subscriptions_user_status,priority:2"`

	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time

	// Start of the latest billing period whose credits were granted.
	CreditedPeriodStart *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *Subscription) Matches(plan plans.PlanType, period plans.BillingPeriod) bool {
	return s.PlanType == plan && s.BillingPeriod == period
}
