package users

import "time"

// User mirrors the identity provider's account. ID is the provider's subject,
// never generated locally.
type User struct {
	ID               string  `gorm:"primaryKey;type:varchar(128)"`
	Email            string  `gorm:"not null;index:idx_users_email"`
	StripeCustomerID *string `gorm:"column:stripe_customer_id;uniqueIndex:idx_users_stripe_customer_id"`
	Credits          int     `gorm:"not null;default:0;check:chk_users_credits_non_negative,credits >= 0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) HasStripeCustomer() bool {
	return u.StripeCustomerID != nil && *u.StripeCustomerID != ""
}
