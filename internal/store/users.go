package store

import (
	"context"
	"errors"
	"fmt"

	"imagecraft-app/internal/billing"
	"imagecraft-app/internal/domain/users"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCustomerLinked = errors.New("billing customer already linked to another user")

func (s *Store) GetUser(ctx context.Context, userID string) (*users.User, error) {
	var u users.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureUser creates the local user on first sight of an identity, seeded
// with the sign-up credits. Existing users are returned unchanged.
func (s *Store) EnsureUser(ctx context.Context, id, email string, credits int) (*users.User, error) {
	u := users.User{ID: id, Email: email, Credits: credits}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&u).Error; err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *Store) SetStripeCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	err := s.db.WithContext(ctx).
		Model(&users.User{}).
		Where("id = ? AND (stripe_customer_id IS NULL OR stripe_customer_id = '')", userID).
		Update("stripe_customer_id", customerID).Error
	if isUniqueViolation(err) {
		return "", fmt.Errorf("%w: %s", ErrCustomerLinked, customerID)
	}
	if err != nil {
		return "", err
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if !u.HasStripeCustomer() {
		return "", fmt.Errorf("customer id for user %s was not stored", userID)
	}
	return *u.StripeCustomerID, nil
}

func (s *Store) AddCredits(ctx context.Context, userID string, n int) (int, error) {
	return s.adjustCredits(ctx, userID, gorm.Expr("credits + ?", n))
}

func (s *Store) DeductCredits(ctx context.Context, userID string, n int) (int, error) {
	return s.adjustCredits(ctx, userID, gorm.Expr("CASE WHEN credits > ? THEN credits - ? ELSE 0 END", n, n))
}

func (s *Store) adjustCredits(ctx context.Context, userID string, expr clause.Expr) (int, error) {
	res := s.db.WithContext(ctx).
		Model(&users.User{}).
		Where("id = ?", userID).
		Update("credits", expr)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, billing.ErrUserNotFound
	}
	var u users.User
	if err := s.db.WithContext(ctx).
		Select("credits").
		Where("id = ?", userID).
		First(&u).Error; err != nil {
		return 0, err
	}
	return u.Credits, nil
}
