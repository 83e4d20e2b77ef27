package billing

import (
	"errors"
	"fmt"
	"time"

	"imagecraft-app/internal/domain/subscriptions"
)

// Taxonomy. Every error returned by this package wraps exactly one of these
// so transports can map them with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrConflict         = errors.New("conflict")
	ErrUpstreamGateway  = errors.New("payment gateway error")
	ErrPersistence      = errors.New("persistence error")
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
)

var (
	ErrInvalidPlan          = fmt.Errorf("%w: invalid plan type", ErrInvalidInput)
	ErrMissingSessionID     = fmt.Errorf("%w: session id is required", ErrInvalidInput)
	ErrSessionInvalid       = fmt.Errorf("%w: payment not completed or session invalid", ErrInvalidInput)
	ErrNoSubscription       = fmt.Errorf("%w: no subscription found in session", ErrInvalidInput)
	ErrUserUnresolvable     = fmt.Errorf("%w: no user_id found in session or customer metadata", ErrInvalidInput)
	ErrPlanUnresolvable     = fmt.Errorf("%w: unable to determine plan configuration", ErrInvalidInput)
	ErrUserNotAuthenticated = fmt.Errorf("%w: user not authenticated, please sign in again", ErrUnauthenticated)
	ErrAlreadySubscribed    = fmt.Errorf("%w: you already have an active subscription for this plan", ErrConflict)
	ErrNoCustomer           = fmt.Errorf("%w: no billing customer yet, subscribe first", ErrConflict)
)

// Returned by Store implementations.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrDuplicateSubscription = errors.New("subscription already recorded")
	ErrTerminalStatus        = errors.New("subscription is canceled")
)

// ErrGatewayNotFound is returned by Gateway implementations when the
// requested object does not exist.
var ErrGatewayNotFound = errors.New("gateway object not found")

// AlreadySubscribedError carries the conflicting subscription so the caller
// can explain why checkout was blocked.
type AlreadySubscribedError struct {
	Subscription subscriptions.Subscription
}

func (e *AlreadySubscribedError) Error() string {
	return fmt.Sprintf("%s (%s %s, renews %s)", ErrAlreadySubscribed,
		e.Subscription.PlanType, e.Subscription.BillingPeriod,
		e.Subscription.CurrentPeriodEnd.Format(time.DateOnly))
}

func (e *AlreadySubscribedError) Unwrap() error { return ErrAlreadySubscribed }

func gatewayErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstreamGateway, op, err)
}

func persistenceErr(op string, err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
