package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"imagecraft-app/internal/domain/plans"
	"imagecraft-app/internal/domain/subscriptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (f *fixture) deliver(ev Event) (Event, error) {
	payload := []byte(ev.Meta().ID)
	f.gateway.On("ParseWebhook", payload, "sig").Return(ev, nil).Once()
	return f.processor().Process(context.Background(), payload, "sig")
}

func invoicePaid(eventID, subID string) PaymentCompleted {
	return PaymentCompleted{
		EventMeta:      EventMeta{ID: eventID, Type: "invoice.paid"},
		InvoiceID:      "in_" + eventID,
		SubscriptionID: subID,
		CustomerID:     "cus_1",
	}
}

func (f *fixture) expectRemote(remote *RemoteSubscription) {
	f.gateway.On("GetSubscription", mock.Anything, remote.ID).Return(remote, nil).Once()
	f.gateway.On("GetCustomer", mock.Anything, "cus_1").
		Return(&Customer{ID: "cus_1", Metadata: map[string]string{MetaUserID: "user_1"}}, nil)
}

func TestProcess_RejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("ParseWebhook", []byte("{}"), "t=1,v1=bad").
		Return(nil, fmt.Errorf("%w: no valid signature", ErrSignatureInvalid))

	ev, err := f.processor().Process(context.Background(), []byte("{}"), "t=1,v1=bad")
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.Zero(t, f.store.writes.Load())
	f.gateway.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
}

func TestProcess_WebhookFirstBasicMonthly(t *testing.T) {
	f := newFixture(t)
	f.expectRemote(basicMonthlyRemote("sub_1", period1))

	_, err := f.deliver(invoicePaid("evt_1", "sub_1"))
	require.NoError(t, err)
	assert.Equal(t, 30, f.store.balance("user_1"))

	row, ok := f.store.subscription("sub_1")
	require.True(t, ok)
	assert.Equal(t, plans.PlanBasic, row.PlanType)
	assert.Equal(t, plans.Monthly, row.BillingPeriod)
	assert.Equal(t, subscriptions.StatusActive, row.Status)

	// The buyer lands on the success page afterwards.
	f.expectPaidBasic("cs_1", "sub_1")
	res, err := f.verifier().Verify(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Zero(t, res.CreditsAdded)
	assert.Equal(t, row.ID, res.Subscription.ID)
	assert.Equal(t, 30, f.store.balance("user_1"))
}

func TestProcess_RedeliveryDoesNotRecredit(t *testing.T) {
	f := newFixture(t)
	for range 3 {
		f.expectRemote(basicMonthlyRemote("sub_1", period1))
		_, err := f.deliver(invoicePaid("evt_1", "sub_1"))
		require.NoError(t, err)
	}
	assert.Equal(t, 30, f.store.balance("user_1"))
	assert.Equal(t, 1, f.store.subscriptionCount())
}

func TestProcess_RenewalGrantsOncePerPeriod(t *testing.T) {
	f := newFixture(t)
	f.expectRemote(basicMonthlyRemote("sub_1", period1))
	_, err := f.deliver(invoicePaid("evt_1", "sub_1"))
	require.NoError(t, err)

	for range 2 {
		f.expectRemote(basicMonthlyRemote("sub_1", period2))
		_, err = f.deliver(invoicePaid("evt_2", "sub_1"))
		require.NoError(t, err)
	}
	assert.Equal(t, 50, f.store.balance("user_1"))

	// A late redelivery of the first invoice must not move the claim back.
	f.expectRemote(basicMonthlyRemote("sub_1", period1))
	_, err = f.deliver(invoicePaid("evt_1", "sub_1"))
	require.NoError(t, err)

	f.expectRemote(basicMonthlyRemote("sub_1", period3))
	_, err = f.deliver(invoicePaid("evt_3", "sub_1"))
	require.NoError(t, err)
	assert.Equal(t, 70, f.store.balance("user_1"))

	row, _ := f.store.subscription("sub_1")
	assert.Equal(t, period3, *row.CreditedPeriodStart)
}

func TestProcess_RenewalFollowsBilledPrice(t *testing.T) {
	f := newFixture(t)
	f.expectRemote(basicMonthlyRemote("sub_1", period1))
	_, err := f.deliver(invoicePaid("evt_1", "sub_1"))
	require.NoError(t, err)

	// Upgraded in the billing portal: the price changes, the checkout
	// metadata does not.
	upgraded := basicMonthlyRemote("sub_1", period2)
	upgraded.PriceID = "price_pro_m"
	f.expectRemote(upgraded)
	_, err = f.deliver(invoicePaid("evt_2", "sub_1"))
	require.NoError(t, err)

	assert.Equal(t, 10+plans.BasicCredits+plans.ProCredits, f.store.balance("user_1"))
	row, _ := f.store.subscription("sub_1")
	assert.Equal(t, plans.PlanPro, row.PlanType)
	assert.Equal(t, plans.Monthly, row.BillingPeriod)
}

func TestProcess_UnknownPriceFallsBackToMetadata(t *testing.T) {
	f := newFixture(t)
	remote := basicMonthlyRemote("sub_1", period1)
	remote.PriceID = "price_legacy"
	remote.Metadata[MetaPlanType] = "pro"
	remote.Metadata[MetaBillingPeriod] = "annual"
	f.expectRemote(remote)

	_, err := f.deliver(invoicePaid("evt_1", "sub_1"))
	require.NoError(t, err)

	assert.Equal(t, 10+plans.ProCredits, f.store.balance("user_1"))
	row, _ := f.store.subscription("sub_1")
	assert.Equal(t, plans.PlanPro, row.PlanType)
	assert.Equal(t, plans.Annual, row.BillingPeriod)
}

func TestProcess_SubscriptionUpdated(t *testing.T) {
	f := newFixture(t)
	f.expectRemote(basicMonthlyRemote("sub_1", period1))
	_, err := f.deliver(invoicePaid("evt_1", "sub_1"))
	require.NoError(t, err)

	_, err = f.deliver(SubscriptionUpdated{
		EventMeta:      EventMeta{ID: "evt_2", Type: "customer.subscription.updated"},
		SubscriptionID: "sub_1",
		Status:         subscriptions.StatusPastDue,
		PeriodStart:    period2,
		PeriodEnd:      period3,
	})
	require.NoError(t, err)

	row, _ := f.store.subscription("sub_1")
	assert.Equal(t, subscriptions.StatusPastDue, row.Status)
	assert.Equal(t, period2, row.CurrentPeriodStart)
	assert.Equal(t, period3, row.CurrentPeriodEnd)
	assert.Equal(t, 30, f.store.balance("user_1"))
}

func TestProcess_CancellationIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.expectRemote(basicMonthlyRemote("sub_1", period1))
	_, err := f.deliver(invoicePaid("evt_1", "sub_1"))
	require.NoError(t, err)

	_, err = f.deliver(SubscriptionCanceled{
		EventMeta:      EventMeta{ID: "evt_2", Type: "customer.subscription.deleted"},
		SubscriptionID: "sub_1",
	})
	require.NoError(t, err)

	row, ok := f.store.subscription("sub_1")
	require.True(t, ok)
	assert.Equal(t, subscriptions.StatusCanceled, row.Status)
	assert.Equal(t, period1, row.CurrentPeriodStart)
	assert.Equal(t, period2, row.CurrentPeriodEnd)
	assert.Equal(t, 30, f.store.balance("user_1"))

	// Out-of-order update after deletion is acknowledged and ignored.
	_, err = f.deliver(SubscriptionUpdated{
		EventMeta:      EventMeta{ID: "evt_3", Type: "customer.subscription.updated"},
		SubscriptionID: "sub_1",
		Status:         subscriptions.StatusActive,
	})
	require.NoError(t, err)
	row, _ = f.store.subscription("sub_1")
	assert.Equal(t, subscriptions.StatusCanceled, row.Status)

	// So is a renewal payment.
	f.expectRemote(basicMonthlyRemote("sub_1", period2))
	_, err = f.deliver(invoicePaid("evt_4", "sub_1"))
	require.NoError(t, err)
	assert.Equal(t, 30, f.store.balance("user_1"))
}

func TestProcess_UnresolvableUserWritesNothing(t *testing.T) {
	f := newFixture(t)
	remote := basicMonthlyRemote("sub_1", period1)
	delete(remote.Metadata, MetaUserID)
	f.gateway.On("GetSubscription", mock.Anything, "sub_1").Return(remote, nil)
	f.gateway.On("GetCustomer", mock.Anything, "cus_1").Return(&Customer{ID: "cus_1"}, nil)

	_, err := f.deliver(invoicePaid("evt_1", "sub_1"))
	require.NoError(t, err)
	assert.Zero(t, f.store.writes.Load())
}

func TestProcess_UserFromSubscriptionMetadata(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("GetSubscription", mock.Anything, "sub_1").Return(basicMonthlyRemote("sub_1", period1), nil)
	f.gateway.On("GetCustomer", mock.Anything, "cus_1").Return(nil, ErrGatewayNotFound)

	_, err := f.deliver(invoicePaid("evt_1", "sub_1"))
	require.NoError(t, err)
	assert.Equal(t, 30, f.store.balance("user_1"))
}

func TestProcess_SkipsUnknownPlanAndMissingRows(t *testing.T) {
	f := newFixture(t)
	remote := basicMonthlyRemote("sub_1", period1)
	remote.Metadata = map[string]string{MetaUserID: "user_1"}
	remote.PriceID = "price_legacy"
	f.expectRemote(remote)

	_, err := f.deliver(invoicePaid("evt_1", "sub_1"))
	require.NoError(t, err)

	_, err = f.deliver(SubscriptionCanceled{
		EventMeta:      EventMeta{ID: "evt_2", Type: "customer.subscription.deleted"},
		SubscriptionID: "sub_unknown",
	})
	require.NoError(t, err)

	_, err = f.deliver(Unhandled{EventMeta: EventMeta{ID: "evt_3", Type: "charge.refunded"}})
	require.NoError(t, err)

	_, err = f.deliver(invoicePaid("evt_4", ""))
	require.NoError(t, err)

	assert.Zero(t, f.store.writes.Load())
}

func TestProcess_GatewayFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("GetSubscription", mock.Anything, "sub_1").Return(nil, errors.New("connection reset"))

	ev, err := f.deliver(invoicePaid("evt_1", "sub_1"))
	assert.ErrorIs(t, err, ErrUpstreamGateway)
	assert.Equal(t, "evt_1", ev.Meta().ID)
	assert.Zero(t, f.store.writes.Load())
}

func TestConcurrentVerifyAndWebhookGrantOnce(t *testing.T) {
	for i := range 20 {
		t.Run(fmt.Sprintf("round_%d", i), func(t *testing.T) {
			f := newFixture(t)
			f.expectPaidBasic("cs_1", "sub_1")
			ev := invoicePaid("evt_1", "sub_1")
			f.gateway.On("ParseWebhook", mock.Anything, "sig").Return(ev, nil)

			v, p := f.verifier(), f.processor()
			var wg sync.WaitGroup
			errs := make(chan error, 4)
			for range 2 {
				wg.Add(2)
				go func() {
					defer wg.Done()
					_, err := v.Verify(context.Background(), "cs_1")
					errs <- err
				}()
				go func() {
					defer wg.Done()
					_, err := p.Process(context.Background(), []byte("payload"), "sig")
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			assert.Equal(t, 10+plans.BasicCredits, f.store.balance("user_1"))
			assert.Equal(t, 1, f.store.subscriptionCount())
		})
	}
}
