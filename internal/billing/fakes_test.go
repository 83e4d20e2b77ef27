package billing

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"imagecraft-app/internal/domain/plans"
	"imagecraft-app/internal/domain/subscriptions"
	"imagecraft-app/internal/domain/users"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	period1 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	period2 = period1.AddDate(0, 1, 0)
	period3 = period2.AddDate(0, 1, 0)
)

func testCatalog(t *testing.T) *plans.Catalog {
	t.Helper()
	c, err := plans.DefaultCatalog(plans.PriceIDs{
		BasicMonthly: "price_basic_m",
		BasicAnnual:  "price_basic_y",
		ProMonthly:   "price_pro_m",
		ProAnnual:    "price_pro_y",
	})
	require.NoError(t, err)
	return c
}

// ---- in-memory store ----

type memState struct {
	users map[string]users.User
	subs  map[string]subscriptions.Subscription
	seq   int
}

func (s memState) clone() memState {
	out := memState{
		users: make(map[string]users.User, len(s.users)),
		subs:  make(map[string]subscriptions.Subscription, len(s.subs)),
		seq:   s.seq,
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.subs {
		out.subs[k] = v
	}
	return out
}

// memStore mimics the gorm store: transactions are serialized and rolled back
// on error, inserts report duplicates without aborting the transaction.
type memStore struct {
	mu     *sync.Mutex
	state  *memState
	inTx   bool
	writes *atomic.Int64

	// beforeInsert runs once inside InsertSubscription, before the
	// uniqueness check.
	beforeInsert *func(st *memState)
}

func newMemStore() *memStore {
	var hook func(st *memState)
	return &memStore{
		mu:           &sync.Mutex{},
		state:        &memState{users: map[string]users.User{}, subs: map[string]subscriptions.Subscription{}},
		writes:       &atomic.Int64{},
		beforeInsert: &hook,
	}
}

func (m *memStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) addUser(id, email string, credits int) {
	defer m.lock()()
	m.state.users[id] = users.User{ID: id, Email: email, Credits: credits}
}

func (m *memStore) setCustomer(userID, customerID string) {
	defer m.lock()()
	u := m.state.users[userID]
	u.StripeCustomerID = &customerID
	m.state.users[userID] = u
}

func (m *memStore) putSubscription(s subscriptions.Subscription) {
	defer m.lock()()
	m.state.seq++
	if s.ID == "" {
		_ = s.BeforeCreate(nil)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = period1.Add(time.Duration(m.state.seq) * time.Second)
	}
	m.state.subs[s.StripeSubscriptionID] = s
}

func (m *memStore) balance(userID string) int {
	defer m.lock()()
	return m.state.users[userID].Credits
}

func (m *memStore) subscription(id string) (subscriptions.Subscription, bool) {
	defer m.lock()()
	s, ok := m.state.subs[id]
	return s, ok
}

func (m *memStore) subscriptionCount() int {
	defer m.lock()()
	return len(m.state.subs)
}

func (m *memStore) onInsert(fn func(st *memState)) {
	defer m.lock()()
	*m.beforeInsert = fn
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.state.clone()
	tx := &memStore{mu: m.mu, state: m.state, inTx: true, writes: m.writes, beforeInsert: m.beforeInsert}
	if err := fn(tx); err != nil {
		*m.state = snapshot
		return err
	}
	return nil
}

func (m *memStore) GetUser(ctx context.Context, userID string) (*users.User, error) {
	defer m.lock()()
	u, ok := m.state.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *memStore) SetStripeCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	defer m.lock()()
	u, ok := m.state.users[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	if u.HasStripeCustomer() {
		return *u.StripeCustomerID, nil
	}
	m.writes.Add(1)
	u.StripeCustomerID = &customerID
	m.state.users[userID] = u
	return customerID, nil
}

func (m *memStore) AddCredits(ctx context.Context, userID string, n int) (int, error) {
	defer m.lock()()
	u, ok := m.state.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	m.writes.Add(1)
	u.Credits += n
	m.state.users[userID] = u
	return u.Credits, nil
}

func (m *memStore) DeductCredits(ctx context.Context, userID string, n int) (int, error) {
	defer m.lock()()
	u, ok := m.state.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	m.writes.Add(1)
	u.Credits = max(u.Credits-n, 0)
	m.state.users[userID] = u
	return u.Credits, nil
}

func (m *memStore) FindSubscription(ctx context.Context, id string) (*subscriptions.Subscription, error) {
	defer m.lock()()
	s, ok := m.state.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &s, nil
}

func (m *memStore) ListSubscriptions(ctx context.Context, userID string) ([]subscriptions.Subscription, error) {
	defer m.lock()()
	var out []subscriptions.Subscription
	for _, s := range m.state.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListActiveSubscriptions(ctx context.Context, userID string) ([]subscriptions.Subscription, error) {
	all, err := m.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []subscriptions.Subscription
	for _, s := range all {
		if s.Status == subscriptions.StatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) InsertSubscription(ctx context.Context, sub *subscriptions.Subscription) error {
	defer m.lock()()
	if hook := *m.beforeInsert; hook != nil {
		*m.beforeInsert = nil
		hook(m.state)
	}
	if _, dup := m.state.subs[sub.StripeSubscriptionID]; dup {
		return ErrDuplicateSubscription
	}
	if _, ok := m.state.users[sub.UserID]; !ok {
		return ErrUserNotFound
	}
	m.writes.Add(1)
	m.state.seq++
	_ = sub.BeforeCreate(nil)
	sub.CreatedAt = period1.Add(time.Duration(m.state.seq) * time.Second)
	m.state.subs[sub.StripeSubscriptionID] = *sub
	return nil
}

func (m *memStore) UpdateSubscription(ctx context.Context, id string, ch SubscriptionChange) error {
	defer m.lock()()
	s, ok := m.state.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if s.Status.IsTerminal() && (ch.Status == nil || *ch.Status != subscriptions.StatusCanceled) {
		return ErrTerminalStatus
	}
	m.writes.Add(1)
	if ch.Status != nil {
		s.Status = *ch.Status
	}
	if ch.PlanType != nil {
		s.PlanType = *ch.PlanType
	}
	if ch.BillingPeriod != nil {
		s.BillingPeriod = *ch.BillingPeriod
	}
	if ch.PeriodStart != nil {
		s.CurrentPeriodStart = *ch.PeriodStart
	}
	if ch.PeriodEnd != nil {
		s.CurrentPeriodEnd = *ch.PeriodEnd
	}
	m.state.subs[id] = s
	return nil
}

func (m *memStore) ClaimCreditPeriod(ctx context.Context, id string, start time.Time) (bool, error) {
	defer m.lock()()
	s, ok := m.state.subs[id]
	if !ok {
		return false, nil
	}
	if s.CreditedPeriodStart != nil && !s.CreditedPeriodStart.Before(start) {
		return false, nil
	}
	m.writes.Add(1)
	s.CreditedPeriodStart = &start
	m.state.subs[id] = s
	return true, nil
}

// ---- gateway mock ----

type mockGateway struct {
	mock.Mock
}

func (g *mockGateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error) {
	args := g.Called(ctx, email, metadata)
	c, _ := args.Get(0).(*Customer)
	return c, args.Error(1)
}

func (g *mockGateway) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	args := g.Called(ctx, id)
	c, _ := args.Get(0).(*Customer)
	return c, args.Error(1)
}

func (g *mockGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	args := g.Called(ctx, params)
	s, _ := args.Get(0).(*CheckoutSession)
	return s, args.Error(1)
}

func (g *mockGateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	args := g.Called(ctx, id)
	s, _ := args.Get(0).(*CheckoutSession)
	return s, args.Error(1)
}

func (g *mockGateway) GetSubscription(ctx context.Context, id string) (*RemoteSubscription, error) {
	args := g.Called(ctx, id)
	s, _ := args.Get(0).(*RemoteSubscription)
	if s != nil {
		cp := *s
		s = &cp
	}
	return s, args.Error(1)
}

func (g *mockGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := g.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (g *mockGateway) ParseWebhook(payload []byte, signature string) (Event, error) {
	args := g.Called(payload, signature)
	ev, _ := args.Get(0).(Event)
	return ev, args.Error(1)
}

// ---- fixtures ----

func basicMonthlyRemote(id string, start time.Time) *RemoteSubscription {
	return &RemoteSubscription{
		ID:                 id,
		CustomerID:         "cus_1",
		PriceID:            "price_basic_m",
		Status:             subscriptions.StatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 1, 0),
		Metadata: map[string]string{
			MetaUserID:        "user_1",
			MetaPlanType:      "basic",
			MetaBillingPeriod: "monthly",
		},
	}
}

func paidSession(id, subID string) *CheckoutSession {
	return &CheckoutSession{
		ID:             id,
		Paid:           true,
		SubscriptionID: subID,
		CustomerID:     "cus_1",
		Metadata: map[string]string{
			MetaUserID:        "user_1",
			MetaPlanType:      "basic",
			MetaBillingPeriod: "monthly",
		},
	}
}

type fixture struct {
	store   *memStore
	gateway *mockGateway
	catalog *plans.Catalog
	ledger  *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMemStore()
	st.addUser("user_1", "buyer@example.com", 10)
	return &fixture{
		store:   st,
		gateway: &mockGateway{},
		catalog: testCatalog(t),
		ledger:  NewLedger(zerolog.Nop()),
	}
}

func (f *fixture) verifier() *Verifier {
	return NewVerifier(f.catalog, f.gateway, f.store, f.ledger, zerolog.Nop())
}

func (f *fixture) processor() *WebhookProcessor {
	return NewWebhookProcessor(f.catalog, f.gateway, f.store, f.ledger, zerolog.Nop())
}

func (f *fixture) checkout() *Checkout {
	return NewCheckout(f.catalog, f.gateway, f.store, "https://app.example.com", zerolog.Nop())
}
