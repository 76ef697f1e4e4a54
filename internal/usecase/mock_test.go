//go:build !integration

// File: internal/usecase/mock_test.go
package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/adapter"
	"healthtrack-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// catalogTiers is the standard four-tier fixture used across tests.
func catalogTiers() []*model.Tier {
	return []*model.Tier{
		{
			Code: model.TierFree, Name: "Free", Rank: 0, Active: true,
			Features: model.FeatureSet{HistoryDays: intPtr(7), Insights: "basic"},
		},
		{
			Code: model.TierBasic, Name: "Basic", Rank: 1, Active: true,
			PriceMonthly: 4.99, PriceYearly: 49.99,
			StripePriceMonthly: strPtr("price_basic_m"),
			StripePriceYearly:  strPtr("price_basic_y"),
			Features: model.FeatureSet{
				HistoryDays: intPtr(30),
				Reminders:   model.ReminderFeatures{Enabled: true, MaxPerDay: 3, Methods: []string{"email"}},
				Insights:    "basic",
				Export:      model.ExportFeatures{CSV: true},
			},
		},
		{
			Code: model.TierPremium, Name: "Premium", Rank: 2, Active: true,
			PriceMonthly: 9.99, PriceYearly: 99.99,
			StripePriceMonthly: strPtr("price_premium_m"),
			StripePriceYearly:  strPtr("price_premium_y"),
			Features: model.FeatureSet{
				HistoryDays: intPtr(365),
				Reminders:   model.ReminderFeatures{Enabled: true, MaxPerDay: 10, Methods: []string{"email", "sms"}},
				Reports:     model.ReportFeatures{Enabled: true, Methods: []string{"email"}},
				Insights:    "advanced",
				Export:      model.ExportFeatures{CSV: true, PDF: true},
			},
		},
		{
			Code: model.TierProfessional, Name: "Professional", Rank: 3, Active: true,
			PriceMonthly: 19.99, PriceYearly: 199.99,
			StripePriceMonthly: strPtr("price_pro_m"),
			StripePriceYearly:  strPtr("price_pro_y"),
			Features: model.FeatureSet{
				Reminders: model.ReminderFeatures{Enabled: true, MaxPerDay: 20, Methods: []string{"email", "sms"}},
				Reports:   model.ReportFeatures{Enabled: true, Methods: []string{"email"}},
				Insights:  "ai",
				Export:    model.ExportFeatures{CSV: true, PDF: true},
			},
		},
	}
}

// ---- Mock TierRepository ----

type MockTierRepo struct {
	mu    sync.RWMutex
	tiers map[model.TierCode]*model.Tier

	SaveFunc       func(ctx context.Context, t *model.Tier) error
	FindByCodeFunc func(ctx context.Context, code model.TierCode) (*model.Tier, error)
	ListActiveFunc func(ctx context.Context) ([]*model.Tier, error)
}

var _ repository.TierRepository = (*MockTierRepo)(nil)

func NewMockTierRepo(tiers ...*model.Tier) *MockTierRepo {
	m := &MockTierRepo{tiers: make(map[model.TierCode]*model.Tier)}
	for _, t := range tiers {
		m.tiers[t.Code] = t
	}
	return m
}

func (m *MockTierRepo) Save(ctx context.Context, t *model.Tier) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tiers[t.Code] = &cp
	return nil
}

func (m *MockTierRepo) FindByCode(ctx context.Context, code model.TierCode) (*model.Tier, error) {
	if m.FindByCodeFunc != nil {
		return m.FindByCodeFunc(ctx, code)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tiers[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTierRepo) ListActive(ctx context.Context) ([]*model.Tier, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Tier, 0, len(m.tiers))
	// rank order
	for rank := 0; rank < 10; rank++ {
		for _, t := range m.tiers {
			if t.Rank == rank && t.Active {
				cp := *t
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

// ---- Mock SubscriptionStateRepository ----

type MockSubscriptionStateRepo struct {
	mu     sync.RWMutex
	states map[string]*model.SubscriptionState // by user id

	FindByUserFunc               func(ctx context.Context, userID string) (*model.SubscriptionState, error)
	FindByStripeCustomerFunc     func(ctx context.Context, customerID string) (*model.SubscriptionState, error)
	FindByStripeSubscriptionFunc func(ctx context.Context, subscriptionID string) (*model.SubscriptionState, error)
	LinkStripeAccountFunc        func(ctx context.Context, userID, customerID, subscriptionID string) error
	UpsertFunc                   func(ctx context.Context, s *model.SubscriptionState) error
	DowngradeToFreeFunc          func(ctx context.Context, userID string, status model.SubscriptionStatus) error
	MarkPastDueFunc              func(ctx context.Context, userID string) error
	FindLapsedFunc               func(ctx context.Context, asOf time.Time) ([]*model.SubscriptionState, error)
}

var _ repository.SubscriptionStateRepository = (*MockSubscriptionStateRepo)(nil)

func NewMockSubscriptionStateRepo(states ...*model.SubscriptionState) *MockSubscriptionStateRepo {
	m := &MockSubscriptionStateRepo{states: make(map[string]*model.SubscriptionState)}
	for _, s := range states {
		m.states[s.UserID] = s
	}
	return m
}

func (m *MockSubscriptionStateRepo) FindByUser(ctx context.Context, userID string) (*model.SubscriptionState, error) {
	if m.FindByUserFunc != nil {
		return m.FindByUserFunc(ctx, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionStateRepo) FindByStripeCustomer(ctx context.Context, customerID string) (*model.SubscriptionState, error) {
	if m.FindByStripeCustomerFunc != nil {
		return m.FindByStripeCustomerFunc(ctx, customerID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.states {
		if s.StripeCustomerID != nil && *s.StripeCustomerID == customerID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionStateRepo) FindByStripeSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionState, error) {
	if m.FindByStripeSubscriptionFunc != nil {
		return m.FindByStripeSubscriptionFunc(ctx, subscriptionID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.states {
		if s.StripeSubscriptionID != nil && *s.StripeSubscriptionID == subscriptionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionStateRepo) LinkStripeAccount(ctx context.Context, userID, customerID, subscriptionID string) error {
	if m.LinkStripeAccountFunc != nil {
		return m.LinkStripeAccountFunc(ctx, userID, customerID, subscriptionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[userID]
	if !ok {
		s = model.DefaultSubscription(userID)
		m.states[userID] = s
	}
	if customerID != "" {
		s.StripeCustomerID = &customerID
	}
	if subscriptionID != "" {
		s.StripeSubscriptionID = &subscriptionID
	}
	return nil
}

func (m *MockSubscriptionStateRepo) Upsert(ctx context.Context, s *model.SubscriptionState) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.states[s.UserID] = &cp
	return nil
}

func (m *MockSubscriptionStateRepo) DowngradeToFree(ctx context.Context, userID string, status model.SubscriptionStatus) error {
	if m.DowngradeToFreeFunc != nil {
		return m.DowngradeToFreeFunc(ctx, userID, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[userID]
	if !ok {
		return domain.ErrNotFound
	}
	s.TierCode = model.TierFree
	s.Status = status
	s.CancelAtPeriodEnd = false
	return nil
}

func (m *MockSubscriptionStateRepo) MarkPastDue(ctx context.Context, userID string) error {
	if m.MarkPastDueFunc != nil {
		return m.MarkPastDueFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[userID]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = model.StatusPastDue
	return nil
}

func (m *MockSubscriptionStateRepo) FindLapsed(ctx context.Context, asOf time.Time) ([]*model.SubscriptionState, error) {
	if m.FindLapsedFunc != nil {
		return m.FindLapsedFunc(ctx, asOf)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.SubscriptionState
	for _, s := range m.states {
		if s.TierCode != model.TierFree && s.EndDate != nil && s.EndDate.Before(asOf) &&
			s.Status != model.StatusExpired && s.Status != model.StatusCancelled {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// state returns the stored row for assertions.
func (m *MockSubscriptionStateRepo) state(userID string) *model.SubscriptionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[userID]
}

// ---- Mock HistoryRepository ----

type MockHistoryRepo struct {
	mu       sync.Mutex
	Appended []*model.HistoryEvent

	AppendFunc     func(ctx context.Context, ev *model.HistoryEvent) error
	ListByUserFunc func(ctx context.Context, userID string, limit int) ([]*model.HistoryEvent, error)
}

var _ repository.HistoryRepository = (*MockHistoryRepo)(nil)

func NewMockHistoryRepo() *MockHistoryRepo { return &MockHistoryRepo{} }

func (m *MockHistoryRepo) Append(ctx context.Context, ev *model.HistoryEvent) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, ev)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Appended = append(m.Appended, ev)
	return nil
}

func (m *MockHistoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.HistoryEvent, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.HistoryEvent
	for i := len(m.Appended) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Appended[i].UserID == userID {
			out = append(out, m.Appended[i])
		}
	}
	return out, nil
}

func (m *MockHistoryRepo) events(userID string) []*model.HistoryEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.HistoryEvent
	for _, ev := range m.Appended {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu    sync.RWMutex
	users map[string]*model.User

	FindByIDFunc func(ctx context.Context, id string) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo(users ...*model.User) *MockUserRepo {
	m := &MockUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *MockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// ---- Mock BillingGateway ----

type MockBillingGateway struct {
	mu       sync.Mutex
	Sessions []adapter.CheckoutSessionParams

	CreateCheckoutSessionFunc func(ctx context.Context, p adapter.CheckoutSessionParams) (*adapter.CheckoutSession, error)
	CreatePortalSessionFunc   func(ctx context.Context, customerID, returnURL string) (string, error)
	EnsureRecurringPriceFunc  func(ctx context.Context, productName string, tierCode model.TierCode, period model.BillingPeriod, amountMajor float64) (string, error)
}

var _ adapter.BillingGateway = (*MockBillingGateway)(nil)

func (m *MockBillingGateway) Name() string { return "mock" }

func (m *MockBillingGateway) CreateCheckoutSession(ctx context.Context, p adapter.CheckoutSessionParams) (*adapter.CheckoutSession, error) {
	m.mu.Lock()
	m.Sessions = append(m.Sessions, p)
	m.mu.Unlock()
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, p)
	}
	return &adapter.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (m *MockBillingGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if m.CreatePortalSessionFunc != nil {
		return m.CreatePortalSessionFunc(ctx, customerID, returnURL)
	}
	return "https://portal.example/" + customerID, nil
}

func (m *MockBillingGateway) EnsureRecurringPrice(ctx context.Context, productName string, tierCode model.TierCode, period model.BillingPeriod, amountMajor float64) (string, error) {
	if m.EnsureRecurringPriceFunc != nil {
		return m.EnsureRecurringPriceFunc(ctx, productName, tierCode, period, amountMajor)
	}
	return "price_dynamic_1", nil
}

// ---- Mock Notifier ----

type sentNotification struct {
	ToEmail    string
	ToName     string
	TemplateID string
	Vars       map[string]string
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []sentNotification

	SendFunc func(ctx context.Context, toEmail, toName, templateID string, vars map[string]string) error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Send(ctx context.Context, toEmail, toName, templateID string, vars map[string]string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, toEmail, toName, templateID, vars)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentNotification{ToEmail: toEmail, ToName: toName, TemplateID: templateID, Vars: vars})
	return nil
}

func (m *MockNotifier) sent() []sentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentNotification, len(m.Sent))
	copy(out, m.Sent)
	return out
}
