//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/adapter"
	"healthtrack-billing/internal/infra/stripe"
	"healthtrack-billing/internal/usecase"
)

const testAPIKey = "test-api-key"

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- fakes ----

type fakeDecoder struct {
	ev  model.BillingEvent
	err error
}

func (f *fakeDecoder) Decode(payload []byte, sigHeader string) (model.BillingEvent, error) {
	return f.ev, f.err
}

type fakeReconciler struct {
	calls int
	err   error
}

func (f *fakeReconciler) Handle(ctx context.Context, ev model.BillingEvent) error {
	f.calls++
	return f.err
}

type fakeEntitlements struct{}

func (f *fakeEntitlements) CanAccess(ctx context.Context, current, required model.TierCode) bool {
	return current == required
}
func (f *fakeEntitlements) CanAccessFeature(ctx context.Context, userID, featurePath string) usecase.Decision {
	if featurePath == "export.csv" {
		return usecase.Decision{Allowed: true, Value: true}
	}
	return usecase.Decision{Allowed: false, Reason: "feature not available in current tier"}
}
func (f *fakeEntitlements) CurrentSubscription(ctx context.Context, userID string) (*model.SubscriptionState, *model.Tier, error) {
	return model.DefaultSubscription(userID), model.FallbackFreeTier(), nil
}
func (f *fakeEntitlements) HistoryLimit(ctx context.Context, userID string) usecase.HistoryWindow {
	return usecase.HistoryWindow{Days: 7}
}
func (f *fakeEntitlements) HasPaidSubscription(ctx context.Context, userID string) bool { return false }
func (f *fakeEntitlements) History(ctx context.Context, userID string, limit int) ([]*model.HistoryEvent, error) {
	return nil, nil
}

type fakeCatalog struct {
	tiers []*model.Tier
	err   error
}

func (f *fakeCatalog) List(ctx context.Context) ([]*model.Tier, error) { return f.tiers, f.err }
func (f *fakeCatalog) GetByCode(ctx context.Context, code model.TierCode) (*model.Tier, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeCatalog) ResolveByPriceID(ctx context.Context, priceID string) (*model.Tier, error) {
	return model.FallbackFreeTier(), nil
}
func (f *fakeCatalog) FreeTier(ctx context.Context) *model.Tier { return model.FallbackFreeTier() }

type fakeCheckout struct {
	lastParams usecase.CheckoutParams
	sessionErr error
	portalErr  error
}

func (f *fakeCheckout) CreateCheckoutSession(ctx context.Context, p usecase.CheckoutParams) (*adapter.CheckoutSession, error) {
	f.lastParams = p
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &adapter.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
}
func (f *fakeCheckout) CreateBillingPortalSession(ctx context.Context, userID string) (string, error) {
	if f.portalErr != nil {
		return "", f.portalErr
	}
	return "https://portal.example/" + userID, nil
}

type serverFixture struct {
	decoder    *fakeDecoder
	reconciler *fakeReconciler
	checkout   *fakeCheckout
	handler    http.Handler
	auth       *AuthManager
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		decoder:    &fakeDecoder{},
		reconciler: &fakeReconciler{},
		checkout:   &fakeCheckout{},
	}
	f.auth = NewAuthManager("test-secret", 30*time.Minute)
	srv := NewServer(f.reconciler, &fakeEntitlements{}, &fakeCatalog{}, f.checkout, f.decoder, f.auth, testAPIKey, newTestLogger())
	f.handler = srv.Router()
	return f
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// ---- webhook ----

func TestWebhookEndpoint(t *testing.T) {
	t.Run("invalid signature is rejected and never reaches the reconciler", func(t *testing.T) {
		f := newServerFixture()
		f.decoder.err = stripe.ErrSignature

		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Stripe-Signature", "t=1,v1=bad")
		rec := f.do(req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if f.reconciler.calls != 0 {
			t.Error("a rejected delivery must not mutate state")
		}
	})

	t.Run("valid event is acknowledged with received true", func(t *testing.T) {
		f := newServerFixture()
		f.decoder.ev = model.UnhandledEvent{ID: "evt_1", Type: "customer.updated"}

		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader([]byte(`{}`)))
		rec := f.do(req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body map[string]bool
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body["received"] {
			t.Errorf("expected {\"received\":true}, got %s", rec.Body.String())
		}
		if f.reconciler.calls != 1 {
			t.Errorf("expected one reconciler call, got %d", f.reconciler.calls)
		}
	})

	t.Run("reconciler failure answers 500 so the provider retries", func(t *testing.T) {
		f := newServerFixture()
		f.decoder.ev = model.SubscriptionDeleted{ID: "evt_1", SubscriptionID: "sub_1"}
		f.reconciler.err = errors.New("db down")

		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader([]byte(`{}`)))
		rec := f.do(req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("webhook requires no API credential", func(t *testing.T) {
		f := newServerFixture()
		f.decoder.ev = model.UnhandledEvent{ID: "evt_1", Type: "x"}

		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader([]byte(`{}`)))
		if rec := f.do(req); rec.Code != http.StatusOK {
			t.Errorf("expected signature-only auth, got %d", rec.Code)
		}
	})
}

// ---- auth ----

func TestAPIAuth(t *testing.T) {
	t.Run("rejects requests without a credential", func(t *testing.T) {
		f := newServerFixture()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers", nil)
		if rec := f.do(req); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("accepts the service API key", func(t *testing.T) {
		f := newServerFixture()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		if rec := f.do(req); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("accepts a minted session token", func(t *testing.T) {
		f := newServerFixture()
		tok, err := f.auth.Mint("user-1")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/subscription", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		if rec := f.do(req); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("rejects garbage bearer tokens", func(t *testing.T) {
		f := newServerFixture()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		if rec := f.do(req); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("a session cannot read another user's data", func(t *testing.T) {
		f := newServerFixture()
		tok, _ := f.auth.Mint("user-1")
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-2/subscription", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		if rec := f.do(req); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("the service key reads any user", func(t *testing.T) {
		f := newServerFixture()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-2/history", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		if rec := f.do(req); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

// ---- checkout / portal ----

func TestCheckoutEndpoints(t *testing.T) {
	t.Run("creates a session and returns its url", func(t *testing.T) {
		f := newServerFixture()
		body, _ := json.Marshal(checkoutRequest{UserID: "user-1", TierCode: "premium", Period: "monthly"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout-session", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+testAPIKey)

		rec := f.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp["session_id"] != "cs_1" || resp["url"] == "" {
			t.Errorf("unexpected response: %v", resp)
		}
	})

	t.Run("a session token overrides the requested user id", func(t *testing.T) {
		f := newServerFixture()
		tok, _ := f.auth.Mint("user-1")
		body, _ := json.Marshal(checkoutRequest{UserID: "user-2", TierCode: "premium", Period: "monthly"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout-session", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+tok)

		if rec := f.do(req); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if f.checkout.lastParams.UserID != "user-1" {
			t.Errorf("expected session subject enforced, got %s", f.checkout.lastParams.UserID)
		}
	})

	t.Run("price-required maps to 400", func(t *testing.T) {
		f := newServerFixture()
		f.checkout.sessionErr = domain.ErrPriceRequired
		body, _ := json.Marshal(checkoutRequest{UserID: "user-1", TierCode: "custom", Period: "monthly"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout-session", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		if rec := f.do(req); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing billing account maps to 404 on portal", func(t *testing.T) {
		f := newServerFixture()
		f.checkout.portalErr = domain.ErrNoBillingAccount
		body, _ := json.Marshal(portalRequest{UserID: "user-1"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/billing-portal", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		rec := f.do(req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp["error"] != "no_billing_account" || resp["message"] == "" {
			t.Errorf("unexpected error envelope: %v", resp)
		}
	})
}

func TestUserReadEndpoints(t *testing.T) {
	f := newServerFixture()

	t.Run("subscription returns materialized state and tier", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/subscription", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		rec := f.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Subscription map[string]any `json:"subscription"`
			Tier         map[string]any `json:"tier"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Subscription == nil || resp.Tier == nil {
			t.Errorf("expected both halves, got %s", rec.Body.String())
		}
	})

	t.Run("entitlements with feature query narrows to a single gate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/entitlements?feature=export.csv", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		rec := f.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Feature string `json:"feature"`
			Allowed bool   `json:"allowed"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Feature != "export.csv" || !resp.Allowed {
			t.Errorf("unexpected decision: %s", rec.Body.String())
		}
	})

	t.Run("history returns an empty array, not null", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/history", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		rec := f.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := rec.Body.String(); got == "null\n" {
			t.Errorf("expected [], got %q", got)
		}
	})

	t.Run("health is public", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		if rec := f.do(req); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}
