package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/infra/logging"
	"healthtrack-billing/internal/infra/metrics"
	"healthtrack-billing/internal/infra/stripe"
	"healthtrack-billing/internal/usecase"
)

// Webhook payloads are small; anything past this is not a billing event.
const maxWebhookBody = 1 << 20

type ctxKey int

const sessionUserKey ctxKey = iota

func withSessionUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, sessionUserKey, userID)
}

func sessionUserFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionUserKey).(string)
	return id, ok && id != ""
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// handleWebhook is the provider delivery endpoint. The signature is the
// only authentication; the raw body must be verified before any decoding.
// A 2xx acknowledges the delivery, a 5xx asks the provider to retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	ev, err := s.decoder.Decode(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, stripe.ErrSignature) {
			metrics.IncWebhookSignatureFailure()
			s.log.Warn().Err(err).Msg("webhook signature rejected")
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}
		s.log.Warn().Err(err).Msg("webhook payload undecodable")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	ctx := logging.WithEventID(r.Context(), ev.EventID())
	if err := s.reconcileUC.Handle(ctx, ev); err != nil {
		metrics.IncWebhookEvent(ev.EventType(), "failed")
		logging.With(ctx, s.log).Error().Err(err).Str("type", ev.EventType()).Msg("webhook processing failed")
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	outcome := "processed"
	if _, unhandled := ev.(model.UnhandledEvent); unhandled {
		outcome = "unhandled"
	}
	metrics.IncWebhookEvent(ev.EventType(), outcome)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := s.catalogUC.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list tiers", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tiers)
}

type checkoutRequest struct {
	UserID   string  `json:"user_id"`
	TierCode string  `json:"tier_code"`
	Period   string  `json:"period"`
	PriceID  string  `json:"price_id,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	TierName string  `json:"tier_name,omitempty"`
}

func (s *Server) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	// A session caller can only buy for itself.
	if sessionUser, ok := sessionUserFrom(r.Context()); ok {
		req.UserID = sessionUser
	}

	session, err := s.checkoutUC.CreateCheckoutSession(r.Context(), usecase.CheckoutParams{
		UserID:   req.UserID,
		TierCode: model.TierCode(req.TierCode),
		Period:   model.BillingPeriod(req.Period),
		PriceID:  req.PriceID,
		Amount:   req.Amount,
		TierName: req.TierName,
	})
	if err != nil {
		metrics.IncCheckoutSession("checkout", "error")
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrPriceRequired):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "user not found")
		case errors.Is(err, domain.ErrNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "not_configured", "billing provider not configured")
		default:
			writeError(w, http.StatusInternalServerError, "internal", "failed to create checkout session")
		}
		return
	}
	metrics.IncCheckoutSession("checkout", "ok")
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": session.ID,
		"url":        session.URL,
	})
}

type portalRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleCreatePortalSession(w http.ResponseWriter, r *http.Request) {
	var req portalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if sessionUser, ok := sessionUserFrom(r.Context()); ok {
		req.UserID = sessionUser
	}

	url, err := s.checkoutUC.CreateBillingPortalSession(r.Context(), req.UserID)
	if err != nil {
		metrics.IncCheckoutSession("portal", "error")
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, domain.ErrNoBillingAccount):
			writeError(w, http.StatusNotFound, "no_billing_account", "no active subscription")
		case errors.Is(err, domain.ErrNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "not_configured", "billing provider not configured")
		default:
			writeError(w, http.StatusInternalServerError, "internal", "failed to create portal session")
		}
		return
	}
	metrics.IncCheckoutSession("portal", "ok")
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	state, tier, err := s.entitlementUC.CurrentSubscription(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to load subscription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Subscription *model.SubscriptionState `json:"subscription"`
		Tier         *model.Tier              `json:"tier"`
	}{state, tier})
}

func (s *Server) handleGetEntitlements(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	// ?feature=reminders.enabled narrows the response to a single gate check.
	if path := r.URL.Query().Get("feature"); path != "" {
		d := s.entitlementUC.CanAccessFeature(ctx, userID, path)
		writeJSON(w, http.StatusOK, struct {
			Feature string `json:"feature"`
			Allowed bool   `json:"allowed"`
			Reason  string `json:"reason,omitempty"`
			Value   any    `json:"value,omitempty"`
		}{path, d.Allowed, d.Reason, d.Value})
		return
	}

	state, tier, err := s.entitlementUC.CurrentSubscription(ctx, userID)
	if err != nil {
		http.Error(w, "Failed to load entitlements", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		TierCode      model.TierCode           `json:"tier_code"`
		Status        model.SubscriptionStatus `json:"status"`
		Features      model.FeatureSet         `json:"features"`
		HistoryWindow usecase.HistoryWindow    `json:"history_window"`
		Paid          bool                     `json:"paid"`
	}{
		TierCode:      tier.Code,
		Status:        state.Status,
		Features:      tier.Features,
		HistoryWindow: s.entitlementUC.HistoryLimit(ctx, userID),
		Paid:          s.entitlementUC.HasPaidSubscription(ctx, userID),
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.entitlementUC.History(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*model.HistoryEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
