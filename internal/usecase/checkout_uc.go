// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/adapter"
	"healthtrack-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutParams is a purchase request from the app UI. PriceID, Amount
// and TierName are optional: a missing price id is created on demand from
// the amount (or the catalog price).
type CheckoutParams struct {
	UserID   string
	TierCode model.TierCode
	Period   model.BillingPeriod
	PriceID  string
	Amount   float64 // major units
	TierName string
}

// CheckoutUseCase brokers purchase and self-service billing sessions with
// the external provider.
type CheckoutUseCase interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*adapter.CheckoutSession, error)
	CreateBillingPortalSession(ctx context.Context, userID string) (string, error)
}

type checkoutUC struct {
	gateway adapter.BillingGateway
	catalog CatalogUseCase
	subs    repository.SubscriptionStateRepository
	users   repository.UserRepository
	appURL  string
	log     *zerolog.Logger
}

func NewCheckoutUseCase(
	gateway adapter.BillingGateway,
	catalog CatalogUseCase,
	subs repository.SubscriptionStateRepository,
	users repository.UserRepository,
	appURL string,
	logger *zerolog.Logger,
) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{gateway: gateway, catalog: catalog, subs: subs, users: users, appURL: appURL, log: &l}
}

func (u *checkoutUC) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*adapter.CheckoutSession, error) {
	if p.UserID == "" || p.TierCode == "" || p.Period == "" {
		return nil, domain.ErrInvalidArgument
	}

	user, err := u.users.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", p.UserID, err)
	}

	priceID, err := u.resolvePrice(ctx, p)
	if err != nil {
		return nil, err
	}

	params := adapter.CheckoutSessionParams{
		PriceID:           priceID,
		ClientReferenceID: p.UserID,
		SuccessURL:        u.appURL + "/subscription/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         u.appURL + "/subscription/plans",
		Metadata: map[string]string{
			"user_id":   p.UserID,
			"tier_code": string(p.TierCode),
			"period":    string(p.Period),
		},
		// Duplicated onto the subscription so later webhook events can
		// resolve the user before any customer-id linkage exists.
		SubscriptionMeta: map[string]string{
			"user_id":   p.UserID,
			"tier_code": string(p.TierCode),
		},
	}

	// Reuse an existing provider customer when the state store has one.
	if state, err := u.subs.FindByUser(ctx, p.UserID); err == nil && state.StripeCustomerID != nil {
		params.CustomerID = *state.StripeCustomerID
	} else {
		params.CustomerEmail = user.Email
	}

	session, err := u.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	u.log.Info().Str("user_id", p.UserID).Str("session_id", session.ID).Str("tier", string(p.TierCode)).Msg("checkout session created")
	return session, nil
}

// resolvePrice prefers the explicit request price, then the catalog's
// configured slot, and finally creates a price on demand.
func (u *checkoutUC) resolvePrice(ctx context.Context, p CheckoutParams) (string, error) {
	if p.PriceID != "" {
		return p.PriceID, nil
	}

	tier, err := u.catalog.GetByCode(ctx, p.TierCode)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if tier != nil {
		if configured := tier.StripePriceFor(p.Period); configured != nil && *configured != "" {
			return *configured, nil
		}
	}

	amount := p.Amount
	if amount <= 0 && tier != nil {
		amount = tier.PriceFor(p.Period)
	}
	if amount <= 0 {
		return "", domain.ErrPriceRequired
	}

	name := p.TierName
	if name == "" && tier != nil {
		name = tier.Name + " Plan"
	}
	if name == "" {
		name = string(p.TierCode) + " Plan"
	}

	priceID, err := u.gateway.EnsureRecurringPrice(ctx, name, p.TierCode, p.Period, amount)
	if err != nil {
		return "", fmt.Errorf("create price for tier %s: %w", p.TierCode, err)
	}
	u.log.Info().Str("price_id", priceID).Str("tier", string(p.TierCode)).Str("period", string(p.Period)).Float64("amount", amount).Msg("created dynamic price")
	return priceID, nil
}

func (u *checkoutUC) CreateBillingPortalSession(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrInvalidArgument
	}
	state, err := u.subs.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNoBillingAccount
		}
		return "", err
	}
	if state.StripeCustomerID == nil || *state.StripeCustomerID == "" {
		return "", domain.ErrNoBillingAccount
	}

	url, err := u.gateway.CreatePortalSession(ctx, *state.StripeCustomerID, u.appURL+"/profile")
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	u.log.Info().Str("user_id", userID).Msg("billing portal session created")
	return url, nil
}
