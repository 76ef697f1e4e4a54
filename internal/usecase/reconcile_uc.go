// File: internal/usecase/reconcile_uc.go
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
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase translates authenticated billing lifecycle events into
// durable entitlement state, an audit trail, and notifications.
//
// Error contract: a returned error means "retry me" (the web layer answers
// the sender with a server error). Correlation misses, unknown event kinds
// and notification/ledger failures are logged and absorbed because a retry
// cannot fix them.
type ReconcileUseCase interface {
	Handle(ctx context.Context, ev model.BillingEvent) error
}

type reconcileUC struct {
	catalog   CatalogUseCase
	subs      repository.SubscriptionStateRepository
	users     repository.UserRepository
	history   repository.HistoryRepository
	notifier  adapter.Notifier
	templates adapter.TemplateSet
	log       *zerolog.Logger
}

func NewReconcileUseCase(
	catalog CatalogUseCase,
	subs repository.SubscriptionStateRepository,
	users repository.UserRepository,
	history repository.HistoryRepository,
	notifier adapter.Notifier,
	templates adapter.TemplateSet,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		catalog:   catalog,
		subs:      subs,
		users:     users,
		history:   history,
		notifier:  notifier,
		templates: templates,
		log:       &l,
	}
}

func (u *reconcileUC) Handle(ctx context.Context, ev model.BillingEvent) error {
	switch e := ev.(type) {
	case model.CheckoutCompleted:
		return u.handleCheckoutCompleted(ctx, e)
	case model.SubscriptionCreated:
		return u.handleSubscriptionCreated(ctx, e)
	case model.SubscriptionUpdated:
		return u.handleSubscriptionUpdated(ctx, e)
	case model.SubscriptionDeleted:
		return u.handleSubscriptionDeleted(ctx, e)
	case model.InvoicePaymentSucceeded:
		return u.handlePaymentSucceeded(ctx, e)
	case model.InvoicePaymentFailed:
		return u.handlePaymentFailed(ctx, e)
	case model.UnhandledEvent:
		u.log.Info().Str("event_id", e.ID).Str("type", e.Type).Msg("unhandled event type acknowledged")
		return nil
	}
	// A new variant was added to the union without a branch here.
	return fmt.Errorf("billing event %T has no handler", ev)
}

// handleCheckoutCompleted links the provider customer/subscription ids to
// the user that started the checkout. Sessions without a user correlation
// id are dropped: some checkouts are not subscription purchases.
func (u *reconcileUC) handleCheckoutCompleted(ctx context.Context, ev model.CheckoutCompleted) error {
	userID := ev.UserID()
	if userID == "" {
		u.log.Warn().Str("event_id", ev.ID).Msg("checkout session carries no user reference, dropping")
		return nil
	}
	if err := u.subs.LinkStripeAccount(ctx, userID, ev.CustomerID, ev.SubscriptionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A retry cannot materialize a missing profile row.
			u.log.Warn().Str("user_id", userID).Str("event_id", ev.ID).Msg("no profile for checkout user, dropping event")
			return nil
		}
		return fmt.Errorf("link billing account for user %s: %w", userID, err)
	}
	u.log.Info().Str("user_id", userID).Str("customer_id", ev.CustomerID).Msg("checkout completed, billing account linked")
	return nil
}

func (u *reconcileUC) handleSubscriptionCreated(ctx context.Context, ev model.SubscriptionCreated) error {
	tier, err := u.catalog.ResolveByPriceID(ctx, ev.PriceID)
	if err != nil {
		return fmt.Errorf("resolve tier for price %s: %w", ev.PriceID, err)
	}

	state, err := u.subs.FindByStripeCustomer(ctx, ev.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("customer_id", ev.CustomerID).Str("event_id", ev.ID).Msg("no user linked to customer, dropping event")
			return nil
		}
		return err
	}
	oldTier := state.TierCode

	u.applyChange(state, tier, ev.SubscriptionChange)
	start := model.DateOnlyUTC(ev.StartDate)
	state.StartDate = &start
	if err := u.subs.Upsert(ctx, state); err != nil {
		return fmt.Errorf("upsert subscription state: %w", err)
	}

	he := model.NewHistoryEvent(state.UserID, model.EventSubscriptionCreated, oldTier, tier.Code)
	amount := model.MinorToMajor(ev.UnitAmount)
	period := ev.Period()
	he.Amount = &amount
	he.BillingPeriod = &period
	he.StripeEventID = &ev.ID
	he.Metadata["status"] = ev.Status
	he.Metadata["subscription_id"] = ev.SubscriptionID
	if ev.TrialEnd != nil {
		he.Metadata["trial_end"] = model.DateOnlyUTC(*ev.TrialEnd)
	}
	he.Metadata["current_period_end"] = model.DateOnlyUTC(ev.CurrentPeriodEnd)
	u.appendHistory(ctx, he)

	template := u.templates.Upgrade
	if oldTier == model.TierFree {
		template = u.templates.Welcome
	}
	u.notify(ctx, state.UserID, template, map[string]string{
		"tier_name": tier.Name,
		"old_tier":  string(oldTier),
		"new_tier":  string(tier.Code),
	})

	u.log.Info().Str("user_id", state.UserID).Str("tier", string(tier.Code)).Msg("subscription created")
	return nil
}

func (u *reconcileUC) handleSubscriptionUpdated(ctx context.Context, ev model.SubscriptionUpdated) error {
	tier, err := u.catalog.ResolveByPriceID(ctx, ev.PriceID)
	if err != nil {
		return fmt.Errorf("resolve tier for price %s: %w", ev.PriceID, err)
	}

	// Updates correlate by subscription id, not customer id: a customer
	// may have held multiple subscriptions over time.
	state, err := u.subs.FindByStripeSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("subscription_id", ev.SubscriptionID).Str("event_id", ev.ID).Msg("no user linked to subscription, dropping event")
			return nil
		}
		return err
	}
	oldTier := state.TierCode

	u.applyChange(state, tier, ev.SubscriptionChange)
	if err := u.subs.Upsert(ctx, state); err != nil {
		return fmt.Errorf("upsert subscription state: %w", err)
	}

	eventType := model.EventSubscriptionUpdated
	template := ""
	if oldTier != tier.Code {
		oldRank := u.tierRank(ctx, oldTier)
		if tier.Rank > oldRank {
			eventType = model.EventTierUpgraded
			template = u.templates.Upgrade
		} else if tier.Rank < oldRank {
			eventType = model.EventTierDowngraded
			template = u.templates.Downgrade
		}
	}

	he := model.NewHistoryEvent(state.UserID, eventType, oldTier, tier.Code)
	amount := model.MinorToMajor(ev.UnitAmount)
	period := ev.Period()
	he.Amount = &amount
	he.BillingPeriod = &period
	he.StripeEventID = &ev.ID
	he.Metadata["status"] = ev.Status
	he.Metadata["subscription_id"] = ev.SubscriptionID
	he.Metadata["cancel_at_period_end"] = ev.CancelAtPeriodEnd
	he.Metadata["current_period_end"] = model.DateOnlyUTC(ev.CurrentPeriodEnd)
	u.appendHistory(ctx, he)

	if template != "" {
		u.notify(ctx, state.UserID, template, map[string]string{
			"tier_name": tier.Name,
			"old_tier":  string(oldTier),
			"new_tier":  string(tier.Code),
		})
	}

	u.log.Info().Str("user_id", state.UserID).Str("from", string(oldTier)).Str("to", string(tier.Code)).Str("event_type", string(eventType)).Msg("subscription updated")
	return nil
}

func (u *reconcileUC) handleSubscriptionDeleted(ctx context.Context, ev model.SubscriptionDeleted) error {
	state, err := u.subs.FindByStripeSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("subscription_id", ev.SubscriptionID).Str("event_id", ev.ID).Msg("no user linked to subscription, dropping event")
			return nil
		}
		return err
	}
	oldTier := state.TierCode

	if err := u.subs.DowngradeToFree(ctx, state.UserID, model.StatusCancelled); err != nil {
		return fmt.Errorf("downgrade user %s to free: %w", state.UserID, err)
	}

	he := model.NewHistoryEvent(state.UserID, model.EventSubscriptionCancelled, oldTier, model.TierFree)
	he.StripeEventID = &ev.ID
	if ev.CanceledAt > 0 {
		he.Metadata["cancelled_at"] = model.DateOnlyUTC(ev.CanceledAt)
	}
	u.appendHistory(ctx, he)

	oldName := string(oldTier)
	if t, err := u.catalog.GetByCode(ctx, oldTier); err == nil {
		oldName = t.Name
	}
	u.notify(ctx, state.UserID, u.templates.Cancelled, map[string]string{
		"tier_name": oldName,
	})

	u.log.Info().Str("user_id", state.UserID).Msg("subscription cancelled")
	return nil
}

// handlePaymentSucceeded only records the payment; tier changes always
// arrive via subscription events.
func (u *reconcileUC) handlePaymentSucceeded(ctx context.Context, ev model.InvoicePaymentSucceeded) error {
	state, err := u.subs.FindByStripeCustomer(ctx, ev.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("customer_id", ev.CustomerID).Str("event_id", ev.ID).Msg("no user linked to customer, dropping event")
			return nil
		}
		return err
	}

	he := model.NewHistoryEvent(state.UserID, model.EventPaymentSucceeded, state.TierCode, state.TierCode)
	amount := model.MinorToMajor(ev.AmountPaid)
	he.Amount = &amount
	he.StripeEventID = &ev.ID
	he.StripeInvoiceID = &ev.InvoiceID
	he.Metadata["subscription_id"] = ev.SubscriptionID
	if ev.PaidAt > 0 {
		he.Metadata["paid_at"] = model.DateOnlyUTC(ev.PaidAt)
	}
	u.appendHistory(ctx, he)

	u.log.Info().Str("user_id", state.UserID).Float64("amount", amount).Msg("payment succeeded")
	return nil
}

func (u *reconcileUC) handlePaymentFailed(ctx context.Context, ev model.InvoicePaymentFailed) error {
	state, err := u.subs.FindByStripeCustomer(ctx, ev.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("customer_id", ev.CustomerID).Str("event_id", ev.ID).Msg("no user linked to customer, dropping event")
			return nil
		}
		return err
	}

	if err := u.subs.MarkPastDue(ctx, state.UserID); err != nil {
		return fmt.Errorf("mark user %s past due: %w", state.UserID, err)
	}

	he := model.NewHistoryEvent(state.UserID, model.EventPaymentFailed, state.TierCode, state.TierCode)
	amount := model.MinorToMajor(ev.AmountDue)
	he.Amount = &amount
	he.StripeEventID = &ev.ID
	he.StripeInvoiceID = &ev.InvoiceID
	he.Metadata["attempt_count"] = ev.AttemptCount
	if ev.NextPaymentAttempt != nil {
		he.Metadata["next_payment_attempt"] = *ev.NextPaymentAttempt
	}
	u.appendHistory(ctx, he)

	u.log.Warn().Str("user_id", state.UserID).Float64("amount", amount).Int("attempt", ev.AttemptCount).Msg("payment failed")
	return nil
}

// applyChange writes the mutable fields a subscription lifecycle event
// carries onto the state row. Overwrites are idempotent: re-delivery of the
// same event re-applies the same values.
func (u *reconcileUC) applyChange(state *model.SubscriptionState, tier *model.Tier, ev model.SubscriptionChange) {
	state.TierCode = tier.Code
	state.Status = model.NormalizeStatus(ev.Status)
	state.BillingPeriod = ev.Period()
	end := model.DateOnlyUTC(ev.CurrentPeriodEnd)
	state.EndDate = &end
	state.StripeSubscriptionID = &ev.SubscriptionID
	state.StripePriceID = &ev.PriceID
	state.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
}

func (u *reconcileUC) tierRank(ctx context.Context, code model.TierCode) int {
	t, err := u.catalog.GetByCode(ctx, code)
	if err != nil {
		return 0
	}
	return t.Rank
}

// appendHistory is fire-and-forget: the entitlement change is the critical
// effect, the audit trail is secondary.
func (u *reconcileUC) appendHistory(ctx context.Context, he *model.HistoryEvent) {
	if err := u.history.Append(ctx, he); err != nil {
		u.log.Error().Err(err).Str("user_id", he.UserID).Str("event_type", string(he.EventType)).Msg("history append failed")
	}
}

// notify resolves the recipient and sends best-effort. A missing template
// id or user row skips the send silently; a provider failure is logged.
func (u *reconcileUC) notify(ctx context.Context, userID, templateID string, vars map[string]string) {
	if templateID == "" || u.notifier == nil {
		return
	}
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		u.log.Warn().Err(err).Str("user_id", userID).Msg("notification recipient lookup failed")
		return
	}
	if err := u.notifier.Send(ctx, user.Email, user.DisplayName(), templateID, vars); err != nil {
		u.log.Error().Err(err).Str("user_id", userID).Str("template", templateID).Msg("notification send failed")
	}
}
