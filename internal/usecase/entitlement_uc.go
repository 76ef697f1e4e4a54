// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// Decision is the answer to a feature gate check. Value carries the
// resolved feature value (a limit, a method list) for display at the call
// site.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Value   any    `json:"value,omitempty"`
}

// HistoryWindow is the retention limit derived from a tier bundle.
type HistoryWindow struct {
	Days      int        `json:"days"`
	Unlimited bool       `json:"unlimited"`
	Cutoff    *time.Time `json:"cutoff,omitempty"`
}

// EntitlementUseCase answers "what may this user access". Evaluation is
// total: absence of data is a negative answer, never an error.
type EntitlementUseCase interface {
	// CanAccess compares tier ranks: current grants required iff
	// rank(current) >= rank(required). A required code missing from the
	// catalog is denied.
	CanAccess(ctx context.Context, current, required model.TierCode) bool
	CanAccessFeature(ctx context.Context, userID, featurePath string) Decision
	// CurrentSubscription returns the user's state (materialized free
	// default when absent) together with its catalog tier.
	CurrentSubscription(ctx context.Context, userID string) (*model.SubscriptionState, *model.Tier, error)
	HistoryLimit(ctx context.Context, userID string) HistoryWindow
	HasPaidSubscription(ctx context.Context, userID string) bool
	History(ctx context.Context, userID string, limit int) ([]*model.HistoryEvent, error)
}

type entitlementUC struct {
	catalog CatalogUseCase
	subs    repository.SubscriptionStateRepository
	history repository.HistoryRepository
	log     *zerolog.Logger
}

func NewEntitlementUseCase(
	catalog CatalogUseCase,
	subs repository.SubscriptionStateRepository,
	history repository.HistoryRepository,
	logger *zerolog.Logger,
) *entitlementUC {
	l := logger.With().Str("component", "EntitlementUC").Logger()
	return &entitlementUC{catalog: catalog, subs: subs, history: history, log: &l}
}

// rankOf resolves a tier's rank, treating unknown codes as free (rank 0)
// so gating never crashes on a stale tier code.
func (u *entitlementUC) rankOf(ctx context.Context, code model.TierCode) int {
	t, err := u.catalog.GetByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			u.log.Error().Err(err).Str("tier", string(code)).Msg("rank lookup")
		}
		return 0
	}
	return t.Rank
}

// CanAccess degrades an unknown current code to free, but denies outright
// when the required code is not in the catalog: a gate against a tier that
// does not exist must not open for everyone.
func (u *entitlementUC) CanAccess(ctx context.Context, current, required model.TierCode) bool {
	req, err := u.catalog.GetByCode(ctx, required)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			u.log.Error().Err(err).Str("tier", string(required)).Msg("rank lookup")
		}
		return false
	}
	return u.rankOf(ctx, current) >= req.Rank
}

func (u *entitlementUC) CurrentSubscription(ctx context.Context, userID string) (*model.SubscriptionState, *model.Tier, error) {
	state, err := u.subs.FindByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, nil, err
		}
		state = model.DefaultSubscription(userID)
	}
	tier, err := u.catalog.GetByCode(ctx, state.TierCode)
	if err != nil {
		// Stale tier code behaves as free rather than failing the caller.
		tier = u.catalog.FreeTier(ctx)
	}
	return state, tier, nil
}

func (u *entitlementUC) CanAccessFeature(ctx context.Context, userID, featurePath string) Decision {
	_, tier, err := u.CurrentSubscription(ctx, userID)
	if err != nil {
		u.log.Error().Err(err).Str("user_id", userID).Str("feature", featurePath).Msg("feature check")
		return Decision{Allowed: false, Reason: "error checking access"}
	}

	value, ok := tier.Features.Resolve(featurePath)
	if !ok {
		return Decision{Allowed: false, Reason: "feature not found"}
	}
	if !model.FeatureValueAllows(value) {
		return Decision{Allowed: false, Reason: "feature not available in current tier", Value: value}
	}
	return Decision{Allowed: true, Value: value}
}

func (u *entitlementUC) HistoryLimit(ctx context.Context, userID string) HistoryWindow {
	_, tier, err := u.CurrentSubscription(ctx, userID)
	if err != nil || tier.Features.HistoryDays == nil {
		if err != nil {
			// Fall back to the most restrictive window on lookup failure.
			days := 7
			cutoff := time.Now().AddDate(0, 0, -days)
			return HistoryWindow{Days: days, Cutoff: &cutoff}
		}
		return HistoryWindow{Unlimited: true}
	}
	days := *tier.Features.HistoryDays
	cutoff := time.Now().AddDate(0, 0, -days)
	return HistoryWindow{Days: days, Cutoff: &cutoff}
}

func (u *entitlementUC) HasPaidSubscription(ctx context.Context, userID string) bool {
	state, _, err := u.CurrentSubscription(ctx, userID)
	if err != nil {
		return false
	}
	return state.TierCode != model.TierFree && state.Status == model.StatusActive
}

func (u *entitlementUC) History(ctx context.Context, userID string, limit int) ([]*model.HistoryEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	return u.history.ListByUser(ctx, userID, limit)
}
