// File: internal/usecase/expiry_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ ExpiryUseCase = (*expiryUC)(nil)

// ExpiryUseCase is the safety net for missed deletion webhooks: paid states
// whose coverage window lapsed are swept back to the free tier.
type ExpiryUseCase interface {
	// SweepExpired downgrades every lapsed paid subscription and returns
	// how many were downgraded.
	SweepExpired(ctx context.Context) (int, error)
}

type expiryUC struct {
	subs    repository.SubscriptionStateRepository
	history repository.HistoryRepository
	log     *zerolog.Logger
}

func NewExpiryUseCase(
	subs repository.SubscriptionStateRepository,
	history repository.HistoryRepository,
	logger *zerolog.Logger,
) *expiryUC {
	l := logger.With().Str("component", "ExpiryUC").Logger()
	return &expiryUC{subs: subs, history: history, log: &l}
}

func (u *expiryUC) SweepExpired(ctx context.Context) (int, error) {
	lapsed, err := u.subs.FindLapsed(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("find lapsed subscriptions: %w", err)
	}

	count := 0
	for _, state := range lapsed {
		if err := u.subs.DowngradeToFree(ctx, state.UserID, model.StatusExpired); err != nil {
			// Keep sweeping; the next tick retries this row.
			u.log.Error().Err(err).Str("user_id", state.UserID).Msg("expiry downgrade failed")
			continue
		}
		he := model.NewHistoryEvent(state.UserID, model.EventSubscriptionExpired, state.TierCode, model.TierFree)
		if state.EndDate != nil {
			he.Metadata["end_date"] = *state.EndDate
		}
		if err := u.history.Append(ctx, he); err != nil {
			u.log.Error().Err(err).Str("user_id", state.UserID).Msg("history append failed")
		}
		count++
	}
	return count, nil
}
