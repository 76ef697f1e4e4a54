// File: internal/usecase/catalog_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ CatalogUseCase = (*catalogUC)(nil)

// CatalogUseCase exposes the read side of the tier catalog.
type CatalogUseCase interface {
	// List returns active tiers in ascending rank order.
	List(ctx context.Context) ([]*model.Tier, error)
	GetByCode(ctx context.Context, code model.TierCode) (*model.Tier, error)
	// ResolveByPriceID maps a provider price id onto a tier, falling back
	// to the free tier for unrecognized ids: an unknown price must never
	// block reconciliation, only degrade it.
	ResolveByPriceID(ctx context.Context, priceID string) (*model.Tier, error)
	// FreeTier never fails; it degrades to the built-in bundle when the
	// catalog has no free row.
	FreeTier(ctx context.Context) *model.Tier
}

type catalogUC struct {
	tiers repository.TierRepository
	log   *zerolog.Logger
}

func NewCatalogUseCase(tiers repository.TierRepository, logger *zerolog.Logger) *catalogUC {
	l := logger.With().Str("component", "CatalogUC").Logger()
	return &catalogUC{tiers: tiers, log: &l}
}

func (u *catalogUC) List(ctx context.Context) ([]*model.Tier, error) {
	return u.tiers.ListActive(ctx)
}

func (u *catalogUC) GetByCode(ctx context.Context, code model.TierCode) (*model.Tier, error) {
	return u.tiers.FindByCode(ctx, code)
}

func (u *catalogUC) ResolveByPriceID(ctx context.Context, priceID string) (*model.Tier, error) {
	tiers, err := u.tiers.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tiers {
		if t.MatchesPrice(priceID) {
			return t, nil
		}
	}
	u.log.Warn().Str("price_id", priceID).Msg("price id not in catalog, falling back to free tier")
	return u.FreeTier(ctx), nil
}

func (u *catalogUC) FreeTier(ctx context.Context) *model.Tier {
	t, err := u.tiers.FindByCode(ctx, model.TierFree)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			u.log.Error().Err(err).Msg("loading free tier")
		}
		return model.FallbackFreeTier()
	}
	return t
}
