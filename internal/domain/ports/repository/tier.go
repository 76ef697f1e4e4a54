package repository

import (
	"context"

	"healthtrack-billing/internal/domain/model"
)

// TierRepository is the port for the subscription tier catalog.
type TierRepository interface {
	Save(ctx context.Context, tier *model.Tier) error
	FindByCode(ctx context.Context, code model.TierCode) (*model.Tier, error)
	// ListActive returns active tiers in ascending rank order.
	ListActive(ctx context.Context) ([]*model.Tier, error)
}
