package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.TierRepository = (*tierRepo)(nil)

type tierRepo struct {
	pool *pgxpool.Pool
}

func NewTierRepo(pool *pgxpool.Pool) *tierRepo {
	return &tierRepo{pool: pool}
}

const tierColumns = `tier_code, name, rank, price_monthly, price_yearly, features,
       stripe_price_id_monthly, stripe_price_id_yearly, is_active, display_order, created_at`

func (r *tierRepo) Save(ctx context.Context, t *model.Tier) error {
	features, err := json.Marshal(t.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	const q = `
INSERT INTO subscription_tiers (
  tier_code, name, rank, price_monthly, price_yearly, features,
  stripe_price_id_monthly, stripe_price_id_yearly, is_active, display_order, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (tier_code) DO UPDATE SET
  name                    = EXCLUDED.name,
  rank                    = EXCLUDED.rank,
  price_monthly           = EXCLUDED.price_monthly,
  price_yearly            = EXCLUDED.price_yearly,
  features                = EXCLUDED.features,
  stripe_price_id_monthly = EXCLUDED.stripe_price_id_monthly,
  stripe_price_id_yearly  = EXCLUDED.stripe_price_id_yearly,
  is_active               = EXCLUDED.is_active,
  display_order           = EXCLUDED.display_order;`

	_, err = r.pool.Exec(ctx, q,
		t.Code, t.Name, t.Rank, t.PriceMonthly, t.PriceYearly, features,
		t.StripePriceMonthly, t.StripePriceYearly, t.Active, t.DisplayOrder, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Save tier: %w", err)
	}
	return nil
}

func (r *tierRepo) FindByCode(ctx context.Context, code model.TierCode) (*model.Tier, error) {
	const q = `
SELECT ` + tierColumns + `
  FROM subscription_tiers
 WHERE tier_code = $1;`
	t, err := scanTier(r.pool.QueryRow(ctx, q, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByCode tier: %w", err)
	}
	return t, nil
}

func (r *tierRepo) ListActive(ctx context.Context) ([]*model.Tier, error) {
	const q = `
SELECT ` + tierColumns + `
  FROM subscription_tiers
 WHERE is_active = true
 ORDER BY rank ASC;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListActive tiers: %w", err)
	}
	defer rows.Close()
	var out []*model.Tier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanTier(row pgx.Row) (*model.Tier, error) {
	var t model.Tier
	var features []byte
	if err := row.Scan(
		&t.Code, &t.Name, &t.Rank, &t.PriceMonthly, &t.PriceYearly, &features,
		&t.StripePriceMonthly, &t.StripePriceYearly, &t.Active, &t.DisplayOrder, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &t.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
	}
	return &t, nil
}
