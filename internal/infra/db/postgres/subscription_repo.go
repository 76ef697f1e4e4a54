package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.SubscriptionStateRepository = (*subscriptionStateRepo)(nil)

type subscriptionStateRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionStateRepo(pool *pgxpool.Pool) *subscriptionStateRepo {
	return &subscriptionStateRepo{pool: pool}
}

const stateColumns = `id, user_id, tier_code, status, billing_period, start_date, end_date,
       cancel_at_period_end, stripe_customer_id, stripe_subscription_id, stripe_price_id,
       created_at, updated_at`

func (r *subscriptionStateRepo) FindByUser(ctx context.Context, userID string) (*model.SubscriptionState, error) {
	const q = `
SELECT ` + stateColumns + `
  FROM subscription_states
 WHERE user_id = $1;`
	return r.queryOne(ctx, q, userID)
}

func (r *subscriptionStateRepo) FindByStripeCustomer(ctx context.Context, customerID string) (*model.SubscriptionState, error) {
	const q = `
SELECT ` + stateColumns + `
  FROM subscription_states
 WHERE stripe_customer_id = $1;`
	return r.queryOne(ctx, q, customerID)
}

func (r *subscriptionStateRepo) FindByStripeSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionState, error) {
	const q = `
SELECT ` + stateColumns + `
  FROM subscription_states
 WHERE stripe_subscription_id = $1;`
	return r.queryOne(ctx, q, subscriptionID)
}

func (r *subscriptionStateRepo) LinkStripeAccount(ctx context.Context, userID, customerID, subscriptionID string) error {
	// Creates the row on the free tier when the user was never evaluated
	// before; a NULLIF guard keeps an empty subscription id from
	// clobbering an existing linkage.
	const q = `
INSERT INTO subscription_states (
  id, user_id, tier_code, status, billing_period,
  stripe_customer_id, stripe_subscription_id, created_at, updated_at
) VALUES ($1, $2, 'free', 'active', 'monthly', $3, NULLIF($4,''), NOW(), NOW())
ON CONFLICT (user_id) DO UPDATE SET
  stripe_customer_id     = EXCLUDED.stripe_customer_id,
  stripe_subscription_id = COALESCE(NULLIF($4,''), subscription_states.stripe_subscription_id),
  updated_at             = NOW();`
	_, err := r.pool.Exec(ctx, q, uuid.NewString(), userID, customerID, subscriptionID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// FK violation: the user id has no profile row.
			return domain.ErrNotFound
		}
		return fmt.Errorf("LinkStripeAccount: %w", err)
	}
	return nil
}

func (r *subscriptionStateRepo) Upsert(ctx context.Context, s *model.SubscriptionState) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	const q = `
INSERT INTO subscription_states (
  id, user_id, tier_code, status, billing_period, start_date, end_date,
  cancel_at_period_end, stripe_customer_id, stripe_subscription_id, stripe_price_id,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW())
ON CONFLICT (user_id) DO UPDATE SET
  tier_code              = EXCLUDED.tier_code,
  status                 = EXCLUDED.status,
  billing_period         = EXCLUDED.billing_period,
  start_date             = COALESCE(EXCLUDED.start_date, subscription_states.start_date),
  end_date               = EXCLUDED.end_date,
  cancel_at_period_end   = EXCLUDED.cancel_at_period_end,
  stripe_customer_id     = COALESCE(EXCLUDED.stripe_customer_id, subscription_states.stripe_customer_id),
  stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscription_states.stripe_subscription_id),
  stripe_price_id        = COALESCE(EXCLUDED.stripe_price_id, subscription_states.stripe_price_id),
  updated_at             = NOW();`
	_, err := r.pool.Exec(ctx, q,
		s.ID, s.UserID, s.TierCode, s.Status, s.BillingPeriod, s.StartDate, s.EndDate,
		s.CancelAtPeriodEnd, s.StripeCustomerID, s.StripeSubscriptionID, s.StripePriceID,
	)
	if err != nil {
		return fmt.Errorf("Upsert subscription state: %w", err)
	}
	return nil
}

func (r *subscriptionStateRepo) DowngradeToFree(ctx context.Context, userID string, status model.SubscriptionStatus) error {
	const q = `
UPDATE subscription_states SET
  tier_code            = 'free',
  status               = $2,
  billing_period       = 'monthly',
  cancel_at_period_end = false,
  updated_at           = NOW()
 WHERE user_id = $1;`
	ct, err := r.pool.Exec(ctx, q, userID, status)
	if err != nil {
		return fmt.Errorf("DowngradeToFree: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionStateRepo) MarkPastDue(ctx context.Context, userID string) error {
	const q = `
UPDATE subscription_states SET status = 'past_due', updated_at = NOW()
 WHERE user_id = $1;`
	ct, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return fmt.Errorf("MarkPastDue: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionStateRepo) FindLapsed(ctx context.Context, asOf time.Time) ([]*model.SubscriptionState, error) {
	const q = `
SELECT ` + stateColumns + `
  FROM subscription_states
 WHERE tier_code <> 'free'
   AND end_date IS NOT NULL
   AND end_date < $1
   AND status IN ('active','trialing','past_due','cancelled')
 ORDER BY end_date ASC;`
	rows, err := r.pool.Query(ctx, q, asOf)
	if err != nil {
		return nil, fmt.Errorf("FindLapsed: %w", err)
	}
	defer rows.Close()
	var out []*model.SubscriptionState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriptionStateRepo) queryOne(ctx context.Context, q string, arg any) (*model.SubscriptionState, error) {
	s, err := scanState(r.pool.QueryRow(ctx, q, arg))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query subscription state: %w", err)
	}
	return s, nil
}

func scanState(row pgx.Row) (*model.SubscriptionState, error) {
	var s model.SubscriptionState
	if err := row.Scan(
		&s.ID, &s.UserID, &s.TierCode, &s.Status, &s.BillingPeriod, &s.StartDate, &s.EndDate,
		&s.CancelAtPeriodEnd, &s.StripeCustomerID, &s.StripeSubscriptionID, &s.StripePriceID,
		&s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
