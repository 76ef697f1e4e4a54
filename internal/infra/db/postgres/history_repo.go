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
	"healthtrack-billing/internal/infra/metrics"
)

// Ensure interface compliance
var _ repository.HistoryRepository = (*historyRepo)(nil)

// historyRepo is the append-only entitlement ledger. There is deliberately
// no UPDATE or DELETE here.
type historyRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *historyRepo {
	return &historyRepo{pool: pool}
}

func (r *historyRepo) Append(ctx context.Context, ev *model.HistoryEvent) error {
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal history metadata: %w", err)
	}
	const q = `
INSERT INTO subscription_history (
  id, user_id, event_type, from_tier, to_tier, amount, billing_period,
  stripe_event_id, stripe_invoice_id, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`
	_, err = r.pool.Exec(ctx, q,
		ev.ID, ev.UserID, ev.EventType, ev.FromTier, ev.ToTier, ev.Amount, ev.BillingPeriod,
		ev.StripeEventID, ev.StripeInvoiceID, meta, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Append history: %w", err)
	}
	if dir := transitionDirection(ev.EventType); dir != "" {
		metrics.IncTierTransition(dir)
	}
	return nil
}

func transitionDirection(t model.HistoryEventType) string {
	switch t {
	case model.EventSubscriptionCreated:
		return "created"
	case model.EventTierUpgraded:
		return "upgraded"
	case model.EventTierDowngraded:
		return "downgraded"
	case model.EventSubscriptionCancelled:
		return "cancelled"
	case model.EventSubscriptionExpired:
		return "expired"
	}
	return ""
}

func (r *historyRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.HistoryEvent, error) {
	const q = `
SELECT id, user_id, event_type, from_tier, to_tier, amount, billing_period,
       stripe_event_id, stripe_invoice_id, metadata, created_at
  FROM subscription_history
 WHERE user_id = $1
 ORDER BY created_at DESC
 LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByUser history: %w", err)
	}
	defer rows.Close()
	var out []*model.HistoryEvent
	for rows.Next() {
		ev, err := scanHistory(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanHistory(row pgx.Row) (*model.HistoryEvent, error) {
	var ev model.HistoryEvent
	var meta []byte
	if err := row.Scan(
		&ev.ID, &ev.UserID, &ev.EventType, &ev.FromTier, &ev.ToTier, &ev.Amount, &ev.BillingPeriod,
		&ev.StripeEventID, &ev.StripeInvoiceID, &meta, &ev.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &ev.Metadata); err != nil {
			return nil, err
		}
	}
	return &ev, nil
}
