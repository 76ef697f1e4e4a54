package repository

import (
	"context"

	"healthtrack-billing/internal/domain/model"
)

// HistoryRepository is the port for the append-only entitlement audit
// ledger. No update or delete operations are exposed.
type HistoryRepository interface {
	Append(ctx context.Context, ev *model.HistoryEvent) error
	// ListByUser returns the newest events first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.HistoryEvent, error)
}
