package repository

import (
	"context"
	"time"

	"healthtrack-billing/internal/domain/model"
)

// SubscriptionStateRepository is the port for the durable per-user
// entitlement record. Writes are field-level upserts so re-delivered
// webhook events re-apply the same values instead of corrupting state.
type SubscriptionStateRepository interface {
	// FindByUser returns domain.ErrNotFound when the user has no row; the
	// caller materializes the free default.
	FindByUser(ctx context.Context, userID string) (*model.SubscriptionState, error)
	FindByStripeCustomer(ctx context.Context, customerID string) (*model.SubscriptionState, error)
	FindByStripeSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionState, error)

	// LinkStripeAccount records the customer/subscription linkage after a
	// completed checkout, creating the row on the free tier if absent.
	LinkStripeAccount(ctx context.Context, userID, customerID, subscriptionID string) error

	// Upsert writes the full mutable field set, keyed by user id.
	Upsert(ctx context.Context, s *model.SubscriptionState) error

	// DowngradeToFree forces tier free with the given terminal status and
	// clears the scheduled-cancellation flag.
	DowngradeToFree(ctx context.Context, userID string, status model.SubscriptionStatus) error

	MarkPastDue(ctx context.Context, userID string) error

	// FindLapsed returns paid states whose coverage window ended before
	// asOf and which have not yet been downgraded.
	FindLapsed(ctx context.Context, asOf time.Time) ([]*model.SubscriptionState, error)
}
