package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type HistoryEventType string

const (
	EventSubscriptionCreated   HistoryEventType = "subscription_created"
	EventSubscriptionUpdated   HistoryEventType = "subscription_updated"
	EventTierUpgraded          HistoryEventType = "tier_upgraded"
	EventTierDowngraded        HistoryEventType = "tier_downgraded"
	EventSubscriptionCancelled HistoryEventType = "subscription_cancelled"
	EventSubscriptionExpired   HistoryEventType = "subscription_expired"
	EventPaymentSucceeded      HistoryEventType = "payment_succeeded"
	EventPaymentFailed         HistoryEventType = "payment_failed"
)

// HistoryEvent is one append-only audit record. Immutable once written;
// ordering by CreatedAt (or by the ULID id) reconstructs a user's
// entitlement timeline.
type HistoryEvent struct {
	ID            string // ULID, lexically time-ordered
	UserID        string
	EventType     HistoryEventType
	FromTier      TierCode
	ToTier        TierCode
	Amount        *float64 // major units
	BillingPeriod *BillingPeriod
	// Provider identifiers for traceability; consumers may de-duplicate
	// re-delivered events on StripeEventID at read time.
	StripeEventID   *string
	StripeInvoiceID *string
	Metadata        map[string]any
	CreatedAt       time.Time
}

// NewHistoryEvent assigns the id and timestamp; remaining fields are set by
// the caller.
func NewHistoryEvent(userID string, eventType HistoryEventType, from, to TierCode) *HistoryEvent {
	return &HistoryEvent{
		ID:        ulid.Make().String(),
		UserID:    userID,
		EventType: eventType,
		FromTier:  from,
		ToTier:    to,
		Metadata:  map[string]any{},
		CreatedAt: time.Now(),
	}
}
