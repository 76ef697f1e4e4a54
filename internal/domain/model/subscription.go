package model

import "time"

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusTrialing  SubscriptionStatus = "trialing"
	StatusExpired   SubscriptionStatus = "expired"
)

// SubscriptionState is the single durable entitlement record per user.
// Rows are created implicitly (defaulted to free) and never hard-deleted;
// cancellation is a state transition.
type SubscriptionState struct {
	ID            string // UUID
	UserID        string // unique
	TierCode      TierCode
	Status        SubscriptionStatus
	BillingPeriod BillingPeriod
	// Coverage window. EndDate is the next renewal or the
	// cancellation-effective date. Dates are UTC, time-of-day zero.
	StartDate         *time.Time
	EndDate           *time.Time
	CancelAtPeriodEnd bool
	// Provider linkage. StripeSubscriptionID, once set, is the primary
	// correlation key for later update/delete events.
	StripeCustomerID     *string
	StripeSubscriptionID *string
	StripePriceID        *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DefaultSubscription materializes the implicit free-tier state for a user
// with no stored row. This is the single place the "no row means free"
// policy lives.
func DefaultSubscription(userID string) *SubscriptionState {
	now := time.Now()
	return &SubscriptionState{
		UserID:        userID,
		TierCode:      TierFree,
		Status:        StatusActive,
		BillingPeriod: PeriodMonthly,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NormalizeStatus maps a provider subscription status onto the internal
// enum. Unknown provider statuses degrade to active rather than rejecting
// the event.
func NormalizeStatus(s string) SubscriptionStatus {
	switch SubscriptionStatus(s) {
	case StatusActive, StatusPastDue, StatusTrialing, StatusExpired:
		return SubscriptionStatus(s)
	}
	switch s {
	case "canceled", "cancelled":
		return StatusCancelled
	case "unpaid":
		return StatusPastDue
	}
	return StatusActive
}
