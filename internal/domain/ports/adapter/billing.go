package adapter

import (
	"context"

	"healthtrack-billing/internal/domain/model"
)

// CheckoutSessionParams carries everything the provider needs to start a
// hosted subscription checkout. Correlation metadata is attached to BOTH
// the session and the resulting subscription so webhook events can resolve
// the user before any customer-id linkage exists.
type CheckoutSessionParams struct {
	PriceID           string
	CustomerID        string // reuse an existing provider customer when set
	CustomerEmail     string // used to create a customer when CustomerID is empty
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
	SubscriptionMeta  map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// BillingGateway is the hex port for the external billing provider.
type BillingGateway interface {
	Name() string

	CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error)

	// CreatePortalSession opens a self-service billing-management session
	// for an existing provider customer.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (url string, err error)

	// EnsureRecurringPrice finds or creates a product for the tier and
	// creates a recurring price in minor units for the given period.
	EnsureRecurringPrice(ctx context.Context, productName string, tierCode model.TierCode, period model.BillingPeriod, amountMajor float64) (priceID string, err error)
}
