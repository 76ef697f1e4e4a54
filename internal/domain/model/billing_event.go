package model

// BillingEvent is the closed set of provider lifecycle events the
// reconciler understands, decoded from the webhook envelope. Routing
// switches over the concrete type, with UnhandledEvent as the explicit
// catch-all variant so unknown-but-harmless event types are acknowledged
// rather than retried.
type BillingEvent interface {
	// EventID is the provider's event envelope id (evt_...).
	EventID() string
	// EventType is the provider's raw type discriminator.
	EventType() string
}

// CheckoutCompleted links a finished checkout session to the user that
// started it.
type CheckoutCompleted struct {
	ID                string
	CustomerID        string
	SubscriptionID    string
	ClientReferenceID string
	Metadata          map[string]string
}

func (e CheckoutCompleted) EventID() string   { return e.ID }
func (e CheckoutCompleted) EventType() string { return "checkout.session.completed" }

// UserID returns the internal user correlation id carried on the session,
// or "" when the checkout was not attributable to a user.
func (e CheckoutCompleted) UserID() string {
	if e.ClientReferenceID != "" {
		return e.ClientReferenceID
	}
	return e.Metadata["user_id"]
}

// SubscriptionChange carries the fields shared by created and updated
// subscription events.
type SubscriptionChange struct {
	ID                string
	SubscriptionID    string
	CustomerID        string
	PriceID           string
	Status            string
	Interval          string // "month" | "year"
	UnitAmount        int64  // minor units
	StartDate         int64  // epoch seconds
	CurrentPeriodEnd  int64  // epoch seconds
	CancelAtPeriodEnd bool
	TrialEnd          *int64
}

func (e SubscriptionChange) EventID() string { return e.ID }

// Period maps the provider recurrence interval onto the internal enum.
func (e SubscriptionChange) Period() BillingPeriod {
	if e.Interval == "year" {
		return PeriodYearly
	}
	return PeriodMonthly
}

type SubscriptionCreated struct{ SubscriptionChange }

func (e SubscriptionCreated) EventType() string { return "customer.subscription.created" }

type SubscriptionUpdated struct{ SubscriptionChange }

func (e SubscriptionUpdated) EventType() string { return "customer.subscription.updated" }

type SubscriptionDeleted struct {
	ID             string
	SubscriptionID string
	CustomerID     string
	CanceledAt     int64 // epoch seconds
}

func (e SubscriptionDeleted) EventID() string   { return e.ID }
func (e SubscriptionDeleted) EventType() string { return "customer.subscription.deleted" }

type InvoicePaymentSucceeded struct {
	ID             string
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
	AmountPaid     int64 // minor units
	PaidAt         int64 // epoch seconds
}

func (e InvoicePaymentSucceeded) EventID() string   { return e.ID }
func (e InvoicePaymentSucceeded) EventType() string { return "invoice.payment_succeeded" }

type InvoicePaymentFailed struct {
	ID                 string
	InvoiceID          string
	CustomerID         string
	AmountDue          int64 // minor units
	AttemptCount       int
	NextPaymentAttempt *int64 // epoch seconds
}

func (e InvoicePaymentFailed) EventID() string   { return e.ID }
func (e InvoicePaymentFailed) EventType() string { return "invoice.payment_failed" }

// UnhandledEvent carries the raw type string of an event kind the
// reconciler does not act on.
type UnhandledEvent struct {
	ID   string
	Type string
}

func (e UnhandledEvent) EventID() string   { return e.ID }
func (e UnhandledEvent) EventType() string { return e.Type }
