package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"healthtrack-billing/internal/domain/model"
)

// eventEnvelope is the outer shape of every provider webhook delivery.
type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSessionObject struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	StartDate         int64  `json:"start_date"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CanceledAt        int64  `json:"canceled_at"`
	TrialEnd          *int64 `json:"trial_end"`
	Items             struct {
		Data []struct {
			Price struct {
				ID         string `json:"id"`
				UnitAmount int64  `json:"unit_amount"`
				Recurring  struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type invoiceObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Subscription       string `json:"subscription"`
	AmountPaid         int64  `json:"amount_paid"`
	AmountDue          int64  `json:"amount_due"`
	AttemptCount       int    `json:"attempt_count"`
	NextPaymentAttempt *int64 `json:"next_payment_attempt"`
	StatusTransitions  struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}

// ConstructEvent verifies the delivery signature and decodes the payload
// into the typed event union. Unknown event types come back as
// model.UnhandledEvent, never as an error.
func ConstructEvent(payload []byte, sigHeader, secret string, tolerance time.Duration) (model.BillingEvent, error) {
	if err := VerifySignature(payload, sigHeader, secret, tolerance, time.Now()); err != nil {
		return nil, err
	}
	return ParseEvent(payload)
}

// ParseEvent decodes an already-verified payload.
func ParseEvent(payload []byte) (model.BillingEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	switch env.Type {
	case "checkout.session.completed":
		var obj checkoutSessionObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		return model.CheckoutCompleted{
			ID:                env.ID,
			CustomerID:        obj.Customer,
			SubscriptionID:    obj.Subscription,
			ClientReferenceID: obj.ClientReferenceID,
			Metadata:          obj.Metadata,
		}, nil
	case "customer.subscription.created":
		ch, err := decodeSubscriptionChange(env)
		if err != nil {
			return nil, err
		}
		return model.SubscriptionCreated{SubscriptionChange: ch}, nil
	case "customer.subscription.updated":
		ch, err := decodeSubscriptionChange(env)
		if err != nil {
			return nil, err
		}
		return model.SubscriptionUpdated{SubscriptionChange: ch}, nil
	case "customer.subscription.deleted":
		var obj subscriptionObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		return model.SubscriptionDeleted{
			ID:             env.ID,
			SubscriptionID: obj.ID,
			CustomerID:     obj.Customer,
			CanceledAt:     obj.CanceledAt,
		}, nil
	case "invoice.payment_succeeded":
		var obj invoiceObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		return model.InvoicePaymentSucceeded{
			ID:             env.ID,
			InvoiceID:      obj.ID,
			CustomerID:     obj.Customer,
			SubscriptionID: obj.Subscription,
			AmountPaid:     obj.AmountPaid,
			PaidAt:         obj.StatusTransitions.PaidAt,
		}, nil
	case "invoice.payment_failed":
		var obj invoiceObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		return model.InvoicePaymentFailed{
			ID:                 env.ID,
			InvoiceID:          obj.ID,
			CustomerID:         obj.Customer,
			AmountDue:          obj.AmountDue,
			AttemptCount:       obj.AttemptCount,
			NextPaymentAttempt: obj.NextPaymentAttempt,
		}, nil
	default:
		return model.UnhandledEvent{ID: env.ID, Type: env.Type}, nil
	}
}

func decodeSubscriptionChange(env eventEnvelope) (model.SubscriptionChange, error) {
	var obj subscriptionObject
	if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
		return model.SubscriptionChange{}, fmt.Errorf("decode subscription: %w", err)
	}
	ch := model.SubscriptionChange{
		ID:                env.ID,
		SubscriptionID:    obj.ID,
		CustomerID:        obj.Customer,
		Status:            obj.Status,
		StartDate:         obj.StartDate,
		CurrentPeriodEnd:  obj.CurrentPeriodEnd,
		CancelAtPeriodEnd: obj.CancelAtPeriodEnd,
		TrialEnd:          obj.TrialEnd,
	}
	if len(obj.Items.Data) > 0 {
		price := obj.Items.Data[0].Price
		ch.PriceID = price.ID
		ch.UnitAmount = price.UnitAmount
		ch.Interval = price.Recurring.Interval
	}
	return ch, nil
}
