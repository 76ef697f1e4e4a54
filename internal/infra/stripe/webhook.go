package stripe

import (
	"time"

	"healthtrack-billing/internal/domain/model"
)

// WebhookDecoder binds the endpoint secret and replay tolerance so the web
// layer can verify-and-decode deliveries without touching configuration.
type WebhookDecoder struct {
	secret    string
	tolerance time.Duration
}

func NewWebhookDecoder(secret string, tolerance time.Duration) *WebhookDecoder {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &WebhookDecoder{secret: secret, tolerance: tolerance}
}

func (d *WebhookDecoder) Decode(payload []byte, sigHeader string) (model.BillingEvent, error) {
	return ConstructEvent(payload, sigHeader, d.secret, d.tolerance)
}
