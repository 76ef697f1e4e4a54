package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/ports/adapter"
	"healthtrack-billing/internal/infra/metrics"
)

const sendEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// Ensure interface compliance
var _ adapter.Notifier = (*EmailJSNotifier)(nil)

// EmailJSNotifier sends templated transactional email through the EmailJS
// REST API. When credentials are absent it degrades to a logged no-op so
// the reconciler keeps working without a mail provider.
type EmailJSNotifier struct {
	serviceID  string
	publicKey  string
	privateKey string
	http       *http.Client
	log        zerolog.Logger
}

func NewEmailJSNotifier(serviceID, publicKey, privateKey string, logger zerolog.Logger) *EmailJSNotifier {
	return &EmailJSNotifier{
		serviceID:  serviceID,
		publicKey:  publicKey,
		privateKey: privateKey,
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        logger.With().Str("component", "EmailJSNotifier").Logger(),
	}
}

func (n *EmailJSNotifier) configured() bool {
	return n.serviceID != "" && n.publicKey != ""
}

func (n *EmailJSNotifier) Send(ctx context.Context, toEmail, toName, templateID string, vars map[string]string) error {
	if !n.configured() {
		n.log.Debug().Str("template", templateID).Msg("notifier not configured, skipping send")
		metrics.IncNotification("skipped")
		return nil
	}
	if toEmail == "" {
		return fmt.Errorf("send notification: recipient email empty: %w", domain.ErrInvalidArgument)
	}

	params := map[string]string{
		"to_email": toEmail,
		"to_name":  toName,
	}
	for k, v := range vars {
		params[k] = v
	}
	payload := map[string]any{
		"service_id":      n.serviceID,
		"template_id":     templateID,
		"user_id":         n.publicKey,
		"accessToken":     n.privateKey,
		"template_params": params,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		metrics.IncNotification("failed")
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.IncNotification("failed")
		return fmt.Errorf("send email: status %d: %s: %w", resp.StatusCode, string(data), domain.ErrOperationFailed)
	}

	metrics.IncNotification("sent")
	n.log.Info().Str("template", templateID).Msg("notification sent")
	return nil
}
