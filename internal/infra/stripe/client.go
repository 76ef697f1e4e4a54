package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/adapter"
)

const apiBase = "https://api.stripe.com/v1"

// Ensure interface compliance
var _ adapter.BillingGateway = (*Client)(nil)

// Client talks to the provider's REST API with form-encoded requests.
type Client struct {
	secretKey string
	http      *http.Client
	log       zerolog.Logger
}

func NewClient(secretKey string, logger zerolog.Logger) *Client {
	return &Client{
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       logger.With().Str("component", "StripeClient").Logger(),
	}
}

func (c *Client) Name() string { return "stripe" }

// apiError is the provider's error envelope.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	if c.secretKey == "" {
		return domain.ErrNotConfigured
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.Unmarshal(data, &apiErr)
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("code", apiErr.Error.Code).
			Msg("stripe api error")
		return fmt.Errorf("stripe %s %s: status %d: %s: %w",
			method, path, resp.StatusCode, apiErr.Error.Message, domain.ErrOperationFailed)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p adapter.CheckoutSessionParams) (*adapter.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", p.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	if p.ClientReferenceID != "" {
		form.Set("client_reference_id", p.ClientReferenceID)
	}
	if p.CustomerID != "" {
		form.Set("customer", p.CustomerID)
	} else {
		if p.CustomerEmail != "" {
			form.Set("customer_email", p.CustomerEmail)
		}
		form.Set("customer_creation", "always")
	}
	for k, v := range p.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}
	for k, v := range p.SubscriptionMeta {
		form.Set(fmt.Sprintf("subscription_data[metadata][%s]", k), v)
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", form, &out); err != nil {
		return nil, err
	}
	return &adapter.CheckoutSession{ID: out.ID, URL: out.URL}, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/billing_portal/sessions", form, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// EnsureRecurringPrice finds a product tagged with the tier code, creating
// it when absent, then creates a fresh recurring price on it. Prices are
// immutable on the provider side so a new one is minted per call.
func (c *Client) EnsureRecurringPrice(ctx context.Context, productName string, tierCode model.TierCode, period model.BillingPeriod, amountMajor float64) (string, error) {
	productID, err := c.findProductByTier(ctx, tierCode)
	if err != nil {
		return "", err
	}
	if productID == "" {
		productID, err = c.createProduct(ctx, productName, tierCode)
		if err != nil {
			return "", err
		}
	}

	interval := "month"
	if period == model.PeriodYearly {
		interval = "year"
	}
	form := url.Values{}
	form.Set("product", productID)
	form.Set("currency", "usd")
	form.Set("unit_amount", strconv.FormatInt(model.MajorToMinor(amountMajor), 10))
	form.Set("recurring[interval]", interval)

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/prices", form, &out); err != nil {
		return "", err
	}
	c.log.Info().
		Str("tier", string(tierCode)).
		Str("interval", interval).
		Str("price_id", out.ID).
		Msg("created recurring price")
	return out.ID, nil
}

func (c *Client) findProductByTier(ctx context.Context, tierCode model.TierCode) (string, error) {
	var out struct {
		Data []struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/products?active=true&limit=100", nil, &out); err != nil {
		return "", err
	}
	for _, p := range out.Data {
		if p.Metadata["tier_code"] == string(tierCode) {
			return p.ID, nil
		}
	}
	return "", nil
}

func (c *Client) createProduct(ctx context.Context, name string, tierCode model.TierCode) (string, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("metadata[tier_code]", string(tierCode))

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/products", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
