package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/telemetry"
)

// Provisioner places a single eSIM order with the supplier.
type Provisioner interface {
	Provision(ctx context.Context, packageID string) (*domain.Artifact, error)
}

// Config holds supplier API settings.
type Config struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	Timeout           time.Duration
	TokenSafetyMargin time.Duration
}

// Client talks to the supplier's partner API. It is safe for concurrent use.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	tokens       *TokenCache
}

var (
	_ Provisioner    = (*Client)(nil)
	_ TokenExchanger = (*Client)(nil)
)

// NewClient creates a supplier client with its own token cache.
func NewClient(cfg Config, opts ...TokenCacheOption) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &telemetry.HTTPTransport{Transport: http.DefaultTransport},
		},
	}

	if cfg.TokenSafetyMargin > 0 {
		opts = append([]TokenCacheOption{WithSafetyMargin(cfg.TokenSafetyMargin)}, opts...)
	}
	c.tokens = NewTokenCache(c, opts...)

	return c, nil
}

type supplierMeta struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Data struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	} `json:"data"`
	Meta supplierMeta `json:"meta"`
}

type orderRequest struct {
	PackageID   string `json:"package_id"`
	Quantity    int    `json:"quantity"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type orderResponse struct {
	Data struct {
		ID   json.Number `json:"id"`
		Code string      `json:"code"`
		Sims []struct {
			ICCID                      string `json:"iccid"`
			QRCodeURL                  string `json:"qrcode_url"`
			DirectAppleInstallationURL string `json:"direct_apple_installation_url"`
		} `json:"sims"`
	} `json:"data"`
	Meta supplierMeta `json:"meta"`
}

// ExchangeToken performs the client-credentials grant.
func (c *Client) ExchangeToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("%w: failed to create request: %w", ErrTokenExchange, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, status, err := c.do(req, "token")
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}

	var result tokenResponse
	if status < 200 || status > 299 {
		_ = json.Unmarshal(body, &result)
		return "", 0, &APIError{Operation: "token", StatusCode: status, Message: messageOrBody(result.Meta, body), kind: ErrTokenExchange}
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", 0, fmt.Errorf("%w: failed to parse response: %w", ErrTokenExchange, err)
	}
	if result.Data.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: response contained no access token", ErrTokenExchange)
	}

	return result.Data.AccessToken, time.Duration(result.Data.ExpiresIn) * time.Second, nil
}

// Provision orders one eSIM for packageID and returns its first artifact.
// A single attempt is made; failures are returned to the caller.
func (c *Client) Provision(ctx context.Context, packageID string) (*domain.Artifact, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(orderRequest{
		PackageID: packageID,
		Quantity:  1,
		Type:      "sim",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal order: %w", ErrProvisioning, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrProvisioning, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	body, status, err := c.do(req, "create_order")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvisioning, err)
	}

	var result orderResponse
	if status < 200 || status > 299 {
		if status == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		_ = json.Unmarshal(body, &result)
		return nil, &APIError{Operation: "create_order", StatusCode: status, Message: messageOrBody(result.Meta, body), kind: ErrProvisioning}
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", ErrProvisioning, err)
	}
	if len(result.Data.Sims) == 0 {
		return nil, fmt.Errorf("%w: order %s returned no sims", ErrProvisioning, result.Data.Code)
	}

	sim := result.Data.Sims[0]
	artifact := &domain.Artifact{
		SupplierOrderID:   result.Data.ID.String(),
		SupplierOrderCode: result.Data.Code,
		ICCID:             sim.ICCID,
		QRCodeURL:         sim.QRCodeURL,
		DirectInstallURL:  sim.DirectAppleInstallationURL,
	}
	if !artifact.Complete() {
		return nil, fmt.Errorf("%w: order %s returned an incomplete artifact", ErrProvisioning, result.Data.Code)
	}

	return artifact, nil
}

func (c *Client) do(req *http.Request, operation string) ([]byte, int, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if telemetry.Business != nil {
		telemetry.Business.SupplierAPILatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// maxMessageLen caps the supplier text carried on an APIError.
const maxMessageLen = 300

// messageOrBody prefers the supplier's meta.message and falls back to the raw
// body. The result is valid UTF-8 and at most maxMessageLen bytes.
func messageOrBody(meta supplierMeta, body []byte) string {
	msg := meta.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if len(msg) <= maxMessageLen {
		return msg
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
