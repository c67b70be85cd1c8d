package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing.
// Simulates checkout flows without calling Stripe API. Safe for concurrent use.
type MockProvider struct {
	// CreateCheckoutSessionFunc allows customizing session creation behavior
	CreateCheckoutSessionFunc func(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// ExpireCheckoutSessionFunc allows customizing session expiry behavior
	ExpireCheckoutSessionFunc func(ctx context.Context, sessionID string) error

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	mu sync.Mutex

	// Sessions stores created sessions by ID, with their params
	Sessions map[string]CreateCheckoutSessionParams

	// Expired records expired session IDs
	Expired []string

	// CallLog tracks method calls for test assertions
	CallLog []string
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Sessions: make(map[string]CreateCheckoutSessionParams),
		CallLog:  []string{},
	}
}

// CreateCheckoutSession creates a mock checkout session.
func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	m.log(fmt.Sprintf("CreateCheckoutSession(%d, %s)", params.AmountCents, params.CustomerEmail))

	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}

	id := "cs_test_" + uuid.NewString()
	m.mu.Lock()
	m.Sessions[id] = params
	m.mu.Unlock()

	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}

	return &CheckoutSession{
		ID:          id,
		URL:         "https://checkout.stripe.com/c/pay/" + id,
		AmountTotal: params.AmountCents,
		Currency:    currency,
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	}, nil
}

// ExpireCheckoutSession records the expiry.
func (m *MockProvider) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	m.log(fmt.Sprintf("ExpireCheckoutSession(%s)", sessionID))

	if m.ExpireCheckoutSessionFunc != nil {
		return m.ExpireCheckoutSessionFunc(ctx, sessionID)
	}

	m.mu.Lock()
	m.Expired = append(m.Expired, sessionID)
	m.mu.Unlock()
	return nil
}

// VerifyWebhookSignature accepts every signature unless overridden.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.log("VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}
	return nil
}

// Calls returns a copy of CallLog.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

func (m *MockProvider) log(call string) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, call)
	m.mu.Unlock()
}
