package supplier

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukerupert/wander/internal/domain"
)

// MockProvisioner is a Provisioner for tests. Safe for concurrent use.
type MockProvisioner struct {
	// ProvisionFunc overrides the default successful response.
	ProvisionFunc func(ctx context.Context, packageID string) (*domain.Artifact, error)

	mu      sync.Mutex
	callLog []string
}

func NewMockProvisioner() *MockProvisioner {
	return &MockProvisioner{}
}

func (m *MockProvisioner) Provision(ctx context.Context, packageID string) (*domain.Artifact, error) {
	m.mu.Lock()
	m.callLog = append(m.callLog, fmt.Sprintf("Provision(%s)", packageID))
	n := len(m.callLog)
	m.mu.Unlock()

	if m.ProvisionFunc != nil {
		return m.ProvisionFunc(ctx, packageID)
	}

	return &domain.Artifact{
		SupplierOrderID:   fmt.Sprintf("%d", 9000+n),
		SupplierOrderCode: fmt.Sprintf("20260101-%06d", n),
		ICCID:             fmt.Sprintf("89444654000002%05d", n),
		QRCodeURL:         "https://sandbox.example.com/qr/" + packageID + ".png",
		DirectInstallURL:  "https://esimsetup.apple.com/esim_qrcode_provisioning?carddata=LPA:1$test",
	}, nil
}

// Calls returns how many times Provision was invoked.
func (m *MockProvisioner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callLog)
}

// CallLog returns a copy of the recorded calls.
func (m *MockProvisioner) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.callLog...)
}
