package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerline/billrun/internal/model"
	"github.com/ledgerline/billrun/internal/service"
)

// MockSender records sent emails for tests and can be told to fail for
// specific recipients.
type MockSender struct {
	mu      sync.Mutex
	sent    []service.Email
	failFor map[string]bool
}

// NewMockSender creates a new mock sender.
func NewMockSender() *MockSender {
	return &MockSender{failFor: make(map[string]bool)}
}

// FailFor makes Send return an error for the given recipient address.
func (m *MockSender) FailFor(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[address] = true
}

// Send records the email, or fails if a recipient is marked for failure.
func (m *MockSender) Send(_ context.Context, email service.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, to := range email.To {
		if m.failFor[to] {
			return fmt.Errorf("simulated delivery failure to %s", to)
		}
	}
	m.sent = append(m.sent, email)
	return nil
}

// Sent returns a copy of all recorded emails.
func (m *MockSender) Sent() []service.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.Email(nil), m.sent...)
}

// MockRenderer produces a trivial attachment for tests.
type MockRenderer struct {
	Err error
}

// Render returns a fixed attachment, or the configured error.
func (m *MockRenderer) Render(bill *model.Bill, _ *model.Creditor, _ *model.Contact) (service.Attachment, error) {
	if m.Err != nil {
		return service.Attachment{}, m.Err
	}
	return service.Attachment{
		Filename: bill.ID + ".pdf",
		MIMEType: "application/pdf",
		Content:  []byte("rendered " + bill.ReferenceNumber),
	}, nil
}
