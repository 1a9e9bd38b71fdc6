// Package services provides outbound integrations: delivery transports and
// progress publishing
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// EmailMessage is one outbound email
type EmailMessage struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// WhatsAppMessage is one outbound WhatsApp message
type WhatsAppMessage struct {
	To        string
	Body      string
	MediaURL  *string
	MediaType *string
}

// WhatsAppTemplate is one outbound message built from a provider-approved
// template with per-recipient parameters
type WhatsAppTemplate struct {
	To           string
	TemplateName string
	Params       map[string]string
}

// EmailTransport delivers email messages through a provider
type EmailTransport interface {
	SendEmail(ctx context.Context, msg EmailMessage) (messageID string, err error)
}

// MessagingTransport delivers WhatsApp messages through a provider
type MessagingTransport interface {
	SendWhatsApp(ctx context.Context, msg WhatsAppMessage) (messageID string, err error)
	SendTemplate(ctx context.Context, msg WhatsAppTemplate) (messageID string, err error)
}

// MockEmailTransport records sent emails for development and testing.
// FailFor holds addresses whose sends are rejected.
type MockEmailTransport struct {
	mu      sync.Mutex
	Sent    []EmailMessage
	FailFor map[string]bool
}

// NewMockEmailTransport creates a recording email transport
func NewMockEmailTransport() *MockEmailTransport {
	return &MockEmailTransport{FailFor: make(map[string]bool)}
}

// SendEmail records the message and returns a synthetic provider message id
func (m *MockEmailTransport) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor[msg.To] {
		return "", fmt.Errorf("provider rejected recipient %s", msg.To)
	}
	m.Sent = append(m.Sent, msg)
	return "email-" + uuid.New().String(), nil
}

// SentCount returns how many emails were accepted
func (m *MockEmailTransport) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// MockMessagingTransport records sent WhatsApp messages for development and testing
type MockMessagingTransport struct {
	mu            sync.Mutex
	Sent          []WhatsAppMessage
	SentTemplates []WhatsAppTemplate
	FailFor       map[string]bool
}

// NewMockMessagingTransport creates a recording WhatsApp transport
func NewMockMessagingTransport() *MockMessagingTransport {
	return &MockMessagingTransport{FailFor: make(map[string]bool)}
}

// SendWhatsApp records the message and returns a synthetic provider message id
func (m *MockMessagingTransport) SendWhatsApp(ctx context.Context, msg WhatsAppMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor[msg.To] {
		return "", fmt.Errorf("provider rejected recipient %s", msg.To)
	}
	m.Sent = append(m.Sent, msg)
	return "wa-" + uuid.New().String(), nil
}

// SendTemplate records the template message and returns a synthetic provider message id
func (m *MockMessagingTransport) SendTemplate(ctx context.Context, msg WhatsAppTemplate) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor[msg.To] {
		return "", fmt.Errorf("provider rejected recipient %s", msg.To)
	}
	m.SentTemplates = append(m.SentTemplates, msg)
	return "wa-tpl-" + uuid.New().String(), nil
}

// SentCount returns how many messages were accepted
func (m *MockMessagingTransport) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// SentTemplateCount returns how many template messages were accepted
func (m *MockMessagingTransport) SentTemplateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentTemplates)
}
