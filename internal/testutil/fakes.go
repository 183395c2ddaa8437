package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/socialhub/internal/events"
	"github.com/socialhub/internal/mail"
)

// RecordingMailer is a mail.Sender that keeps every message instead of sending it
type RecordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	Err  error
}

// Send implements mail.Sender
func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages
func (m *RecordingMailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

// LastLinkToken returns the path segment following marker in the text body of
// the latest message sent to addr, or "" when there is none
func (m *RecordingMailer) LastLinkToken(addr, marker string) string {
	sent := m.Sent()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].To != addr {
			continue
		}
		idx := strings.Index(sent[i].Text, marker)
		if idx < 0 {
			continue
		}
		return strings.TrimSpace(sent[i].Text[idx+len(marker):])
	}
	return ""
}

// RecordingPublisher is an events.Publisher that keeps every event
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

// Publish implements events.Publisher
func (p *RecordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

// Close implements events.Publisher
func (p *RecordingPublisher) Close() {}

// Types returns the recorded event types in publish order
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, evt := range p.events {
		types[i] = evt.Type
	}
	return types
}

// StaticThrottle allows or denies every request
type StaticThrottle bool

// Allow implements service.Throttle
func (t StaticThrottle) Allow(context.Context, string) (bool, error) {
	return bool(t), nil
}
