package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Account lifecycle event types
const (
	UserRegistered = "user.registered"
	UserConfirmed  = "user.confirmed"
	UserDeleted    = "user.deleted"
	UserFollowed   = "user.followed"
	UserUnfollowed = "user.unfollowed"
)

// Event is the payload published for an account change
type Event struct {
	Type     string    `json:"type"`
	UserID   string    `json:"user_id"`
	TargetID string    `json:"target_id,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher announces account events to other services
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close()
}

// NATSPublisher publishes events as JSON on "<prefix>.<type>" subjects
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to the NATS server at url
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("socialhub-accounts"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("[Events] Connected to NATS at %s", url)
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Subject returns the subject an event type is published on
func (p *NATSPublisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

// Publish implements Publisher
func (p *NATSPublisher) Publish(_ context.Context, evt Event) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return nats.ErrConnectionClosed
	}

	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(evt.Type), data)
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		log.Printf("[Events] Drain failed: %v", err)
		p.conn.Close()
	}
}

// NopPublisher drops every event; used when NATS is not configured
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher
func (NopPublisher) Close() {}
