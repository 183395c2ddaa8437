package mail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/socialhub/internal/config"
)

var ErrUnknownProvider = errors.New("unknown mail provider")

// Message is one outbound email
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages through an outbound transport
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the Sender selected by cfg.Provider
func New(cfg config.MailConfig) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "sendgrid":
		return NewSendGridSender(cfg), nil
	case "resend":
		return NewResendSender(cfg), nil
	case "", "log":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// SendGridSender delivers mail through the SendGrid API
type SendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

// NewSendGridSender creates a SendGridSender
func NewSendGridSender(cfg config.MailConfig) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   sgmail.NewEmail(cfg.SenderName, cfg.Sender),
	}
}

// Send implements Sender
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	message := sgmail.NewSingleEmail(s.from, msg.Subject, sgmail.NewEmail("", msg.To), msg.Text, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}

	log.Printf("[Mail] Sent %q to %s via sendgrid (status %d)", msg.Subject, msg.To, resp.StatusCode)
	return nil
}

// ResendSender delivers mail through the Resend API
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a ResendSender
func NewResendSender(cfg config.MailConfig) *ResendSender {
	from := cfg.Sender
	if cfg.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.Sender)
	}
	return &ResendSender{
		client: resend.NewClient(cfg.APIKey),
		from:   from,
	}
}

// Send implements Sender
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	resp, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}

	log.Printf("[Mail] Sent %q to %s via resend (id %s)", msg.Subject, msg.To, resp.Id)
	return nil
}

// LogSender writes messages to the log instead of delivering them
type LogSender struct{}

// Send implements Sender
func (LogSender) Send(_ context.Context, msg Message) error {
	log.Printf("[Mail] To: %s | Subject: %s\n%s", msg.To, msg.Subject, msg.Text)
	return nil
}
