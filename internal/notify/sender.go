// Package notify builds and delivers registration and contact emails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Message is one outgoing email. HTML is optional.
type Message struct {
	To      []string
	From    string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
}

// NewResendSender creates a sender for apiKey.
func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey)}
}

// Send delivers msg and returns the provider message id.
func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", errors.New("resend send: no recipients")
	}
	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    msg.HTML,
		ReplyTo: msg.ReplyTo,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		slog.Error("resend_send_failed", "error", err, "to", msg.To, "subject", msg.Subject)
		return "", fmt.Errorf("resend send failed: %w", err)
	}

	slog.Info("resend_sent", "message_id", sent.Id, "to", msg.To, "subject", msg.Subject)
	return sent.Id, nil
}

// LogSender records emails in the log instead of delivering them. Used when
// no Resend key is configured.
type LogSender struct{}

// Send logs msg and reports success.
func (LogSender) Send(_ context.Context, msg Message) (string, error) {
	slog.Info("email_not_sent", "reason", "no delivery provider configured",
		"to", msg.To, "subject", msg.Subject)
	return "", nil
}
