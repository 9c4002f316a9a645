package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/notify"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/regid"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/registration"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/telemetry"
)

// ContactService forwards contact form messages by email.
type ContactService struct {
	mailer   Sender
	composer *notify.Composer
	metrics  *telemetry.Metrics
	newID    func() (string, error)
	now      func() time.Time
}

// NewContactService constructs a ContactService.
func NewContactService(mailer Sender, composer *notify.Composer, metrics *telemetry.Metrics) *ContactService {
	return &ContactService{
		mailer:   mailer,
		composer: composer,
		metrics:  metrics,
		newID:    regid.Generate,
		now:      time.Now,
	}
}

// Send validates and forwards req. It reports delivered == false without an
// error when the honeypot field is filled in. Delivery failures are returned
// since nothing else records the message.
func (s *ContactService) Send(ctx context.Context, req model.ContactRequest) (delivered bool, err error) {
	if req.HP != "" {
		slog.Info("contact_honeypot_triggered")
		return false, nil
	}

	msg := model.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   registration.NormalizeEmail(req.Email),
		Phone:   registration.FormatPhone(req.Phone),
		Message: strings.TrimSpace(req.Message),
		SentAt:  s.now(),
	}
	if fields := validateContact(msg); fields != nil {
		return false, apperr.Validation("invalid contact message", fields)
	}

	id, err := s.newID()
	if err != nil {
		return false, apperr.Internal("generate contact id", err)
	}
	msg.ID = id

	_, err = s.mailer.Send(ctx, s.composer.ContactEmail(msg))
	s.metrics.ObserveNotification("contact", err)
	if err != nil {
		slog.Error("contact_send_failed", "contact_id", msg.ID, "error", err)
		return false, apperr.Internal("send contact message", err)
	}

	slog.Info("contact_sent", "contact_id", msg.ID)
	return true, nil
}

func validateContact(m model.ContactMessage) map[string]string {
	fields := map[string]string{}
	if m.Name == "" {
		fields["name"] = "Name is required"
	}
	if m.Email == "" {
		fields["email"] = "Email is required"
	} else if !registration.IsValidEmail(m.Email) {
		fields["email"] = "Invalid email address"
	}
	if m.Message == "" {
		fields["message"] = "Message is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
