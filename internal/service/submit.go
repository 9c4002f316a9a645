package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/notify"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/payment"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/pricing"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/regid"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/registration"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/selection"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/telemetry"
)

const maxIDAttempts = 5

var errIDSpaceExhausted = errors.New("no unused registration id after retries")

// SubmitDeps wires a SubmitService. NewID and Now default to regid.Generate
// and time.Now.
type SubmitDeps struct {
	Events        EventReader
	Registrations RegistrationStore
	Payments      Charger
	Mailer        Sender
	Composer      *notify.Composer
	Metrics       *telemetry.Metrics
	NewID         func() (string, error)
	Now           func() time.Time
	Currency      string
	EmailTimeout  time.Duration
}

// SubmitService runs a registration submission: fetch the event, reconcile
// the race selection, price it, charge the card, persist, then notify.
// Each step runs only after the previous one succeeded.
type SubmitService struct {
	events        EventReader
	registrations RegistrationStore
	payments      Charger
	mailer        Sender
	composer      *notify.Composer
	metrics       *telemetry.Metrics
	newID         func() (string, error)
	now           func() time.Time
	currency      string
	emailTimeout  time.Duration
}

// NewSubmitService constructs a SubmitService.
func NewSubmitService(d SubmitDeps) *SubmitService {
	s := &SubmitService{
		events:        d.Events,
		registrations: d.Registrations,
		payments:      d.Payments,
		mailer:        d.Mailer,
		composer:      d.Composer,
		metrics:       d.Metrics,
		newID:         d.NewID,
		now:           d.Now,
		currency:      d.Currency,
		emailTimeout:  d.EmailTimeout,
	}
	if s.newID == nil {
		s.newID = regid.Generate
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.currency == "" {
		s.currency = "usd"
	}
	if s.emailTimeout <= 0 {
		s.emailTimeout = 10 * time.Second
	}
	if s.composer == nil {
		s.composer = &notify.Composer{}
	}
	return s
}

// Submit registers a participant and returns the new registration id.
// Confirmation and admin emails are sent after the registration is stored;
// their failure is logged and never changes the result.
func (s *SubmitService) Submit(ctx context.Context, req model.SubmitRequest) (model.SubmitResponse, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "registration.submit")
	defer span.End()

	label := "unknown"
	if tag, ok := model.ParseEventTag(req.EventTag); ok {
		label = string(tag)
	}
	span.SetAttributes(attribute.String("event.tag", label))

	reg, ev, err := s.submit(ctx, req)
	s.metrics.ObserveSubmission(label, outcome(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.KindOf(err).String())
		return model.SubmitResponse{}, err
	}
	span.SetAttributes(attribute.String("registration.id", reg.ID))

	s.sendNotifications(ctx, reg, ev)

	return model.SubmitResponse{Success: true, RegistrationID: reg.ID}, nil
}

func (s *SubmitService) submit(ctx context.Context, req model.SubmitRequest) (*model.Registration, *model.Event, error) {
	if fields := registration.ValidateForm(req.FormValues); fields != nil {
		return nil, nil, apperr.Validation("invalid registration form", fields)
	}
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		return nil, nil, apperr.Validation("missing payment method", map[string]string{
			"payment_method_id": "Payment method is required",
		})
	}

	tag, ok := model.ParseEventTag(req.EventTag)
	if !ok {
		return nil, nil, apperr.NotFound("event not found")
	}

	ev, err := loadEvent(ctx, s.events, tag)
	if err != nil {
		return nil, nil, err
	}

	validated, err := selection.Validate(req.FormValues.Races, ev)
	if err != nil {
		return nil, nil, err
	}
	if validated.RejectedCount > 0 {
		slog.Warn("registration_races_rejected", "event", tag, "rejected", validated.RejectedCount,
			"submitted", req.FormValues.Races)
	}

	summary := pricing.ComputeSummary(validated.RaceIDs, ev.Races, ev.ISDRARaceFee, ev.TrailFee)

	id, err := s.allocateID(ctx)
	if err != nil {
		return nil, nil, err
	}

	reg, err := registration.Assemble(registration.Input{
		ID:      id,
		Form:    req.FormValues,
		RaceIDs: validated.RaceIDs,
		Summary: summary,
		Now:     s.now(),
	})
	if err != nil {
		return nil, nil, apperr.Validation("invalid registration form", map[string]string{
			"age": "Invalid age provided",
		})
	}

	charge, err := s.charge(ctx, ev, &reg, req.PaymentMethodID)
	if err != nil {
		return nil, nil, err
	}
	reg.StripeID = charge.ID
	s.metrics.AddCharged(string(tag), charge.Amount)

	// The card has been charged; finish the write even if the client is gone.
	updated, err := s.persist(context.WithoutCancel(ctx), tag, reg)
	if err != nil {
		return nil, nil, err
	}
	return &reg, updated, nil
}

// allocateID draws ids until one is not already taken.
func (s *SubmitService) allocateID(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", apperr.Internal("generate registration id", err)
		}
		exists, err := s.registrations.Exists(ctx, id)
		if err != nil {
			return "", apperr.Internal("check registration id", err)
		}
		if !exists {
			return id, nil
		}
		slog.Warn("registration_id_collision", "registration_id", id, "attempt", attempt)
	}
	return "", apperr.Internal("allocate registration id", errIDSpaceExhausted)
}

func (s *SubmitService) charge(ctx context.Context, ev *model.Event, reg *model.Registration, paymentMethodID string) (payment.Charge, error) {
	ctx, span := tracer.Start(ctx, "registration.charge")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.amount", reg.Summary.Total))

	charge, err := s.payments.Charge(ctx, payment.ChargeRequest{
		Amount:          reg.Summary.Total,
		Currency:        s.currency,
		PaymentMethodID: paymentMethodID,
		Metadata:        chargeMetadata(ev, reg),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.KindOf(err).String())
		slog.Warn("registration_charge_failed", "event", ev.Tag, "registration_id", reg.ID,
			"kind", apperr.KindOf(err).String(), "error", err)
		return payment.Charge{}, err
	}

	slog.Info("registration_charged", "event", ev.Tag, "registration_id", reg.ID,
		"payment_id", charge.ID, "amount", charge.Amount)
	return charge, nil
}

// persist appends reg to its event. A failure here leaves a charged but
// unrecorded registration, so everything needed to reconcile it by hand is
// logged.
func (s *SubmitService) persist(ctx context.Context, tag model.EventTag, reg model.Registration) (*model.Event, error) {
	ctx, span := tracer.Start(ctx, "registration.persist")
	defer span.End()

	updated, err := s.registrations.Append(ctx, tag, reg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		record, _ := json.Marshal(reg)
		slog.Error("registration_persist_failed",
			"event", tag,
			"registration_id", reg.ID,
			"payment_id", reg.StripeID,
			"registration", string(record),
			"error", err,
		)
		return nil, apperr.Internal("append registration", err)
	}

	slog.Info("registration_persisted", "event", tag, "registration_id", reg.ID,
		"registration_count", updated.RegistrationCount)
	return updated, nil
}

func (s *SubmitService) sendNotifications(ctx context.Context, reg *model.Registration, ev *model.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.emailTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "registration.notify")
	defer span.End()

	confirmation, err := s.composer.Confirmation(reg, ev)
	if err == nil {
		_, err = s.mailer.Send(ctx, confirmation)
	}
	s.observeNotification("confirmation", reg.ID, err)

	_, err = s.mailer.Send(ctx, s.composer.AdminNotification(reg, ev))
	s.observeNotification("admin", reg.ID, err)
}

func (s *SubmitService) observeNotification(kind, id string, err error) {
	s.metrics.ObserveNotification(kind, err)
	if err != nil {
		slog.Error("notification_failed", "kind", kind, "registration_id", id, "error", err)
	}
}

// chargeMetadata is attached to the payment for auditing.
func chargeMetadata(ev *model.Event, reg *model.Registration) map[string]string {
	return map[string]string{
		"event":          fmt.Sprintf("%s [%s]", ev.Tag, ev.ID),
		"registrationId": reg.ID,
		"raceIds":        strings.Join(reg.Races, ","),
		"name":           reg.FullName(),
		"hometown":       reg.City + ", " + reg.State,
		"age":            strconv.Itoa(reg.Age),
		"gender":         reg.Gender,
		"guardian":       reg.GuardianName(),
	}
}

func outcome(err error) string {
	if err == nil {
		return telemetry.OutcomeSuccess
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return telemetry.OutcomeValidation
	case apperr.KindNotFound:
		return telemetry.OutcomeNotFound
	case apperr.KindPaymentDeclined:
		return telemetry.OutcomeDeclined
	default:
		return telemetry.OutcomeError
	}
}
