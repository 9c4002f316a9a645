// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/notify"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/payment"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/repository"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/selection"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/Shivanand-hulikatti/sled-race-registration/internal/service")

// EventReader loads events with their race catalogs.
type EventReader interface {
	List(ctx context.Context) ([]model.Event, error)
	GetByTag(ctx context.Context, tag model.EventTag) (*model.Event, error)
}

// RegistrationStore persists registrations. Append must be atomic with
// respect to concurrent appends for the same event.
type RegistrationStore interface {
	Append(ctx context.Context, tag model.EventTag, reg model.Registration) (*model.Event, error)
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, tag model.EventTag, id string) (*model.Registration, error)
	ListByEvent(ctx context.Context, tag model.EventTag) ([]model.Registration, error)
}

// Charger charges a card.
type Charger interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (payment.Charge, error)
}

// Sender delivers an email.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) (string, error)
}

// EventService serves the read side: event catalog, confirmations and the
// admin registration listing.
type EventService struct {
	events        EventReader
	registrations RegistrationStore
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventReader, registrations RegistrationStore) *EventService {
	return &EventService{events: events, registrations: registrations}
}

// ListEvents returns all events with their race catalogs.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list events", err)
	}
	return events, nil
}

// GetEvent returns a single event by tag.
func (s *EventService) GetEvent(ctx context.Context, tag string) (*model.Event, error) {
	t, ok := model.ParseEventTag(tag)
	if !ok {
		return nil, apperr.NotFound("event not found")
	}
	return loadEvent(ctx, s.events, t)
}

// GetConfirmation looks up a registration for the confirmation view. An
// unknown event is an error; an unknown registration is a Confirmation with
// NotFound set and the event details filled in.
func (s *EventService) GetConfirmation(ctx context.Context, tag, id string) (model.Confirmation, error) {
	ev, err := s.GetEvent(ctx, tag)
	if err != nil {
		return model.Confirmation{}, err
	}

	conf := model.Confirmation{
		Name:        ev.Name,
		Dates:       ev.Dates,
		Tag:         ev.Tag,
		Races:       ev.Races,
		FacebookURL: ev.FacebookURL,
	}

	reg, err := s.registrations.Get(ctx, ev.Tag, id)
	if errors.Is(err, repository.ErrNotFound) {
		conf.NotFound = true
		return conf, nil
	}
	if err != nil {
		return model.Confirmation{}, apperr.Internal("get registration", err)
	}

	conf.Races = selection.ResolveRaces(ev.Races, reg.Races)
	conf.Registration = reg
	return conf, nil
}

// ListRegistrations returns all registrations for an event, oldest first.
func (s *EventService) ListRegistrations(ctx context.Context, tag string) ([]model.Registration, error) {
	ev, err := s.GetEvent(ctx, tag)
	if err != nil {
		return nil, err
	}
	regs, err := s.registrations.ListByEvent(ctx, ev.Tag)
	if err != nil {
		return nil, apperr.Internal("list registrations", err)
	}
	return regs, nil
}

func loadEvent(ctx context.Context, events EventReader, tag model.EventTag) (*model.Event, error) {
	ev, err := events.GetByTag(ctx, tag)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("event not found")
		}
		return nil, apperr.Internal("get event", err)
	}
	return ev, nil
}
