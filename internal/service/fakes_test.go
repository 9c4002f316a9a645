package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/notify"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/payment"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/repository"
)

type fakeEvents struct {
	events map[model.EventTag]*model.Event
	err    error
}

func (f *fakeEvents) List(context.Context) ([]model.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Event
	for _, tag := range []model.EventTag{model.TagFall, model.TagWinter} {
		if ev, ok := f.events[tag]; ok {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (f *fakeEvents) GetByTag(_ context.Context, tag model.EventTag) (*model.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	ev, ok := f.events[tag]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

type fakeStore struct {
	mu        sync.Mutex
	events    *fakeEvents
	regs      map[model.EventTag][]model.Registration
	taken     map[string]bool
	appendErr error
	existsErr error
}

func newFakeStore(events *fakeEvents) *fakeStore {
	return &fakeStore{events: events, regs: map[model.EventTag][]model.Registration{}, taken: map[string]bool{}}
}

func (f *fakeStore) Append(_ context.Context, tag model.EventTag, reg model.Registration) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	ev, ok := f.events.events[tag]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if f.taken[reg.ID] {
		return nil, repository.ErrDuplicateRegistration
	}
	f.taken[reg.ID] = true
	f.regs[tag] = append(f.regs[tag], reg)
	cp := *ev
	cp.RegistrationCount = len(f.regs[tag])
	return &cp, nil
}

func (f *fakeStore) Exists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.taken[id], nil
}

func (f *fakeStore) Get(_ context.Context, tag model.EventTag, id string) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs[tag] {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) ListByEvent(_ context.Context, tag model.EventTag) ([]model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Registration(nil), f.regs[tag]...), nil
}

func (f *fakeStore) stored(tag model.EventTag) []model.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Registration(nil), f.regs[tag]...)
}

type fakeCharger struct {
	mu   sync.Mutex
	reqs []payment.ChargeRequest
	err  error
}

func (f *fakeCharger) Charge(_ context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return payment.Charge{}, f.err
	}
	return payment.Charge{ID: "pi_test", Amount: req.Amount}, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg notify.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return "", f.err
	}
	return "msg_1", nil
}

// sequenceIDs returns the given ids in order, then fails.
func sequenceIDs(ids ...string) func() (string, error) {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(ids) == 0 {
			return "", errors.New("out of ids")
		}
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
}

var fixedNow = time.Date(2026, 12, 1, 18, 30, 0, 0, time.UTC)

func winterEvent() *model.Event {
	return &model.Event{
		ID:           "evt-winter",
		Tag:          model.TagWinter,
		Name:         "Winter Sled Dog Classic",
		Dates:        []string{"2027-01-16", "2027-01-17"},
		TrailFee:     1400,
		ISDRARaceFee: 600,
		Races: []model.Race{
			{ID: "R1", Sled: "6 Dog", Category: "Pro", Price: 5000},
			{ID: "R2", Sled: "4 Dog", Category: "Sportsman", Price: 3000, ISDRAFee: true},
		},
	}
}

func validForm(races ...string) model.FormValues {
	return model.FormValues{
		FirstName:  " Jane ",
		LastName:   "Musher",
		Gender:     model.GenderFemale,
		Email:      " Jane@Example.com ",
		Phone:      "(715) 555-0134",
		City:       "Mountain",
		State:      "WI",
		Age:        "34",
		Races:      races,
		Cardholder: "Jane Musher",
	}
}

type hookCharger struct {
	inner Charger
	after func()
}

func (h hookCharger) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	c, err := h.inner.Charge(ctx, req)
	h.after()
	return c, err
}

// chargeThen runs after once the wrapped charger returns.
func chargeThen(c Charger, after func()) Charger {
	return hookCharger{inner: c, after: after}
}
