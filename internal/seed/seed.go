// Package seed loads event and race catalogs from YAML and writes them to
// storage.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
)

// File is the catalog file layout.
type File struct {
	Events []Event `yaml:"events"`
}

// Event is one event entry in the catalog file. Fees are in cents.
type Event struct {
	Tag          string       `yaml:"tag"`
	Name         string       `yaml:"name"`
	Dates        []string     `yaml:"dates"`
	Logo         string       `yaml:"logo"`
	FacebookURL  string       `yaml:"facebookUrl"`
	TrailFee     int64        `yaml:"trailFee"`
	ISDRARaceFee int64        `yaml:"isdraRaceFee"`
	Races        []model.Race `yaml:"races"`
}

// Upserter stores an event and replaces its race catalog.
type Upserter interface {
	Upsert(ctx context.Context, e *model.Event) error
}

// LoadFile reads and validates the catalog at path.
func LoadFile(path string) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a catalog. Every event gets a fresh id; storage
// keeps the existing id when the tag is already present.
func Load(r io.Reader) ([]model.Event, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog is empty")
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(file.Events) == 0 {
		return nil, errors.New("catalog has no events")
	}

	seen := make(map[model.EventTag]bool, len(file.Events))
	events := make([]model.Event, 0, len(file.Events))
	for i, e := range file.Events {
		ev, err := e.toModel()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i+1, err)
		}
		if seen[ev.Tag] {
			return nil, fmt.Errorf("event %d: duplicate tag %q", i+1, ev.Tag)
		}
		seen[ev.Tag] = true
		events = append(events, ev)
	}
	return events, nil
}

func (e Event) toModel() (model.Event, error) {
	tag, ok := model.ParseEventTag(e.Tag)
	if !ok {
		return model.Event{}, fmt.Errorf("unknown tag %q", e.Tag)
	}
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return model.Event{}, errors.New("name is required")
	}
	if len(e.Dates) == 0 {
		return model.Event{}, errors.New("at least one date is required")
	}
	for _, d := range e.Dates {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return model.Event{}, fmt.Errorf("date %q: want YYYY-MM-DD", d)
		}
	}
	if e.TrailFee < 0 || e.ISDRARaceFee < 0 {
		return model.Event{}, errors.New("fees must not be negative")
	}
	if len(e.Races) == 0 {
		return model.Event{}, errors.New("at least one race is required")
	}

	races := make([]model.Race, 0, len(e.Races))
	ids := make(map[string]bool, len(e.Races))
	for _, r := range e.Races {
		r.ID = strings.TrimSpace(r.ID)
		switch {
		case r.ID == "":
			return model.Event{}, fmt.Errorf("race %q: id is required", r.Name())
		case ids[r.ID]:
			return model.Event{}, fmt.Errorf("race %q: duplicate id", r.ID)
		case r.Price < 0:
			return model.Event{}, fmt.Errorf("race %q: price must not be negative", r.ID)
		}
		ids[r.ID] = true
		if r.Notes == nil {
			r.Notes = []string{}
		}
		races = append(races, r)
	}

	return model.Event{
		ID:           uuid.NewString(),
		Tag:          tag,
		Name:         name,
		Dates:        e.Dates,
		Logo:         e.Logo,
		FacebookURL:  e.FacebookURL,
		Races:        races,
		TrailFee:     e.TrailFee,
		ISDRARaceFee: e.ISDRARaceFee,
	}, nil
}

// Apply upserts every event.
func Apply(ctx context.Context, store Upserter, events []model.Event) error {
	for i := range events {
		ev := &events[i]
		if err := store.Upsert(ctx, ev); err != nil {
			return fmt.Errorf("upsert event %s: %w", ev.Tag, err)
		}
		slog.Info("event_seeded", "event", ev.Tag, "event_id", ev.ID, "races", len(ev.Races))
	}
	return nil
}
