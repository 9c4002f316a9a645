// Package repository implements event and registration persistence.
// PostgreSQL is accessed with pgx directly (no ORM); SQLite backs local
// development and tests.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateRegistration is returned when a registration id is already taken.
var ErrDuplicateRegistration = errors.New("registration id already exists")

const pgUniqueViolation = "23505"

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const eventColumns = `id, tag, name, dates, logo, facebook_url, trail_fee, isdra_race_fee,
	registration_count, created_at, updated_at`

const registrationColumns = `r.id, r.first_name, r.last_name, r.gender, r.email, r.phone, r.city, r.state,
	r.age, r.guardian, r.race_ids, r.subtotal, r.trail_fee, r.isdra_fee, r.total, r.stripe_fee,
	r.stripe_id, r.created_at, r.updated_at`

// EventRepository handles persistence for events and their race catalogs.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// List returns all events with their race catalogs, registrations omitted.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY tag`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanPgEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	if err := attachPgRaces(ctx, r.db, events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetByTag returns one event with its race catalog, or ErrNotFound.
func (r *EventRepository) GetByTag(ctx context.Context, tag model.EventTag) (*model.Event, error) {
	return pgEventByTag(ctx, r.db, tag)
}

// Upsert creates the event or updates it by tag, replacing its race catalog.
// Existing registrations are untouched; they reference races by id only.
func (r *EventRepository) Upsert(ctx context.Context, e *model.Event) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	err = tx.QueryRow(ctx,
		`INSERT INTO events (id, tag, name, dates, logo, facebook_url, trail_fee, isdra_race_fee, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 ON CONFLICT (tag) DO UPDATE SET
		   name = EXCLUDED.name, dates = EXCLUDED.dates, logo = EXCLUDED.logo,
		   facebook_url = EXCLUDED.facebook_url, trail_fee = EXCLUDED.trail_fee,
		   isdra_race_fee = EXCLUDED.isdra_race_fee, updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		e.ID, string(e.Tag), e.Name, nonNil(e.Dates), e.Logo, e.FacebookURL, e.TrailFee, e.ISDRARaceFee, now,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM races WHERE event_id = $1`, e.ID); err != nil {
		return fmt.Errorf("clear races: %w", err)
	}
	for i, race := range e.Races {
		_, err = tx.Exec(ctx,
			`INSERT INTO races (event_id, id, position, sled, category, breed, notes, price, isdra_fee)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, race.ID, i, race.Sled, race.Category, race.Breed, nonNil(race.Notes), race.Price, race.ISDRAFee,
		)
		if err != nil {
			return fmt.Errorf("insert race %s: %w", race.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Append atomically adds a registration to the event identified by tag and
// returns the updated event.
//
// The event row is locked with SELECT ... FOR UPDATE so concurrent appends
// for the same event are serialised; each one inserts its own row, so none
// is lost. The registration counter is bumped in the same transaction.
func (r *RegistrationRepository) Append(ctx context.Context, tag model.EventTag, reg model.Registration) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var eventID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM events WHERE tag = $1 FOR UPDATE`,
		string(tag),
	).Scan(&eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO registrations (id, event_id, first_name, last_name, gender, email, phone, city, state,
		   age, guardian, race_ids, subtotal, trail_fee, isdra_fee, total, stripe_fee, stripe_id,
		   created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		reg.ID, eventID, reg.FirstName, reg.LastName, reg.Gender, reg.Email, reg.Phone, reg.City, reg.State,
		reg.Age, reg.Guardian, nonNil(reg.Races), reg.Summary.Subtotal, reg.Summary.TrailFee,
		reg.Summary.ISDRAFee, reg.Summary.Total, reg.Summary.StripeFee, reg.StripeID,
		reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateRegistration
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE events SET registration_count = registration_count + 1, updated_at = now() WHERE id = $1`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("increment registration_count: %w", err)
	}

	event, err := pgEventByTag(ctx, tx, tag)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return event, nil
}

// Exists reports whether any event already holds a registration with id.
func (r *RegistrationRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration id: %w", err)
	}
	return exists, nil
}

// Get returns the registration with id under the event tag, or ErrNotFound.
func (r *RegistrationRepository) Get(ctx context.Context, tag model.EventTag, id string) (*model.Registration, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations r JOIN events e ON e.id = r.event_id
		 WHERE e.tag = $1 AND r.id = $2`,
		string(tag), id,
	)
	reg, err := scanPgRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ListByEvent returns all registrations for an event, oldest first.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, tag model.EventTag) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations r JOIN events e ON e.id = r.event_id
		 WHERE e.tag = $1
		 ORDER BY r.created_at ASC`,
		string(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanPgRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func pgEventByTag(ctx context.Context, q pgQuerier, tag model.EventTag) (*model.Event, error) {
	row := q.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tag = $1`,
		string(tag),
	)
	e, err := scanPgEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	events := []model.Event{*e}
	if err := attachPgRaces(ctx, q, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

func scanPgEvent(row pgx.Row) (*model.Event, error) {
	var (
		e   model.Event
		tag string
	)
	err := row.Scan(&e.ID, &tag, &e.Name, &e.Dates, &e.Logo, &e.FacebookURL, &e.TrailFee,
		&e.ISDRARaceFee, &e.RegistrationCount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.Tag = model.EventTag(tag)
	return &e, nil
}

// attachPgRaces loads the race catalogs for events in one query.
func attachPgRaces(ctx context.Context, q pgQuerier, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	index := make(map[string]int, len(events))
	ids := make([]string, 0, len(events))
	for i, e := range events {
		index[e.ID] = i
		ids = append(ids, e.ID)
		events[i].Races = []model.Race{}
	}

	rows, err := q.Query(ctx,
		`SELECT event_id, id, sled, category, breed, notes, price, isdra_fee
		 FROM races
		 WHERE event_id = ANY($1)
		 ORDER BY event_id, position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("list races: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventID string
			race    model.Race
		)
		if err := rows.Scan(&eventID, &race.ID, &race.Sled, &race.Category, &race.Breed,
			&race.Notes, &race.Price, &race.ISDRAFee); err != nil {
			return fmt.Errorf("scan race: %w", err)
		}
		if i, ok := index[eventID]; ok {
			events[i].Races = append(events[i].Races, race)
		}
	}
	return rows.Err()
}

func scanPgRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(&reg.ID, &reg.FirstName, &reg.LastName, &reg.Gender, &reg.Email, &reg.Phone,
		&reg.City, &reg.State, &reg.Age, &reg.Guardian, &reg.Races, &reg.Summary.Subtotal,
		&reg.Summary.TrailFee, &reg.Summary.ISDRAFee, &reg.Summary.Total, &reg.Summary.StripeFee,
		&reg.StripeID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
