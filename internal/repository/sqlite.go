package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
)

// Fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlScanner interface {
	Scan(dest ...any) error
}

// SQLiteEventRepository implements event persistence on SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

// NewSQLiteEventRepository constructs a SQLiteEventRepository.
func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

// List returns all events with their race catalogs, registrations omitted.
func (r *SQLiteEventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	rows.Close()

	for i := range events {
		races, err := sqliteRaces(ctx, r.db, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].Races = races
	}
	return events, nil
}

// GetByTag returns one event with its race catalog, or ErrNotFound.
func (r *SQLiteEventRepository) GetByTag(ctx context.Context, tag model.EventTag) (*model.Event, error) {
	return sqliteEventByTag(ctx, r.db, tag)
}

// Upsert creates the event or updates it by tag, replacing its race catalog.
func (r *SQLiteEventRepository) Upsert(ctx context.Context, e *model.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dates, err := json.Marshal(nonNil(e.Dates))
	if err != nil {
		return fmt.Errorf("encode dates: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)
	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (id, tag, name, dates, logo, facebook_url, trail_fee, isdra_race_fee, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tag) DO UPDATE SET
		   name = excluded.name, dates = excluded.dates, logo = excluded.logo,
		   facebook_url = excluded.facebook_url, trail_fee = excluded.trail_fee,
		   isdra_race_fee = excluded.isdra_race_fee, updated_at = excluded.updated_at
		 RETURNING id`,
		e.ID, string(e.Tag), e.Name, string(dates), e.Logo, e.FacebookURL, e.TrailFee, e.ISDRARaceFee, now, now,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM races WHERE event_id = ?`, e.ID); err != nil {
		return fmt.Errorf("clear races: %w", err)
	}
	for i, race := range e.Races {
		notes, err := json.Marshal(nonNil(race.Notes))
		if err != nil {
			return fmt.Errorf("encode notes: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO races (event_id, id, position, sled, category, breed, notes, price, isdra_fee)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, race.ID, i, race.Sled, race.Category, race.Breed, string(notes), race.Price, race.ISDRAFee,
		)
		if err != nil {
			return fmt.Errorf("insert race %s: %w", race.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SQLiteRegistrationRepository implements registration persistence on SQLite.
type SQLiteRegistrationRepository struct {
	db *sql.DB
}

// NewSQLiteRegistrationRepository constructs a SQLiteRegistrationRepository.
func NewSQLiteRegistrationRepository(db *sql.DB) *SQLiteRegistrationRepository {
	return &SQLiteRegistrationRepository{db: db}
}

// Append atomically adds a registration to the event identified by tag and
// returns the updated event. The counter UPDATE runs first so the
// transaction holds SQLite's write lock before anything else happens.
func (r *SQLiteRegistrationRepository) Append(ctx context.Context, tag model.EventTag, reg model.Registration) (*model.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE events SET registration_count = registration_count + 1, updated_at = ? WHERE tag = ?`,
		time.Now().UTC().Format(timeLayout), string(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("increment registration_count: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("increment registration_count: %w", err)
	} else if n == 0 {
		return nil, ErrNotFound
	}

	var eventID string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM events WHERE tag = ?`, string(tag)).Scan(&eventID); err != nil {
		return nil, fmt.Errorf("lookup event: %w", err)
	}

	raceIDs, err := json.Marshal(nonNil(reg.Races))
	if err != nil {
		return nil, fmt.Errorf("encode race ids: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO registrations (id, event_id, first_name, last_name, gender, email, phone, city, state,
		   age, guardian, race_ids, subtotal, trail_fee, isdra_fee, total, stripe_fee, stripe_id,
		   created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.ID, eventID, reg.FirstName, reg.LastName, reg.Gender, reg.Email, reg.Phone, reg.City, reg.State,
		reg.Age, nullString(reg.Guardian), string(raceIDs), reg.Summary.Subtotal, reg.Summary.TrailFee,
		reg.Summary.ISDRAFee, reg.Summary.Total, reg.Summary.StripeFee, reg.StripeID,
		reg.CreatedAt.UTC().Format(timeLayout), reg.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateRegistration
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	event, err := sqliteEventByTag(ctx, tx, tag)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return event, nil
}

// Exists reports whether any event already holds a registration with id.
func (r *SQLiteRegistrationRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE id = ?)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration id: %w", err)
	}
	return exists, nil
}

// Get returns the registration with id under the event tag, or ErrNotFound.
func (r *SQLiteRegistrationRepository) Get(ctx context.Context, tag model.EventTag, id string) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations r JOIN events e ON e.id = r.event_id
		 WHERE e.tag = ? AND r.id = ?`,
		string(tag), id,
	)
	reg, err := scanSQLiteRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ListByEvent returns all registrations for an event, oldest first.
func (r *SQLiteRegistrationRepository) ListByEvent(ctx context.Context, tag model.EventTag) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations r JOIN events e ON e.id = r.event_id
		 WHERE e.tag = ?
		 ORDER BY r.created_at ASC`,
		string(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanSQLiteRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func sqliteEventByTag(ctx context.Context, q sqlQuerier, tag model.EventTag) (*model.Event, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tag = ?`, string(tag))
	e, err := scanSQLiteEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	races, err := sqliteRaces(ctx, q, e.ID)
	if err != nil {
		return nil, err
	}
	e.Races = races
	return e, nil
}

func sqliteRaces(ctx context.Context, q sqlQuerier, eventID string) ([]model.Race, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, sled, category, breed, notes, price, isdra_fee
		 FROM races WHERE event_id = ? ORDER BY position`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list races: %w", err)
	}
	defer rows.Close()

	races := []model.Race{}
	for rows.Next() {
		var (
			race  model.Race
			notes string
		)
		if err := rows.Scan(&race.ID, &race.Sled, &race.Category, &race.Breed, &notes,
			&race.Price, &race.ISDRAFee); err != nil {
			return nil, fmt.Errorf("scan race: %w", err)
		}
		if err := json.Unmarshal([]byte(notes), &race.Notes); err != nil {
			return nil, fmt.Errorf("decode race notes: %w", err)
		}
		races = append(races, race)
	}
	return races, rows.Err()
}

func scanSQLiteEvent(row sqlScanner) (*model.Event, error) {
	var (
		e                    model.Event
		tag, dates           string
		createdAt, updatedAt string
	)
	err := row.Scan(&e.ID, &tag, &e.Name, &dates, &e.Logo, &e.FacebookURL, &e.TrailFee,
		&e.ISDRARaceFee, &e.RegistrationCount, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.Tag = model.EventTag(tag)
	if err := json.Unmarshal([]byte(dates), &e.Dates); err != nil {
		return nil, fmt.Errorf("decode event dates: %w", err)
	}
	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &e, nil
}

func scanSQLiteRegistration(row sqlScanner) (*model.Registration, error) {
	var (
		reg                  model.Registration
		guardian             sql.NullString
		raceIDs              string
		createdAt, updatedAt string
	)
	err := row.Scan(&reg.ID, &reg.FirstName, &reg.LastName, &reg.Gender, &reg.Email, &reg.Phone,
		&reg.City, &reg.State, &reg.Age, &guardian, &raceIDs, &reg.Summary.Subtotal,
		&reg.Summary.TrailFee, &reg.Summary.ISDRAFee, &reg.Summary.Total, &reg.Summary.StripeFee,
		&reg.StripeID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if guardian.Valid {
		g := guardian.String
		reg.Guardian = &g
	}
	if err := json.Unmarshal([]byte(raceIDs), &reg.Races); err != nil {
		return nil, fmt.Errorf("decode race ids: %w", err)
	}
	if reg.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if reg.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &reg, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
