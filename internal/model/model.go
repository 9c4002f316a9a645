// Package model defines the core domain types for the race registration system.
package model

import (
	"strings"
	"time"
)

// EventTag identifies one of the recurring events.
type EventTag string

const (
	TagFall   EventTag = "fall"
	TagWinter EventTag = "winter"
)

// ParseEventTag accepts only the known event tags.
func ParseEventTag(s string) (EventTag, bool) {
	switch EventTag(strings.ToLower(strings.TrimSpace(s))) {
	case TagFall:
		return TagFall, true
	case TagWinter:
		return TagWinter, true
	}
	return "", false
}

// Gender values accepted on a registration.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Race is a class/category a participant can enter within an event.
// Prices are in minor currency units (cents).
type Race struct {
	ID       string   `json:"id"       yaml:"id"`
	Sled     string   `json:"sled"     yaml:"sled"`
	Category string   `json:"category" yaml:"category"`
	Breed    string   `json:"breed"    yaml:"breed"`
	Notes    []string `json:"notes"    yaml:"notes"`
	Price    int64    `json:"price"    yaml:"price"`
	ISDRAFee bool     `json:"isdraFee" yaml:"isdraFee"`
}

// Name is the display name used in emails and confirmations.
func (r Race) Name() string {
	name := strings.TrimSpace(r.Sled + " " + r.Category)
	if r.Breed != "" {
		name += " - " + r.Breed
	}
	return name
}

// Event is the root aggregate: it owns its race catalog and registrations.
type Event struct {
	ID                string         `json:"id"`
	Tag               EventTag       `json:"tag"`
	Name              string         `json:"name"`
	Dates             []string       `json:"dates"`
	Logo              string         `json:"logo,omitempty"`
	FacebookURL       string         `json:"facebookUrl,omitempty"`
	Races             []Race         `json:"races"`
	TrailFee          int64          `json:"trailFee"`
	ISDRARaceFee      int64          `json:"isdraRaceFee"`
	RegistrationCount int            `json:"registrationCount"`
	Registrations     []Registration `json:"registrations,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Year returns the year of the first event date, or 0 when the dates are
// missing or malformed.
func (e *Event) Year() int {
	if len(e.Dates) == 0 {
		return 0
	}
	t, err := time.Parse(time.DateOnly, e.Dates[0])
	if err != nil {
		return 0
	}
	return t.Year()
}

// Summary is the pricing snapshot stored with a registration.
// Total always equals Subtotal + ISDRAFee + TrailFee.
type Summary struct {
	Subtotal  int64 `json:"subtotal"`
	TrailFee  int64 `json:"trailFee"`
	ISDRAFee  int64 `json:"isdraFee"`
	Total     int64 `json:"total"`
	StripeFee int64 `json:"stripeFee"`
}

// Registration is one participant's paid enrollment. Races holds race ids
// only; they are resolved against the owning event's catalog when read.
type Registration struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Gender    string    `json:"gender"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Age       int       `json:"age"`
	Guardian  *string   `json:"guardian"`
	Races     []string  `json:"races"`
	Summary   Summary   `json:"summary"`
	StripeID  string    `json:"stripeId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName joins first and last name.
func (r *Registration) FullName() string {
	return r.FirstName + " " + r.LastName
}

// GuardianName returns the guardian or an empty string.
func (r *Registration) GuardianName() string {
	if r.Guardian == nil {
		return ""
	}
	return *r.Guardian
}

// FormValues is the raw participant form as submitted by the client.
// Age stays a string until validated.
type FormValues struct {
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Gender     string   `json:"gender"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	Age        string   `json:"age"`
	Guardian   string   `json:"guardian"`
	Races      []string `json:"races"`
	Cardholder string   `json:"cardholder"`
}

// SubmitRequest is the payload for creating a registration.
type SubmitRequest struct {
	FormValues      FormValues `json:"formValues"`
	EventTag        string     `json:"eventTag"`
	PaymentMethodID string     `json:"payment_method_id"`
}

// SubmitResponse is returned after a successful registration.
type SubmitResponse struct {
	Success        bool   `json:"success"`
	RegistrationID string `json:"registrationId"`
}

// Confirmation is the read model behind the confirmation view.
type Confirmation struct {
	NotFound     bool          `json:"notFound"`
	Name         string        `json:"name"`
	Dates        []string      `json:"dates"`
	Tag          EventTag      `json:"tag"`
	Races        []Race        `json:"races"`
	FacebookURL  string        `json:"facebookUrl,omitempty"`
	Registration *Registration `json:"registration,omitempty"`
}

// ContactRequest is the contact form payload. HP is a honeypot field that
// real users never fill in.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	HP      string `json:"hp"`
}

// ContactMessage is a normalised contact form submission.
type ContactMessage struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Message string
	SentAt  time.Time
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
