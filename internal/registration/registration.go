// Package registration validates participant forms and assembles the
// immutable registration record that gets persisted.
package registration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/pricing"
)

// AdultAge is the first age that needs no guardian.
const AdultAge = 18

// ErrInvalidAge is returned when the age is not a whole, non-negative number.
var ErrInvalidAge = errors.New("invalid age")

// FieldErrors maps a form field to a user-facing message.
type FieldErrors map[string]string

// ValidateForm checks the participant form. It returns nil when the form is
// acceptable.
func ValidateForm(v model.FormValues) FieldErrors {
	errs := FieldErrors{}

	required := []struct {
		field, value, msg string
	}{
		{"firstName", v.FirstName, "First name is required"},
		{"lastName", v.LastName, "Last name is required"},
		{"city", v.City, "Your city is required"},
		{"state", v.State, "Your state is required"},
		{"cardholder", v.Cardholder, "Cardholder name is required"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs[r.field] = r.msg
		}
	}

	switch strings.TrimSpace(v.Gender) {
	case model.GenderMale, model.GenderFemale:
	case "":
		errs["gender"] = "Gender is required"
	default:
		errs["gender"] = "Gender must be male or female"
	}

	email := NormalizeEmail(v.Email)
	if email == "" {
		errs["email"] = "Email is required"
	} else if !IsValidEmail(email) {
		errs["email"] = "Invalid email address"
	}

	if strings.TrimSpace(v.Phone) == "" {
		errs["phone"] = "Phone is required"
	} else if len(NormalizePhone(v.Phone)) != 10 {
		errs["phone"] = "Must be a valid 10 digit number"
	}

	if strings.TrimSpace(v.Age) == "" {
		errs["age"] = "Age on race day is required"
	} else if age, err := ParseAge(v.Age); err != nil {
		errs["age"] = "Invalid age provided"
	} else if age < AdultAge && strings.TrimSpace(v.Guardian) == "" {
		errs["guardian"] = "Guardian is required for anyone under 18"
	}

	if len(v.Races) == 0 {
		errs["races"] = "At least 1 race is required"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ParseAge converts the form age to an integer.
func ParseAge(s string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || age < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAge, s)
	}
	return age, nil
}

// NormalizeEmail lowercases and trims.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone strips everything but digits.
func NormalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// FormatPhone renders a 10 digit number as (NNN) NNN-NNNN. Other lengths are
// returned as digits only.
func FormatPhone(s string) string {
	d := NormalizePhone(s)
	if len(d) != 10 {
		return d
	}
	return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
}

// IsValidEmail does a basic structural check.
func IsValidEmail(email string) bool {
	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return false
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}

// Input carries everything Assemble needs. RaceIDs must already be
// reconciled against the event catalog and Summary computed from them.
type Input struct {
	ID       string
	Form     model.FormValues
	RaceIDs  []string
	Summary  model.Summary
	StripeID string
	Now      time.Time
}

// Assemble builds the registration record with normalised fields.
func Assemble(in Input) (model.Registration, error) {
	age, err := ParseAge(in.Form.Age)
	if err != nil {
		return model.Registration{}, err
	}

	var guardian *string
	if g := strings.TrimSpace(in.Form.Guardian); g != "" {
		guardian = &g
	}

	summary := in.Summary
	summary.StripeFee = pricing.EstimateStripeFee(summary.Total)

	now := in.Now.UTC()
	return model.Registration{
		ID:        in.ID,
		FirstName: strings.TrimSpace(in.Form.FirstName),
		LastName:  strings.TrimSpace(in.Form.LastName),
		Gender:    strings.TrimSpace(in.Form.Gender),
		Email:     NormalizeEmail(in.Form.Email),
		Phone:     NormalizePhone(in.Form.Phone),
		City:      strings.TrimSpace(in.Form.City),
		State:     strings.TrimSpace(in.Form.State),
		Age:       age,
		Guardian:  guardian,
		Races:     append([]string(nil), in.RaceIDs...),
		Summary:   summary,
		StripeID:  in.StripeID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
