package registration

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
)

func validForm() model.FormValues {
	return model.FormValues{
		FirstName:  "  Jane ",
		LastName:   "Musher ",
		Gender:     "female",
		Email:      " Jane@Example.COM ",
		Phone:      "(715) 555-0134",
		City:       " Mountain",
		State:      "WI",
		Age:        "34",
		Races:      []string{"R1"},
		Cardholder: " Jane Musher ",
	}
}

func TestValidateForm(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.Nil(t, ValidateForm(validForm()))
	})

	t.Run("missing fields", func(t *testing.T) {
		errs := ValidateForm(model.FormValues{})
		for _, f := range []string{"firstName", "lastName", "gender", "email", "phone", "city", "state", "age", "races", "cardholder"} {
			assert.Contains(t, errs, f)
		}
	})

	t.Run("bad email", func(t *testing.T) {
		f := validForm()
		f.Email = "jane.example.com"
		assert.Equal(t, "Invalid email address", ValidateForm(f)["email"])
	})

	t.Run("phone must have ten digits", func(t *testing.T) {
		f := validForm()
		f.Phone = "555-0134"
		assert.Equal(t, "Must be a valid 10 digit number", ValidateForm(f)["phone"])
	})

	t.Run("unknown gender", func(t *testing.T) {
		f := validForm()
		f.Gender = "other"
		assert.Contains(t, ValidateForm(f), "gender")
	})
}

func TestValidateFormAgeBoundary(t *testing.T) {
	tests := []struct {
		name     string
		age      string
		guardian string
		wantKey  string
	}{
		{"adult without guardian", "18", "", ""},
		{"minor without guardian", "17", "", "guardian"},
		{"minor with blank guardian", "17", "   ", "guardian"},
		{"minor with guardian", "17", "Pat Musher", ""},
		{"non numeric", "seventeen", "", "age"},
		{"decimal", "17.5", "Pat", "age"},
		{"negative", "-3", "Pat", "age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			f.Age = tt.age
			f.Guardian = tt.guardian
			errs := ValidateForm(f)
			if tt.wantKey == "" {
				assert.Nil(t, errs)
				return
			}
			assert.Contains(t, errs, tt.wantKey)
		})
	}
}

func TestAssemble(t *testing.T) {
	now := time.Date(2026, 1, 10, 15, 4, 5, 0, time.FixedZone("CST", -6*3600))
	summary := model.Summary{Subtotal: 8000, ISDRAFee: 600, TrailFee: 1400, Total: 10000}

	reg, err := Assemble(Input{
		ID:       "12345-678901",
		Form:     validForm(),
		RaceIDs:  []string{"R1", "R2"},
		Summary:  summary,
		StripeID: "pi_123",
		Now:      now,
	})
	require.NoError(t, err)

	assert.Equal(t, "12345-678901", reg.ID)
	assert.Equal(t, "Jane", reg.FirstName)
	assert.Equal(t, "Musher", reg.LastName)
	assert.Equal(t, "jane@example.com", reg.Email)
	assert.Equal(t, "7155550134", reg.Phone)
	assert.Equal(t, "Mountain", reg.City)
	assert.Equal(t, 34, reg.Age)
	assert.Nil(t, reg.Guardian)
	assert.Equal(t, []string{"R1", "R2"}, reg.Races)
	assert.Equal(t, int64(320), reg.Summary.StripeFee)
	assert.Equal(t, summary.Total, reg.Summary.Total)
	assert.Equal(t, "pi_123", reg.StripeID)
	assert.Equal(t, time.UTC, reg.CreatedAt.Location())
	assert.Equal(t, reg.CreatedAt, reg.UpdatedAt)
	assert.True(t, reg.CreatedAt.Equal(now))
}

func TestAssembleGuardianTrimmed(t *testing.T) {
	f := validForm()
	f.Age = "12"
	f.Guardian = "  Pat Musher  "

	reg, err := Assemble(Input{ID: "00000-000000", Form: f, RaceIDs: []string{"R1"}, Now: time.Now()})
	require.NoError(t, err)
	require.NotNil(t, reg.Guardian)
	assert.Equal(t, "Pat Musher", *reg.Guardian)
}

func TestAssembleRejectsBadAge(t *testing.T) {
	f := validForm()
	f.Age = "abc"
	_, err := Assemble(Input{Form: f, Now: time.Now()})
	assert.True(t, errors.Is(err, ErrInvalidAge))
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "(715) 555-0134", FormatPhone("715.555.0134"))
	assert.Equal(t, "5550134", FormatPhone("555-0134"))
}
