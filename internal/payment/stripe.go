// Package payment charges cards through Stripe and classifies failures into
// card declines (shown to the user) and infrastructure errors (hidden).
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/apperr"
)

// ChargeRequest describes a single card charge. Amount is in minor units.
type ChargeRequest struct {
	Amount          int64
	Currency        string
	PaymentMethodID string
	Metadata        map[string]string
}

// Charge is a successful payment.
type Charge struct {
	ID     string
	Amount int64
}

// intentCreator is the slice of the Stripe PaymentIntent client we use.
type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeCharger confirms a PaymentIntent immediately with the supplied
// payment method. Charges needing extra customer action are refused by
// Stripe rather than left pending.
type StripeCharger struct {
	intents intentCreator
}

// NewStripeCharger creates a charger bound to secretKey.
func NewStripeCharger(secretKey string) *StripeCharger {
	return &StripeCharger{
		intents: &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
	}
}

// Charge creates and confirms a PaymentIntent. Card errors come back as
// apperr.Declined with Stripe's message; everything else is apperr.Internal.
func (c *StripeCharger) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	params := &stripe.PaymentIntentParams{
		Amount:                stripe.Int64(req.Amount),
		Currency:              stripe.String(req.Currency),
		PaymentMethod:         stripe.String(req.PaymentMethodID),
		Confirm:               stripe.Bool(true),
		ErrorOnRequiresAction: stripe.Bool(true),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.intents.New(params)
	if err != nil {
		return Charge{}, classify(err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		slog.Error("payment_not_succeeded", "payment_intent", pi.ID, "status", pi.Status)
		return Charge{}, apperr.Internal("charge card", fmt.Errorf("payment intent %s status %s", pi.ID, pi.Status))
	}
	return Charge{ID: pi.ID, Amount: pi.Amount}, nil
}

// classify separates card declines from infrastructure failures.
func classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		msg := stripeErr.Msg
		if msg == "" {
			msg = "Your card was declined."
		}
		return apperr.Declined(msg, err)
	}
	return apperr.Internal("charge card", err)
}
