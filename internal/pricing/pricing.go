// Package pricing computes registration totals from a race selection and the
// event fee configuration. All amounts are minor currency units.
package pricing

import (
	"math"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
)

// Card processor fee schedule used for the bookkeeping estimate.
const (
	processorPercent = 0.029
	processorFlat    = 30
)

// ComputeSummary prices the catalog races whose id is in selected. Unknown
// ids are ignored and each catalog race counts at most once. The trail fee is
// charged once regardless of how many races match, so an empty selection
// yields Total == trailFee.
func ComputeSummary(selected []string, catalog []model.Race, isdraRaceFee, trailFee int64) model.Summary {
	want := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		want[id] = struct{}{}
	}

	var subtotal, isdraCount int64
	for _, race := range catalog {
		if _, ok := want[race.ID]; !ok {
			continue
		}
		subtotal += race.Price
		if race.ISDRAFee {
			isdraCount++
		}
	}

	isdraFee := isdraRaceFee * isdraCount
	return model.Summary{
		Subtotal: subtotal,
		TrailFee: trailFee,
		ISDRAFee: isdraFee,
		Total:    subtotal + isdraFee + trailFee,
	}
}

// EstimateStripeFee is the processor's flat+percentage fee on total. It is
// informational only and never changes what is charged.
func EstimateStripeFee(total int64) int64 {
	return int64(math.Round(float64(total)*processorPercent + processorFlat))
}
