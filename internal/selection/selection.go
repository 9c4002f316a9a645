// Package selection reconciles client-submitted race ids against an event's
// race catalog. The server catalog always wins.
package selection

import (
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
)

// Validated is the subset of submitted ids confirmed against the catalog.
type Validated struct {
	RaceIDs       []string
	RejectedCount int
}

// Validate keeps each submitted id that exists in the event's catalog, in
// submission order. Unknown ids are dropped and counted; repeated ids collapse
// into one. It fails when nothing billable survives.
func Validate(clientRaceIDs []string, event *model.Event) (Validated, error) {
	known := make(map[string]struct{}, len(event.Races))
	for _, r := range event.Races {
		known[r.ID] = struct{}{}
	}

	var v Validated
	seen := make(map[string]struct{}, len(clientRaceIDs))
	for _, id := range clientRaceIDs {
		if _, ok := known[id]; !ok {
			v.RejectedCount++
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		v.RaceIDs = append(v.RaceIDs, id)
	}

	if len(v.RaceIDs) == 0 {
		return v, apperr.Validation("no valid races selected", map[string]string{
			"races": "At least 1 race is required",
		})
	}
	return v, nil
}

// ResolveRaces maps race ids back to catalog entries, preserving id order.
// Ids that no longer exist in the catalog are skipped.
func ResolveRaces(catalog []model.Race, ids []string) []model.Race {
	byID := make(map[string]model.Race, len(catalog))
	for _, r := range catalog {
		byID[r.ID] = r
	}
	races := make([]model.Race, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			races = append(races, r)
		}
	}
	return races
}
