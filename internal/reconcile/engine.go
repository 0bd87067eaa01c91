// Package reconcile merges a bounded fetched window into an unbounded
// persisted history.
//
// The upstream feed only ever exposes the most recent rows per instrument,
// and marks the trade-day premium as pending until T+1. The merge policy is:
// unknown dates are always appended, pending or placeholder rows are
// upgraded once a confirmed value arrives, and already-confirmed values are
// never overwritten by a later fetch. Post-hoc restatement of confirmed
// values is deliberately not modeled.
package reconcile

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/fundlab/lofsync/internal/model"
)

// ErrInvariantViolation signals a duplicate-date or ordering violation after
// a merge. It indicates a keying bug, never a data-quality issue, so it is
// fatal for the instrument and no write is performed.
var ErrInvariantViolation = eris.New("reconcile: history invariant violated")

// placeholderEpsilon is the magnitude below which a confirmed premium is
// treated as an unset placeholder that slipped through as zero. Heuristic,
// in percentage-point units.
var placeholderEpsilon = decimal.RequireFromString("0.01")

// Merge applies one fetched window to a history and returns the new history
// plus the outcome. The input history is not modified. Window order is
// irrelevant: records are keyed purely by observation date.
//
// An empty window yields a Failed outcome (unobtainable data), which is
// distinct from a successfully fetched window containing nothing new
// (NoChange). Callers persist the result only on Updated.
func Merge(history model.History, window []model.DatedRecord) (model.History, model.RunOutcome) {
	existing := history.Len()

	if len(window) == 0 {
		return history, model.FailedOutcome(history.InstrumentID, existing, eris.New("empty window"))
	}

	merged := model.History{
		InstrumentID: history.InstrumentID,
		Records:      append([]model.DatedRecord(nil), history.Records...),
		AuxColumns:   append([]string(nil), history.AuxColumns...),
	}
	idx := merged.Index()

	var newCount, updatedCount int
	for _, w := range window {
		for col := range w.Aux {
			merged.AddAuxColumn(col)
		}

		pos, ok := idx[w.DateKey()]
		if !ok {
			// Unknown date: always keep it, even unconfirmed. Absence of
			// any data is worse than a placeholder.
			merged.Records = append(merged.Records, w)
			idx[w.DateKey()] = len(merged.Records) - 1
			newCount++
			continue
		}

		if shouldUpgrade(merged.Records[pos], w) && !recordsEqual(merged.Records[pos], w) {
			// Full replacement, not a field-by-field merge.
			merged.Records[pos] = w
			updatedCount++
		}
	}

	merged.SortByDate()
	if err := checkInvariants(merged); err != nil {
		return history, model.FailedOutcome(history.InstrumentID, existing, err)
	}

	outcome := model.RunOutcome{
		InstrumentID: history.InstrumentID,
		Status:       model.RunNoChange,
		Existing:     existing,
		New:          newCount,
		Updated:      updatedCount,
		Total:        merged.Len(),
	}
	if latest, ok := merged.Latest(); ok {
		outcome.LatestDate = latest.Format(model.DateFormat)
	}
	if newCount+updatedCount > 0 {
		outcome.Status = model.RunUpdated
		return merged, outcome
	}
	return history, outcome
}

// shouldUpgrade reports whether the stored record is provisional enough to
// be replaced by the fetched one. Stored confirmed values with non-trivial
// magnitude are authoritative and never replaced.
func shouldUpgrade(stored, fetched model.DatedRecord) bool {
	if !fetched.PremiumRatio.IsConfirmed() {
		return false
	}
	switch stored.PremiumRatio.Status {
	case model.Unconfirmed, model.Missing:
		return true
	}
	return stored.PremiumRatio.Value.Abs().LessThan(placeholderEpsilon)
}

// recordsEqual guards idempotence: replacing a record with an identical one
// must not count as an update, or a near-zero confirmed premium would report
// Updated on every run.
func recordsEqual(a, b model.DatedRecord) bool {
	if !a.ObservationDate.Equal(b.ObservationDate) ||
		!a.Price.Equal(b.Price) ||
		!a.ReferenceValue.Equal(b.ReferenceValue) ||
		!a.PremiumRatio.Equal(b.PremiumRatio) {
		return false
	}
	if len(a.Aux) != len(b.Aux) {
		return false
	}
	for k, v := range a.Aux {
		if b.Aux[k] != v {
			return false
		}
	}
	return true
}

func checkInvariants(h model.History) error {
	for i := 1; i < len(h.Records); i++ {
		prev, cur := h.Records[i-1], h.Records[i]
		if !prev.ObservationDate.Before(cur.ObservationDate) {
			return eris.Wrapf(ErrInvariantViolation, "dates %s and %s at positions %d,%d",
				prev.DateKey(), cur.DateKey(), i-1, i)
		}
	}
	return nil
}
