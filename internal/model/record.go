// Package model defines the core data types shared across the sync pipeline:
// dated fund records, per-instrument histories, and run outcomes.
package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical day-granularity date encoding used in feed
// payloads, persisted files, and record keys.
const DateFormat = "2006-01-02"

// ConfirmationStatus classifies the premium ratio on a fetched record.
// The upstream feed publishes the trade-day row before settlement data is
// available, marking the premium with a placeholder until T+1.
type ConfirmationStatus int

const (
	// Confirmed means the feed supplied a finite numeric premium.
	Confirmed ConfirmationStatus = iota
	// Unconfirmed means the feed explicitly marked the premium as pending
	// (the "-" placeholder on trade-day rows).
	Unconfirmed
	// Missing means the premium was absent or unparseable.
	Missing
)

func (s ConfirmationStatus) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case Unconfirmed:
		return "unconfirmed"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Premium is a premium ratio together with its confirmation status.
// Value is meaningful only when Status == Confirmed.
type Premium struct {
	Value  decimal.Decimal
	Status ConfirmationStatus
}

// ConfirmedPremium returns a Confirmed premium with the given value.
func ConfirmedPremium(v decimal.Decimal) Premium {
	return Premium{Value: v, Status: Confirmed}
}

// UnconfirmedPremium returns the pending-placeholder premium.
func UnconfirmedPremium() Premium {
	return Premium{Status: Unconfirmed}
}

// MissingPremium returns the absent-value premium.
func MissingPremium() Premium {
	return Premium{Status: Missing}
}

// IsConfirmed reports whether the premium carries a usable numeric value.
func (p Premium) IsConfirmed() bool {
	return p.Status == Confirmed
}

// Equal reports whether two premiums have the same status and, when
// confirmed, the same numeric value.
func (p Premium) Equal(o Premium) bool {
	if p.Status != o.Status {
		return false
	}
	if p.Status != Confirmed {
		return true
	}
	return p.Value.Equal(o.Value)
}

// DatedRecord is one instrument observation for one calendar date.
// (InstrumentID, ObservationDate) is the natural key. Records are never
// mutated in place; the reconcile engine produces replacements.
type DatedRecord struct {
	InstrumentID    string
	ObservationDate time.Time // UTC midnight, day granularity
	Price           decimal.Decimal
	ReferenceValue  decimal.Decimal // the fund's independently computed net value
	PremiumRatio    Premium
	// Aux carries all feed columns the core does not interpret
	// (volume, turnover, estimated values, ...). Preserved verbatim
	// through persistence.
	Aux map[string]string
}

// DateKey returns the record's observation date in canonical form.
func (r DatedRecord) DateKey() string {
	return r.ObservationDate.Format(DateFormat)
}

// History is the full ordered record sequence for one instrument.
// Invariants after every write: ascending ObservationDate, at most one
// record per date.
type History struct {
	InstrumentID string
	Records      []DatedRecord
	// AuxColumns preserves the first-seen order of auxiliary feed columns
	// so persisted files keep a stable layout across runs.
	AuxColumns []string
}

// Len returns the number of records on file.
func (h History) Len() int { return len(h.Records) }

// Latest returns the most recent observation date, or ok=false when the
// history is empty.
func (h History) Latest() (time.Time, bool) {
	if len(h.Records) == 0 {
		return time.Time{}, false
	}
	return h.Records[len(h.Records)-1].ObservationDate, true
}

// Index returns a date-key → position lookup for the current records.
func (h History) Index() map[string]int {
	idx := make(map[string]int, len(h.Records))
	for i, r := range h.Records {
		idx[r.DateKey()] = i
	}
	return idx
}

// SortByDate orders the records by ascending observation date in place.
func (h *History) SortByDate() {
	sort.SliceStable(h.Records, func(i, j int) bool {
		return h.Records[i].ObservationDate.Before(h.Records[j].ObservationDate)
	})
}

// AddAuxColumn appends a column name if it is not already tracked.
func (h *History) AddAuxColumn(name string) {
	for _, c := range h.AuxColumns {
		if c == name {
			return
		}
	}
	h.AuxColumns = append(h.AuxColumns, name)
}
