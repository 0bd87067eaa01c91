package history

import (
	"fmt"

	"github.com/fundlab/lofsync/internal/model"
)

// VerifyReport lists integrity findings for one instrument's history.
type VerifyReport struct {
	InstrumentID string
	Records      int
	LatestDate   string
	Issues       []string
}

// Valid reports whether no issues were found.
func (r VerifyReport) Valid() bool { return len(r.Issues) == 0 }

// Verify loads an instrument's history and checks it for lingering
// placeholder rows, missing premiums, unsorted or duplicate dates.
func (s *Store) Verify(instrumentID string) VerifyReport {
	h := s.Load(instrumentID)

	report := VerifyReport{
		InstrumentID: instrumentID,
		Records:      h.Len(),
	}
	if h.Len() == 0 {
		report.Issues = append(report.Issues, "no data on file")
		return report
	}
	if latest, ok := h.Latest(); ok {
		report.LatestDate = latest.Format(model.DateFormat)
	}

	var missing, unconfirmed int
	for _, r := range h.Records {
		switch r.PremiumRatio.Status {
		case model.Missing:
			missing++
		case model.Unconfirmed:
			unconfirmed++
		}
	}
	if missing > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d records with missing premium", missing))
	}
	if unconfirmed > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d records still awaiting confirmation", unconfirmed))
	}

	seen := map[string]bool{}
	for i, r := range h.Records {
		if seen[r.DateKey()] {
			report.Issues = append(report.Issues, fmt.Sprintf("duplicate date %s", r.DateKey()))
		}
		seen[r.DateKey()] = true
		if i > 0 && !h.Records[i-1].ObservationDate.Before(r.ObservationDate) {
			report.Issues = append(report.Issues, "dates not in ascending order")
			break
		}
	}
	return report
}
