package model

import "time"

// RunStatus is the per-instrument result class of one reconciliation.
type RunStatus string

const (
	RunUpdated  RunStatus = "updated"
	RunNoChange RunStatus = "no_change"
	RunFailed   RunStatus = "failed"
)

// RunOutcome is the result of reconciling one instrument.
type RunOutcome struct {
	InstrumentID string    `json:"instrument_id"`
	Status       RunStatus `json:"status"`
	Existing     int       `json:"existing"` // records on file before the run
	New          int       `json:"new"`      // dates appended
	Updated      int       `json:"updated"`  // placeholder rows upgraded
	Total        int       `json:"total"`    // records on file after the run
	LatestDate   string    `json:"latest_date,omitempty"`
	Err          string    `json:"error,omitempty"`
}

// FailedOutcome builds a Failed outcome carrying the error description.
func FailedOutcome(instrumentID string, existing int, err error) RunOutcome {
	o := RunOutcome{
		InstrumentID: instrumentID,
		Status:       RunFailed,
		Existing:     existing,
		Total:        existing,
	}
	if err != nil {
		o.Err = err.Error()
	}
	return o
}

// BatchSummary partitions the outcomes of one batch run. It is the sole
// externally observed result of SyncAll.
type BatchSummary struct {
	Updated  []RunOutcome `json:"updated"`
	NoChange []RunOutcome `json:"no_change"`
	Failed   []RunOutcome `json:"failed"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Add files an outcome into the matching partition.
func (s *BatchSummary) Add(o RunOutcome) {
	switch o.Status {
	case RunUpdated:
		s.Updated = append(s.Updated, o)
	case RunNoChange:
		s.NoChange = append(s.NoChange, o)
	default:
		s.Failed = append(s.Failed, o)
	}
}

// Total returns the number of instruments with a recorded outcome.
func (s *BatchSummary) Total() int {
	return len(s.Updated) + len(s.NoChange) + len(s.Failed)
}
