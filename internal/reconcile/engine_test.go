package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundlab/lofsync/internal/model"
)

func day(s string) time.Time {
	t, err := time.Parse(model.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func confirmed(id, date, premium string) model.DatedRecord {
	return model.DatedRecord{
		InstrumentID:    id,
		ObservationDate: day(date),
		Price:           decimal.RequireFromString("1.00"),
		ReferenceValue:  decimal.RequireFromString("0.98"),
		PremiumRatio:    model.ConfirmedPremium(decimal.RequireFromString(premium)),
		Aux:             map[string]string{"amount": "100"},
	}
}

func unconfirmed(id, date string) model.DatedRecord {
	r := confirmed(id, date, "0")
	r.PremiumRatio = model.UnconfirmedPremium()
	return r
}

func historyOf(records ...model.DatedRecord) model.History {
	h := model.History{InstrumentID: "161725", Records: records, AuxColumns: []string{"amount"}}
	h.SortByDate()
	return h
}

func TestMerge_PureNovelty(t *testing.T) {
	h := historyOf(confirmed("161725", "2024-03-11", "1.10"))
	window := []model.DatedRecord{
		confirmed("161725", "2024-03-13", "1.30"),
		confirmed("161725", "2024-03-12", "1.20"),
	}

	merged, outcome := Merge(h, window)

	assert.Equal(t, model.RunUpdated, outcome.Status)
	assert.Equal(t, 2, outcome.New)
	assert.Equal(t, 0, outcome.Updated)
	assert.Equal(t, 1, outcome.Existing)
	assert.Equal(t, 3, outcome.Total)
	assert.Equal(t, "2024-03-13", outcome.LatestDate)

	// Result is the sorted union.
	require.Len(t, merged.Records, 3)
	assert.Equal(t, "2024-03-11", merged.Records[0].DateKey())
	assert.Equal(t, "2024-03-12", merged.Records[1].DateKey())
	assert.Equal(t, "2024-03-13", merged.Records[2].DateKey())
}

func TestMerge_UnconfirmedRecordsAreStillNew(t *testing.T) {
	// Absence of any data is worse than a placeholder: trade-day rows with
	// pending premiums are appended, not dropped.
	h := historyOf()
	window := []model.DatedRecord{unconfirmed("161725", "2024-03-15")}

	merged, outcome := Merge(h, window)

	assert.Equal(t, model.RunUpdated, outcome.Status)
	assert.Equal(t, 1, outcome.New)
	require.Len(t, merged.Records, 1)
	assert.Equal(t, model.Unconfirmed, merged.Records[0].PremiumRatio.Status)
}

func TestMerge_NoRegression(t *testing.T) {
	// A stored confirmed value is authoritative: a later fetch with a
	// different confirmed value must not overwrite it.
	h := historyOf(confirmed("161725", "2024-03-14", "3.14"))
	window := []model.DatedRecord{confirmed("161725", "2024-03-14", "2.71")}

	merged, outcome := Merge(h, window)

	assert.Equal(t, model.RunNoChange, outcome.Status)
	assert.Equal(t, 0, outcome.Updated)
	assert.Equal(t, "3.14", merged.Records[0].PremiumRatio.Value.String())
}

func TestMerge_UpgradeFromUnconfirmed(t *testing.T) {
	h := historyOf(unconfirmed("161725", "2024-03-14"))

	replacement := confirmed("161725", "2024-03-14", "4.56")
	replacement.Price = decimal.RequireFromString("1.05")
	replacement.Aux = map[string]string{"amount": "250"}

	merged, outcome := Merge(h, []model.DatedRecord{replacement})

	assert.Equal(t, model.RunUpdated, outcome.Status)
	assert.Equal(t, 1, outcome.Updated)
	assert.Equal(t, 0, outcome.New)

	// Full replacement, every field taken from the fetched record.
	got := merged.Records[0]
	assert.Equal(t, "4.56", got.PremiumRatio.Value.String())
	assert.Equal(t, "1.05", got.Price.String())
	assert.Equal(t, "250", got.Aux["amount"])
}

func TestMerge_UpgradeFromMissing(t *testing.T) {
	stored := confirmed("161725", "2024-03-14", "0")
	stored.PremiumRatio = model.MissingPremium()
	h := historyOf(stored)

	_, outcome := Merge(h, []model.DatedRecord{confirmed("161725", "2024-03-14", "1.50")})

	assert.Equal(t, model.RunUpdated, outcome.Status)
	assert.Equal(t, 1, outcome.Updated)
}

func TestMerge_UpgradeFromNearZeroPlaceholder(t *testing.T) {
	// A confirmed value below the epsilon threshold is treated as a zero
	// placeholder that slipped through and is upgradeable.
	h := historyOf(confirmed("161725", "2024-03-14", "0.005"))

	_, outcome := Merge(h, []model.DatedRecord{confirmed("161725", "2024-03-14", "1.50")})
	assert.Equal(t, 1, outcome.Updated)

	// At or above the threshold the stored value stands.
	h2 := historyOf(confirmed("161725", "2024-03-14", "0.01"))
	_, outcome2 := Merge(h2, []model.DatedRecord{confirmed("161725", "2024-03-14", "1.50")})
	assert.Equal(t, 0, outcome2.Updated)
}

func TestMerge_UnconfirmedNeverReplacesAnything(t *testing.T) {
	h := historyOf(unconfirmed("161725", "2024-03-14"))
	_, outcome := Merge(h, []model.DatedRecord{unconfirmed("161725", "2024-03-14")})

	assert.Equal(t, model.RunNoChange, outcome.Status)
	assert.Equal(t, 0, outcome.Updated)
}

func TestMerge_EmptyWindowIsFailed(t *testing.T) {
	h := historyOf(confirmed("161725", "2024-03-14", "1.00"))

	merged, outcome := Merge(h, nil)

	assert.Equal(t, model.RunFailed, outcome.Status)
	assert.NotEmpty(t, outcome.Err)
	assert.Equal(t, 1, outcome.Existing)
	// History is returned untouched.
	assert.Equal(t, h, merged)
}

func TestMerge_Idempotent(t *testing.T) {
	h := historyOf(
		unconfirmed("161725", "2024-03-14"),
		confirmed("161725", "2024-03-13", "1.10"),
	)
	window := []model.DatedRecord{
		confirmed("161725", "2024-03-15", "2.00"),
		confirmed("161725", "2024-03-14", "1.90"),
		confirmed("161725", "2024-03-13", "9.99"), // differs, must be ignored
	}

	first, firstOutcome := Merge(h, window)
	require.Equal(t, model.RunUpdated, firstOutcome.Status)
	assert.Equal(t, 1, firstOutcome.New)
	assert.Equal(t, 1, firstOutcome.Updated)

	second, secondOutcome := Merge(first, window)
	assert.Equal(t, model.RunNoChange, secondOutcome.Status)
	assert.Equal(t, 0, secondOutcome.New)
	assert.Equal(t, 0, secondOutcome.Updated)
	assert.Equal(t, first, second)
}

func TestMerge_InputHistoryNotMutated(t *testing.T) {
	h := historyOf(unconfirmed("161725", "2024-03-14"))
	_, _ = Merge(h, []model.DatedRecord{confirmed("161725", "2024-03-14", "1.50")})

	assert.Equal(t, model.Unconfirmed, h.Records[0].PremiumRatio.Status)
}

func TestMerge_InvariantsHoldAcrossRepeatedMerges(t *testing.T) {
	h := historyOf()
	windows := [][]model.DatedRecord{
		{unconfirmed("161725", "2024-03-13"), confirmed("161725", "2024-03-12", "1.0")},
		{confirmed("161725", "2024-03-13", "1.1"), confirmed("161725", "2024-03-12", "2.0")},
		{confirmed("161725", "2024-03-14", "1.2"), confirmed("161725", "2024-03-13", "3.0")},
	}

	for _, w := range windows {
		var outcome model.RunOutcome
		h, outcome = Merge(h, w)
		require.NotEqual(t, model.RunFailed, outcome.Status)

		seen := map[string]bool{}
		for i, r := range h.Records {
			assert.False(t, seen[r.DateKey()], "duplicate date %s", r.DateKey())
			seen[r.DateKey()] = true
			if i > 0 {
				assert.True(t, h.Records[i-1].ObservationDate.Before(r.ObservationDate))
			}
		}
	}

	// First confirmed value won and was kept.
	require.Len(t, h.Records, 3)
	assert.Equal(t, "1.1", h.Records[1].PremiumRatio.Value.String())
}

func TestMerge_NewAuxColumnsTracked(t *testing.T) {
	h := historyOf(confirmed("161725", "2024-03-13", "1.0"))

	rec := confirmed("161725", "2024-03-14", "1.1")
	rec.Aux["est_val"] = "1.21"
	merged, _ := Merge(h, []model.DatedRecord{rec})

	assert.Contains(t, merged.AuxColumns, "est_val")
	assert.Contains(t, merged.AuxColumns, "amount")
}
