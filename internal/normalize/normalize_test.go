package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundlab/lofsync/internal/model"
)

func TestNormalize_ConfirmedRow(t *testing.T) {
	raw := map[string]string{
		"price_dt":    "2024-03-15",
		"price":       "1.234",
		"net_value":   "1.200",
		"discount_rt": "2.83",
		"amount":      "15230",
		"fund_nm":     "某LOF基金",
	}

	rec, err := Normalize(raw, "161725")
	require.NoError(t, err)

	assert.Equal(t, "161725", rec.InstrumentID)
	assert.Equal(t, "2024-03-15", rec.DateKey())
	assert.Equal(t, "1.234", rec.Price.String())
	assert.Equal(t, "1.200", rec.ReferenceValue.String())
	assert.Equal(t, model.Confirmed, rec.PremiumRatio.Status)
	assert.Equal(t, "2.83", rec.PremiumRatio.Value.String())

	// Interpreted fields are consumed; everything else passes through.
	assert.Equal(t, map[string]string{"amount": "15230", "fund_nm": "某LOF基金"}, rec.Aux)
}

func TestNormalize_PremiumClassification(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]string
		want model.ConfirmationStatus
	}{
		{"placeholder is unconfirmed", map[string]string{"price_dt": "2024-03-15", "discount_rt": "-"}, model.Unconfirmed},
		{"absent is missing", map[string]string{"price_dt": "2024-03-15"}, model.Missing},
		{"empty is missing", map[string]string{"price_dt": "2024-03-15", "discount_rt": ""}, model.Missing},
		{"unparseable is missing not fatal", map[string]string{"price_dt": "2024-03-15", "discount_rt": "n/a"}, model.Missing},
		{"numeric is confirmed", map[string]string{"price_dt": "2024-03-15", "discount_rt": "-0.55"}, model.Confirmed},
		{"percent suffix is confirmed", map[string]string{"price_dt": "2024-03-15", "discount_rt": "1.20%"}, model.Confirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Normalize(tt.raw, "161725")
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.PremiumRatio.Status)
		})
	}
}

func TestNormalize_DateKeyPriority(t *testing.T) {
	rec, err := Normalize(map[string]string{
		"price_dt":     "2024-03-15",
		"net_value_dt": "2024-03-14",
		"discount_rt":  "1.0",
	}, "161725")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-15", rec.DateKey())
	// The fallback date field stays in the opaque payload.
	assert.Equal(t, "2024-03-14", rec.Aux["net_value_dt"])
}

func TestNormalize_FallbackDateField(t *testing.T) {
	rec, err := Normalize(map[string]string{"net_value_dt": "2024/03/15"}, "161725")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", rec.DateKey())
}

func TestNormalize_NoDate(t *testing.T) {
	_, err := Normalize(map[string]string{"price": "1.0", "discount_rt": "2.0"}, "161725")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = Normalize(map[string]string{"price_dt": "not a date"}, "161725")
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := map[string]string{
		"price_dt":    "2024-03-15",
		"price":       "1.234",
		"net_value":   "1.2",
		"discount_rt": "-",
		"amount":      "99",
	}

	first, err := Normalize(raw, "161725")
	require.NoError(t, err)
	second, err := Normalize(raw, "161725")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// The input map is untouched.
	assert.Equal(t, "-", raw["discount_rt"])
	assert.Len(t, raw, 5)
}
