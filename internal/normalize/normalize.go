// Package normalize converts raw feed rows into canonical dated records.
package normalize

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/fundlab/lofsync/internal/model"
)

// ErrMalformedRecord marks a raw row with no parseable observation date.
// Such rows are skipped at the call site, never fatal to a whole window.
var ErrMalformedRecord = eris.New("normalize: malformed record")

// placeholderToken is the feed's marker for a premium pending T+1
// confirmation.
const placeholderToken = "-"

// dateKeys lists the raw field names accepted as the observation date,
// in priority order.
var dateKeys = []string{"price_dt", "net_value_dt", "date"}

// dateLayouts are the date encodings the feed has been seen to use.
var dateLayouts = []string{model.DateFormat, "2006/01/02"}

// Normalize converts one raw feed row into a DatedRecord for the given
// instrument. It is pure and idempotent: the same row always yields an
// equal record, and the input map is never modified.
func Normalize(raw map[string]string, instrumentID string) (model.DatedRecord, error) {
	dateKey, obsDate, err := extractDate(raw)
	if err != nil {
		return model.DatedRecord{}, err
	}

	rec := model.DatedRecord{
		InstrumentID:    instrumentID,
		ObservationDate: obsDate,
		Price:           parseDecimal(raw["price"]),
		ReferenceValue:  parseDecimal(raw["net_value"]),
		PremiumRatio:    classifyPremium(raw),
		Aux:             map[string]string{},
	}

	for k, v := range raw {
		switch k {
		case dateKey, "price", "net_value", "discount_rt":
			continue
		}
		rec.Aux[k] = v
	}

	return rec, nil
}

func extractDate(raw map[string]string) (string, time.Time, error) {
	for _, key := range dateKeys {
		v, ok := raw[key]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		for _, layout := range dateLayouts {
			t, err := time.Parse(layout, strings.TrimSpace(v))
			if err == nil {
				return key, t.UTC(), nil
			}
		}
	}
	return "", time.Time{}, eris.Wrap(ErrMalformedRecord, "no parseable date field")
}

func classifyPremium(raw map[string]string) model.Premium {
	v, ok := raw["discount_rt"]
	if !ok {
		return model.MissingPremium()
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return model.MissingPremium()
	}
	if v == placeholderToken {
		return model.UnconfirmedPremium()
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(v, "%"))
	if err != nil {
		// Present but unparseable is a data-quality issue, not a fatal one.
		return model.MissingPremium()
	}
	return model.ConfirmedPremium(d)
}

// parseDecimal parses v, returning zero for absent or unparseable values.
func parseDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(v, "%")))
	if err != nil {
		return decimal.Zero
	}
	return d
}
