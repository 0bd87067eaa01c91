// Package history persists per-instrument record histories as flat CSV
// files, one file per instrument, with atomic replace-on-write.
package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundlab/lofsync/internal/model"
)

// Canonical columns, always first and in this order. Remaining columns are
// the opaque auxiliary payload, written in first-seen order.
var canonicalColumns = []string{"instrument_id", "observation_date", "price", "net_value", "discount_rt"}

// placeholderToken encodes an Unconfirmed premium on disk, matching the
// feed's own marker. Missing premiums are written as an empty field.
const placeholderToken = "-"

// Store reads and writes instrument histories under a single data
// directory. Instrument identity is always an explicit parameter; the Store
// keeps no per-instrument state.
type Store struct {
	dir string
}

// NewStore creates the data directory if needed and returns a Store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "history: create data dir %s", dir)
	}
	return &Store{dir: dir}, nil
}

// Path returns the history file path for an instrument.
func (s *Store) Path(instrumentID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("lof_%s.csv", instrumentID))
}

// ModTime returns the last modification time of an instrument's file.
func (s *Store) ModTime(instrumentID string) (time.Time, error) {
	info, err := os.Stat(s.Path(instrumentID))
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "history: stat %s", instrumentID)
	}
	return info.ModTime(), nil
}

// Load reads the full history for an instrument. A missing file is the
// first-run case and yields an empty history. A corrupt file is logged and
// also yields an empty history: the feed is authoritative for its window,
// so data is reconstructable.
func (s *Store) Load(instrumentID string) model.History {
	empty := model.History{InstrumentID: instrumentID}

	f, err := os.Open(s.Path(instrumentID))
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("history: unreadable file, starting empty",
				zap.String("instrument", instrumentID),
				zap.Error(err),
			)
		}
		return empty
	}
	defer f.Close()

	h, err := read(f, instrumentID)
	if err != nil {
		zap.L().Warn("history: corrupt file, starting empty",
			zap.String("instrument", instrumentID),
			zap.Error(err),
		)
		return empty
	}
	return h
}

// Save writes the full history, replacing any prior contents. The write is
// atomic from the caller's perspective: contents go to a temp file in the
// same directory which is fsynced and renamed over the target, so a crash
// mid-write leaves the previous file intact.
func (s *Store) Save(instrumentID string, h model.History) error {
	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf("lof_%s_*.tmp", instrumentID))
	if err != nil {
		return eris.Wrapf(err, "history: create temp for %s", instrumentID)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp, h); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "history: write %s", instrumentID)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "history: sync %s", instrumentID)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "history: close temp for %s", instrumentID)
	}
	if err := os.Rename(tmp.Name(), s.Path(instrumentID)); err != nil {
		return eris.Wrapf(err, "history: rename into place for %s", instrumentID)
	}
	return nil
}

func write(w io.Writer, h model.History) error {
	cw := csv.NewWriter(w)

	header := append(append([]string(nil), canonicalColumns...), h.AuxColumns...)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "write header")
	}

	row := make([]string, len(header))
	for _, r := range h.Records {
		row[0] = r.InstrumentID
		row[1] = r.DateKey()
		row[2] = r.Price.String()
		row[3] = r.ReferenceValue.String()
		row[4] = encodePremium(r.PremiumRatio)
		for i, col := range h.AuxColumns {
			row[5+i] = r.Aux[col]
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "write row %s", r.DateKey())
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "flush")
}

func read(r io.Reader, instrumentID string) (model.History, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return model.History{InstrumentID: instrumentID}, nil
		}
		return model.History{}, eris.Wrap(err, "read header")
	}
	if len(header) < len(canonicalColumns) {
		return model.History{}, eris.Errorf("header has %d columns, want at least %d", len(header), len(canonicalColumns))
	}

	h := model.History{
		InstrumentID: instrumentID,
		AuxColumns:   append([]string(nil), header[len(canonicalColumns):]...),
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.History{}, eris.Wrap(err, "read row")
		}
		rec, err := decodeRow(header, row)
		if err != nil {
			return model.History{}, err
		}
		h.Records = append(h.Records, rec)
	}
	return h, nil
}

func decodeRow(header, row []string) (model.DatedRecord, error) {
	if len(row) < len(canonicalColumns) {
		return model.DatedRecord{}, eris.Errorf("row has %d fields, want at least %d", len(row), len(canonicalColumns))
	}

	obsDate, err := time.Parse(model.DateFormat, row[1])
	if err != nil {
		return model.DatedRecord{}, eris.Wrapf(err, "parse date %q", row[1])
	}

	rec := model.DatedRecord{
		InstrumentID:    row[0],
		ObservationDate: obsDate.UTC(),
		PremiumRatio:    decodePremium(row[4]),
		Aux:             map[string]string{},
	}
	if rec.Price, err = parseDecimalField(row[2]); err != nil {
		return model.DatedRecord{}, eris.Wrapf(err, "parse price %q", row[2])
	}
	if rec.ReferenceValue, err = parseDecimalField(row[3]); err != nil {
		return model.DatedRecord{}, eris.Wrapf(err, "parse net value %q", row[3])
	}

	for i := len(canonicalColumns); i < len(row) && i < len(header); i++ {
		rec.Aux[header[i]] = row[i]
	}
	return rec, nil
}

func encodePremium(p model.Premium) string {
	switch p.Status {
	case model.Unconfirmed:
		return placeholderToken
	case model.Missing:
		return ""
	default:
		return p.Value.String()
	}
}

func decodePremium(v string) model.Premium {
	switch strings.TrimSpace(v) {
	case placeholderToken:
		return model.UnconfirmedPremium()
	case "":
		return model.MissingPremium()
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return model.MissingPremium()
	}
	return model.ConfirmedPremium(d)
}

func parseDecimalField(v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(v))
}
