package history

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/fundlab/lofsync/internal/model"
)

// StoreSummary aggregates the state of every history on disk.
type StoreSummary struct {
	Instruments  int
	TotalRecords int
	LatestDates  map[string]string // instrument id → latest observation date
	Unreadable   []string          // instrument ids whose file failed to parse
}

// Summary scans the data directory and reports per-instrument record counts
// and latest dates.
func (s *Store) Summary() (StoreSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return StoreSummary{}, eris.Wrapf(err, "history: read data dir %s", s.dir)
	}

	sum := StoreSummary{LatestDates: map[string]string{}}
	for _, e := range entries {
		id, ok := instrumentFromFilename(e.Name())
		if !ok {
			continue
		}
		sum.Instruments++

		f, err := os.Open(filepath.Join(s.dir, e.Name()))
		if err != nil {
			sum.Unreadable = append(sum.Unreadable, id)
			continue
		}
		h, err := read(f, id)
		f.Close()
		if err != nil {
			sum.Unreadable = append(sum.Unreadable, id)
			continue
		}

		sum.TotalRecords += h.Len()
		if latest, ok := h.Latest(); ok {
			sum.LatestDates[id] = latest.Format(model.DateFormat)
		}
	}
	return sum, nil
}

func instrumentFromFilename(name string) (string, bool) {
	if !strings.HasPrefix(name, "lof_") || !strings.HasSuffix(name, ".csv") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "lof_"), ".csv"), true
}
