// Package instruments loads the static list of tracked instrument codes.
package instruments

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoInstruments means the list file is missing, unreadable, or empty.
// This is fatal to a batch run: with no instruments there is nothing to do.
var ErrNoInstruments = eris.New("instruments: no instrument codes configured")

// List reads instrument codes from a newline-delimited file. Blank lines
// and lines starting with '#' are skipped; surrounding whitespace is
// trimmed. Order is preserved.
func List(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrNoInstruments, "open %s: %v", path, err)
	}
	defer f.Close()

	var codes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(ErrNoInstruments, "read %s: %v", path, err)
	}
	if len(codes) == 0 {
		return nil, eris.Wrapf(ErrNoInstruments, "%s is empty", path)
	}
	return codes, nil
}
