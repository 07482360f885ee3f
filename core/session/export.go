package session

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/pkg/errors"
)

var rosterHeader = []string{"identifier", "name", "department", "section", "device_token", "marked_at"}

// WriteRosterCSV writes the entries as CSV with a header row, in the order
// given. Timestamps are RFC 3339.
func WriteRosterCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rosterHeader); err != nil {
		return errors.Wrap(err, "writing roster header")
	}
	for _, e := range entries {
		record := []string{
			e.Identifier,
			e.Name,
			e.Department,
			e.Section,
			e.DeviceToken,
			e.MarkedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "writing roster row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing roster")
}
