package session

import (
	"io"
	"time"

	"github.com/zombor/doc-digitizer/internal/export"
)

// Format is a download format for the active record set
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// Export writes the active record set in the given format and returns the
// download filename and content type. Exporting an empty set writes only the header.
func (s *Session) Export(w io.Writer, format Format, now time.Time) (filename, contentType string, err error) {
	snap := s.Snapshot()

	switch format {
	case XLSX:
		if err := export.WriteXLSX(w, snap.Items, snap.Columns, string(snap.DocType)); err != nil {
			return "", "", err
		}
		return export.XLSXFilename(snap.DocType, now), export.XLSXContentType, nil
	default:
		if err := export.WriteCSV(w, snap.Items, snap.Columns); err != nil {
			return "", "", err
		}
		return export.CSVFilename(snap.DocType, now), export.CSVContentType, nil
	}
}
