package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zombor/doc-digitizer/internal/document"
)

const CSVContentType = "text/csv;charset=utf-8"

// WriteCSV writes a header of column labels followed by one line per item.
// Every data field is quoted with embedded quotes doubled; lines are joined
// with "\n" and there is no trailing newline.
func WriteCSV(w io.Writer, items []document.Item, columns []document.Column) error {
	bw := bufio.NewWriter(w)

	labels := make([]string, len(columns))
	for i, col := range columns {
		labels[i] = col.Label
	}
	bw.WriteString(strings.Join(labels, ","))

	fields := make([]string, len(columns))
	for _, item := range items {
		for i, col := range columns {
			fields[i] = quote(item.Get(col.Key))
		}
		bw.WriteByte('\n')
		bw.WriteString(strings.Join(fields, ","))
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CSVFilename returns the download name, e.g. BOM_Export_2024-01-15.csv
func CSVFilename(docType document.Type, t time.Time) string {
	return filename(docType, t, "csv")
}

func filename(docType document.Type, t time.Time, ext string) string {
	return fmt.Sprintf("%s_Export_%s.%s", docType, t.UTC().Format("2006-01-02"), ext)
}
