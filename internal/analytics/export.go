// ABOUTME: CSV export of analytics records
// ABOUTME: Writes the same Time,File,Count,Status sheet the dashboard exported

package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ExportFilename is the suggested download name for exported data.
const ExportFilename = "jutevision_analytics.csv"

// WriteCSV writes the records to w as CSV with a Time,File,Count,Status
// header, in the order given.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Time", "File", "Count", "Status"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, r := range records {
		row := []string{r.Time, r.Filename, strconv.Itoa(r.Count), r.Status}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
