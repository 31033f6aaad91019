// package formatter renders tracking records and sync reports for the CLI (plain text, CSV, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/trackify/internal/models"
)

// FormatTrackedPlaylists renders tracking records as an aligned text table.
func FormatTrackedPlaylists(records []*models.TrackedPlaylist) []byte {
	var buf bytes.Buffer

	if len(records) == 0 {
		buf.WriteString("No tracked playlists.\n")
		return buf.Bytes()
	}

	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSOURCE\tCOPY\tLAST SYNCED\tAUTO")
	for _, tp := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			tp.ID,
			tp.Name,
			tp.SourcePlaylistID,
			tp.TrackedPlaylistID,
			formatLastSynced(tp.LastSynced),
			formatAutoSync(tp.AutoSyncEnabled),
		)
	}
	w.Flush()

	return buf.Bytes()
}

// FormatSyncReport renders the outcome of one reconciliation pass.
func FormatSyncReport(name string, report *models.SyncReport) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Synced %s at %s\n", name, report.SyncedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Added: %d\n", len(report.Added))
	for _, uri := range report.Added {
		fmt.Fprintf(&buf, "  + %s\n", uri)
	}
	fmt.Fprintf(&buf, "Newly excluded: %d\n", len(report.NewlyExcluded))
	for _, uri := range report.NewlyExcluded {
		fmt.Fprintf(&buf, "  - %s\n", uri)
	}

	return buf.Bytes()
}

// ExportToCSV converts tracking records to CSV with columns:
// ID, Name, Source, Copy, LastSynced, AutoSync
func ExportToCSV(records []*models.TrackedPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Source", "Copy", "LastSynced", "AutoSync"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, tp := range records {
		record := []string{
			strconv.FormatInt(tp.ID, 10),
			tp.Name,
			tp.SourcePlaylistID,
			tp.TrackedPlaylistID,
			formatLastSynced(tp.LastSynced),
			strconv.FormatBool(tp.AutoSyncEnabled),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToJSON renders any value as indented JSON.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func formatLastSynced(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatAutoSync(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
