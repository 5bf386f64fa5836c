// Package export writes the occupancy ledger in formats the plant's
// scheduling spreadsheets import.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/pailas/core/model"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Header is the first CSV row.
var Header = []string{"vessel_id", "order_id", "status", "start", "end"}

// Write encodes recs in the given format. An empty format means JSON.
func Write(w io.Writer, format string, recs []model.OccupancyRecord) error {
	switch format {
	case "", FormatJSON:
		return WriteJSON(w, recs)
	case FormatCSV:
		return WriteCSV(w, recs)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON writes the ledger as a JSON array.
func WriteJSON(w io.Writer, recs []model.OccupancyRecord) error {
	if recs == nil {
		recs = []model.OccupancyRecord{}
	}
	return json.NewEncoder(w).Encode(recs)
}

// WriteCSV writes one row per record. Open window bounds and order-less
// records leave their cells empty.
func WriteCSV(w io.Writer, recs []model.OccupancyRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{r.VesselID, "", r.Status.String(), formatTime(r.Start), formatTime(r.End)}
		if r.OrderID != nil {
			row[1] = strconv.FormatInt(*r.OrderID, 10)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
