package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pawprintlabs/pawprint/internal/records"
	"github.com/pawprintlabs/pawprint/internal/usermap"
)

var exportHeader = []string{
	"timestamp", "user", "upn", "operation", "subject", "folder",
	"size", "client_ip", "country", "asn",
}

// ExportCSV streams the record set as CSV. The user column carries the
// display name while the upn column keeps the raw principal name.
func ExportCSV(w io.Writer, recs []records.Record, mapper usermap.Map) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("analysis: write export header: %w", err)
	}

	for i := range recs {
		rec := &recs[i]

		ts := rec.TimestampRaw
		if rec.Timestamp != nil {
			ts = rec.Timestamp.Format(time.RFC3339)
		}
		size := ""
		if rec.Size != 0 {
			size = strconv.FormatInt(rec.Size, 10)
		}
		country := ""
		if rec.Geo != nil {
			country = rec.Geo.CountryName
		}
		asn := ""
		if rec.ASN != nil {
			asn = rec.ASN.ASN
		}

		row := []string{
			ts, mapper.Display(rec.User), rec.User, rec.Operation,
			rec.Subject, rec.Folder, size, rec.ClientIP, country, asn,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("analysis: write export row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
