// Package records turns raw Purview audit-log rows into canonical
// operation records. A malformed payload degrades the affected record
// instead of failing the batch.
package records

import (
	"time"

	"github.com/pawprintlabs/pawprint/internal/geoip"
)

// Record is the canonical unit of audit activity. Fields that do not
// apply to an operation keep their zero value and are never fabricated.
type Record struct {
	// Timestamp is nil when the source value is missing or unparsable;
	// TimestampRaw always keeps the original string for display.
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	TimestampRaw string     `json:"timestamp_raw,omitempty"`

	Operation string `json:"operation"`
	User      string `json:"user,omitempty"`
	Workload  string `json:"workload,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`

	Subject string `json:"subject,omitempty"`
	Folder  string `json:"folder,omitempty"`
	Size    int64  `json:"size,omitempty"`

	// Geo and ASN stay nil until enrichment runs, and permanently when
	// the client IP is empty, unparsable, or in no range.
	Geo *geoip.GeoInfo `json:"geo,omitempty"`
	ASN *geoip.ASNInfo `json:"asn,omitempty"`

	// EmailDetails carries up to three per-message entries for
	// mail-access operations.
	EmailDetails []EmailDetail `json:"email_details,omitempty"`

	// Raw is the parsed AuditData payload, retained unmodified; nil
	// when the payload was absent or failed to parse.
	Raw map[string]any `json:"raw,omitempty"`
}

// EmailDetail describes one message touched by an operation.
type EmailDetail struct {
	Timestamp string `json:"timestamp,omitempty"`
	Subject   string `json:"subject"`
	Folder    string `json:"folder"`
	Size      int64  `json:"size"`
}

// ParseStats counts row-level degradations over a batch. None of these
// are fatal; they exist so callers can surface data quality.
type ParseStats struct {
	TotalRows         int `json:"total_rows"`
	SkippedRows       int `json:"skipped_rows"`
	JSONFailures      int `json:"json_failures"`
	TimestampFailures int `json:"timestamp_failures"`
}

// Add accumulates another batch's counters, used when uploads merge.
func (s *ParseStats) Add(other ParseStats) {
	s.TotalRows += other.TotalRows
	s.SkippedRows += other.SkippedRows
	s.JSONFailures += other.JSONFailures
	s.TimestampFailures += other.TimestampFailures
}

// Batch is one parsed CSV: the header, the surviving raw rows, and the
// degradation counters collected while reading and normalizing.
type Batch struct {
	Columns []string
	Rows    []map[string]string
	Stats   ParseStats
}

// Normalize converts every row of the batch into a Record, collecting
// degradation counts into the batch stats.
func (b *Batch) Normalize() []Record {
	out := make([]Record, 0, len(b.Rows))
	for _, row := range b.Rows {
		out = append(out, Normalize(row, &b.Stats))
	}
	return out
}

// LogType classifies the batch from its header columns.
func (b *Batch) LogType() string {
	return DetectLogType(b.Columns)
}

// MergeColumns unions two header lists, preserving first-seen order.
// Merged uploads rarely share identical headers; the union keeps every
// column addressable.
func MergeColumns(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, c := range a {
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, c := range b {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
