// Package analysis filters and aggregates normalized audit records
// into ranked pattern tables and the per-view breakdowns served by the
// API and the CLI. Every call recomputes from the record set it is
// given; nothing here holds state between calls.
package analysis

// Severity bands applied to bucket counts for display. Thresholds are
// fixed product values, not statistics.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

func severityFor(count int) string {
	switch {
	case count > 20:
		return SeverityHigh
	case count > 10:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Bucket is one ranked aggregation entry: the key tuple (one element
// per dimension), its occurrence count and the display severity.
type Bucket struct {
	Key      []string `json:"key"`
	Count    int      `json:"count"`
	Severity string   `json:"severity"`
}

// NameCount is a single name with its occurrence count, used by the
// breakdown views.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Table is one pattern table: the dimensions it was keyed on, the
// distinct tuple cardinality before truncation, and the ranked
// buckets.
type Table struct {
	Dims          []string `json:"dims"`
	TotalPatterns int      `json:"total_patterns"`
	Buckets       []Bucket `json:"buckets"`
}
