package analysis

import (
	"time"

	"github.com/pawprintlabs/pawprint/internal/records"
)

// DateRange spans the earliest and latest parsed timestamps of a
// record set, rendered RFC 3339.
type DateRange struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// SummaryView is the at-a-glance description of an uploaded export.
type SummaryView struct {
	LogType      string             `json:"log_type"`
	TotalRecords int                `json:"total_records"`
	Columns      []string           `json:"columns"`
	ParseStats   records.ParseStats `json:"parse_stats"`
	DateRange    *DateRange         `json:"date_range,omitempty"`
	UniqueUsers  int                `json:"unique_users"`
	UniqueFiles  int                `json:"unique_files"`
	UniqueIPs    int                `json:"unique_ips"`
}

// Summary computes the overview for a record set. logType and columns
// describe the source batch; recs is usually the filtered set.
func Summary(logType string, columns []string, stats records.ParseStats, recs []records.Record) SummaryView {
	view := SummaryView{
		LogType:      logType,
		TotalRecords: len(recs),
		Columns:      columns,
		ParseStats:   stats,
	}

	users := make(map[string]struct{})
	files := make(map[string]struct{})
	ips := make(map[string]struct{})
	var first, last *time.Time
	for i := range recs {
		rec := &recs[i]
		if rec.User != "" {
			users[rec.User] = struct{}{}
		}
		if rec.Subject != "" {
			files[rec.Subject] = struct{}{}
		}
		if rec.ClientIP != "" {
			ips[rec.ClientIP] = struct{}{}
		}
		if ts := rec.Timestamp; ts != nil {
			if first == nil || ts.Before(*first) {
				first = ts
			}
			if last == nil || ts.After(*last) {
				last = ts
			}
		}
	}

	view.UniqueUsers = len(users)
	view.UniqueFiles = len(files)
	view.UniqueIPs = len(ips)
	if first != nil {
		view.DateRange = &DateRange{
			First: first.Format(time.RFC3339),
			Last:  last.Format(time.RFC3339),
		}
	}
	return view
}
