package analysis

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pawprintlabs/pawprint/internal/records"
)

const dateLayout = "2006-01-02"

// Filter is a compound predicate over the record set. All set fields
// are AND-combined; within one field, multiple accepted values are OR.
// The zero value matches everything.
type Filter struct {
	// Users and Operations match exactly, case-insensitive.
	Users      []string `json:"users,omitempty"`
	Operations []string `json:"operations,omitempty"`

	// Files is a case-insensitive substring match against the subject
	// or the folder.
	Files string `json:"files,omitempty"`

	// IPs and ExcludeIPs are comma-separated pattern lists where *
	// matches any substring. A record passes IPs when its address
	// matches any pattern, and is removed when it matches any
	// ExcludeIPs pattern.
	IPs        string `json:"ips,omitempty"`
	ExcludeIPs string `json:"exclude_ips,omitempty"`

	// Countries match the country name or the two-letter code; ASNs
	// match the AS number string. Both exact.
	Countries []string `json:"countries,omitempty"`
	ASNs      []string `json:"asns,omitempty"`

	// StartDate and EndDate are inclusive "2006-01-02" bounds; either
	// may be set alone. Records without a parsed timestamp never
	// satisfy a date bound.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return len(f.Users) == 0 && len(f.Operations) == 0 && f.Files == "" &&
		f.IPs == "" && f.ExcludeIPs == "" &&
		len(f.Countries) == 0 && len(f.ASNs) == 0 &&
		f.StartDate == "" && f.EndDate == ""
}

// FromQuery builds a Filter from request query parameters. List fields
// are comma-separated.
func FromQuery(v url.Values) Filter {
	return Filter{
		Users:      splitList(v.Get("users")),
		Operations: splitList(v.Get("operations")),
		Files:      strings.TrimSpace(v.Get("files")),
		IPs:        strings.TrimSpace(v.Get("ips")),
		ExcludeIPs: strings.TrimSpace(v.Get("exclude_ips")),
		Countries:  splitList(v.Get("countries")),
		ASNs:       splitList(v.Get("asns")),
		StartDate:  strings.TrimSpace(v.Get("start_date")),
		EndDate:    strings.TrimSpace(v.Get("end_date")),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// matcher is the compiled form of a Filter, built once per Apply.
type matcher struct {
	users      map[string]struct{}
	operations map[string]struct{}
	files      string
	ips        []ipMatcher
	excludeIPs []ipMatcher
	countries  map[string]struct{}
	asns       map[string]struct{}
	start, end *time.Time
}

func (f Filter) compile() matcher {
	m := matcher{
		users:      foldSet(f.Users),
		operations: foldSet(f.Operations),
		files:      strings.ToLower(f.Files),
		ips:        parseIPPatterns(f.IPs),
		excludeIPs: parseIPPatterns(f.ExcludeIPs),
		countries:  exactSet(f.Countries),
		asns:       exactSet(f.ASNs),
	}
	if t, err := time.Parse(dateLayout, f.StartDate); err == nil {
		m.start = &t
	}
	if t, err := time.Parse(dateLayout, f.EndDate); err == nil {
		end := t.Add(24*time.Hour - time.Nanosecond)
		m.end = &end
	}
	return m
}

func foldSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

func exactSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.TrimSpace(v)] = struct{}{}
	}
	return set
}

func (m *matcher) match(rec *records.Record) bool {
	if m.users != nil {
		if _, ok := m.users[strings.ToLower(rec.User)]; !ok {
			return false
		}
	}
	if m.operations != nil {
		if _, ok := m.operations[strings.ToLower(rec.Operation)]; !ok {
			return false
		}
	}
	if m.files != "" {
		if !strings.Contains(strings.ToLower(rec.Subject), m.files) &&
			!strings.Contains(strings.ToLower(rec.Folder), m.files) {
			return false
		}
	}
	if len(m.ips) > 0 && !matchAny(m.ips, rec.ClientIP) {
		return false
	}
	if len(m.excludeIPs) > 0 && matchAny(m.excludeIPs, rec.ClientIP) {
		return false
	}
	if m.countries != nil {
		if rec.Geo == nil {
			return false
		}
		_, byName := m.countries[rec.Geo.CountryName]
		_, byCode := m.countries[rec.Geo.CountryCode]
		if !byName && !byCode {
			return false
		}
	}
	if m.asns != nil {
		if rec.ASN == nil {
			return false
		}
		if _, ok := m.asns[rec.ASN.ASN]; !ok {
			return false
		}
	}
	if m.start != nil || m.end != nil {
		if rec.Timestamp == nil {
			return false
		}
		if m.start != nil && rec.Timestamp.Before(*m.start) {
			return false
		}
		if m.end != nil && rec.Timestamp.After(*m.end) {
			return false
		}
	}
	return true
}

// Apply returns the records satisfying the filter as a new slice,
// sorted most recent first. The input is never modified, so applying
// the same filter to its own output returns an identical set.
func (f Filter) Apply(recs []records.Record) []records.Record {
	m := f.compile()
	out := make([]records.Record, 0, len(recs))
	for i := range recs {
		if m.match(&recs[i]) {
			out = append(out, recs[i])
		}
	}
	SortByTimestampDesc(out)
	return out
}

// SortByTimestampDesc orders records most recent first. Records
// without a parsed timestamp sort as if dated at the epoch, placing
// them last. The sort is stable so equal timestamps keep input order.
func SortByTimestampDesc(recs []records.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return tsOrEpoch(&recs[i]).After(tsOrEpoch(&recs[j]))
	})
}

func tsOrEpoch(rec *records.Record) time.Time {
	if rec.Timestamp == nil {
		return time.Time{}
	}
	return *rec.Timestamp
}
