package analysis

import (
	"sort"

	"github.com/pawprintlabs/pawprint/internal/records"
	"github.com/pawprintlabs/pawprint/internal/usermap"
)

const (
	operationDetailCap = 100
	countryTableLimit  = 50
)

// DetailEntry is one timeline row of the Exchange view. The user stays
// the raw UPN; display mapping applies to the per-user summaries only.
type DetailEntry struct {
	Timestamp   string `json:"timestamp,omitempty"`
	User        string `json:"user"`
	Operation   string `json:"operation"`
	Subject     string `json:"subject,omitempty"`
	Folder      string `json:"folder,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ClientIP    string `json:"client_ip,omitempty"`
	Workload    string `json:"workload,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	CountryName string `json:"country_name,omitempty"`
	Continent   string `json:"continent,omitempty"`
	ASN         string `json:"asn,omitempty"`
	ASName      string `json:"as_name,omitempty"`
}

// UserOperationSummary is one mailbox's operation totals.
type UserOperationSummary struct {
	User       string      `json:"user"`
	Total      int         `json:"total"`
	Operations []NameCount `json:"operations"`
}

// CountryCount is one entry of the country rollup.
type CountryCount struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	Continent   string `json:"continent"`
	Count       int    `json:"count"`
}

// ExchangeView is the mailbox-activity analysis.
type ExchangeView struct {
	TotalOperations  int                              `json:"total_operations"`
	UniqueMailboxes  int                              `json:"unique_mailboxes"`
	OperationsByType []NameCount                      `json:"operations_by_type"`
	OperationsByUser []UserOperationSummary           `json:"operations_by_user"`
	OperationDetails map[string][]records.EmailDetail `json:"operation_details"`
	Timeline         []DetailEntry                    `json:"detailed_operations"`
	Countries        []CountryCount                   `json:"countries"`
	UniqueCountries  int                              `json:"unique_countries"`
}

// Exchange builds the mailbox view over an already filtered record
// set. The timeline covers records that carried a parsed payload and
// an actor, most recent first; per-operation message details are
// capped per operation type.
func Exchange(recs []records.Record, mapper usermap.Map) ExchangeView {
	view := ExchangeView{
		TotalOperations:  len(recs),
		OperationDetails: make(map[string][]records.EmailDetail),
	}

	opCounts := make(map[string]int)
	perUser := make(map[string]map[string]int)
	var timeline []int
	for i := range recs {
		rec := &recs[i]
		opCounts[rec.Operation]++

		if rec.User != "" {
			ops := perUser[rec.User]
			if ops == nil {
				ops = make(map[string]int)
				perUser[rec.User] = ops
			}
			ops[rec.Operation]++
		}

		if len(rec.EmailDetails) > 0 {
			existing := view.OperationDetails[rec.Operation]
			if len(existing) < operationDetailCap {
				room := operationDetailCap - len(existing)
				details := rec.EmailDetails
				if len(details) > room {
					details = details[:room]
				}
				view.OperationDetails[rec.Operation] = append(existing, details...)
			}
		}

		if rec.User != "" && rec.Raw != nil {
			timeline = append(timeline, i)
		}
	}

	view.UniqueMailboxes = len(perUser)
	view.OperationsByType = topCounts(opCounts, len(opCounts))

	userTotals := make(map[string]int, len(perUser))
	for user, ops := range perUser {
		total := 0
		for _, n := range ops {
			total += n
		}
		userTotals[user] = total
	}
	for _, nc := range topCounts(userTotals, len(userTotals)) {
		view.OperationsByUser = append(view.OperationsByUser, UserOperationSummary{
			User:       mapper.Display(nc.Name),
			Total:      nc.Count,
			Operations: topCounts(perUser[nc.Name], len(perUser[nc.Name])),
		})
	}

	sort.SliceStable(timeline, func(a, b int) bool {
		return tsOrEpoch(&recs[timeline[a]]).After(tsOrEpoch(&recs[timeline[b]]))
	})
	view.Timeline = make([]DetailEntry, 0, len(timeline))
	for _, i := range timeline {
		view.Timeline = append(view.Timeline, detailEntry(&recs[i]))
	}

	view.Countries, view.UniqueCountries = countryRollup(view.Timeline)
	return view
}

// Details renders every record as a timeline entry, in input order.
// Callers that need newest-first ordering sort the records before
// calling.
func Details(recs []records.Record) []DetailEntry {
	out := make([]DetailEntry, len(recs))
	for i := range recs {
		out[i] = detailEntry(&recs[i])
	}
	return out
}

func detailEntry(rec *records.Record) DetailEntry {
	e := DetailEntry{
		Timestamp: rec.TimestampRaw,
		User:      rec.User,
		Operation: rec.Operation,
		Subject:   rec.Subject,
		Folder:    rec.Folder,
		Size:      rec.Size,
		ClientIP:  rec.ClientIP,
		Workload:  rec.Workload,
	}
	if rec.Geo != nil {
		e.CountryCode = rec.Geo.CountryCode
		e.CountryName = rec.Geo.CountryName
		e.Continent = rec.Geo.ContinentCode
	}
	if rec.ASN != nil {
		e.ASN = rec.ASN.ASN
		e.ASName = rec.ASN.ASName
	}
	return e
}

// countryRollup counts timeline entries per country, skipping entries
// with no geolocation at all. Returns the top entries and the distinct
// country count before truncation.
func countryRollup(timeline []DetailEntry) ([]CountryCount, int) {
	type countryID struct {
		code, name, continent string
	}
	counts := make(map[countryID]int)
	for i := range timeline {
		e := &timeline[i]
		if e.CountryCode == "" && e.CountryName == "" {
			continue
		}
		counts[countryID{e.CountryCode, e.CountryName, e.Continent}]++
	}

	out := make([]CountryCount, 0, len(counts))
	for id, count := range counts {
		c := CountryCount{
			CountryCode: id.code,
			CountryName: id.name,
			Continent:   id.continent,
			Count:       count,
		}
		if c.CountryCode == "" {
			c.CountryCode = "-"
		}
		if c.CountryName == "" {
			c.CountryName = "Unknown"
		}
		if c.Continent == "" {
			c.Continent = "-"
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].CountryCode != out[j].CountryCode {
			return out[i].CountryCode < out[j].CountryCode
		}
		return out[i].CountryName < out[j].CountryName
	})

	unique := len(out)
	if len(out) > countryTableLimit {
		out = out[:countryTableLimit]
	}
	return out, unique
}
