package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pawprintlabs/pawprint/internal/geoip"
	"github.com/pawprintlabs/pawprint/internal/records"
)

// Dimension names accepted by Aggregate.
const (
	DimUser      = "user"
	DimOperation = "operation"
	DimIP        = "ip"
	DimCountry   = "country"
	DimASN       = "asn"
)

// tupleSep joins dimension values into map keys. Unit separator, so it
// cannot collide with log data.
const tupleSep = "\x1f"

// dimValue extracts one dimension from a record. Empty values map to a
// placeholder instead of being dropped, so bucket counts over any
// dimension always sum to the record count.
func dimValue(dim string, rec *records.Record) string {
	switch dim {
	case DimUser:
		if rec.User == "" {
			return "Unknown"
		}
		return rec.User
	case DimOperation:
		if rec.Operation == "" {
			return "Unknown"
		}
		return rec.Operation
	case DimIP:
		if rec.ClientIP == "" {
			return "-"
		}
		return rec.ClientIP
	case DimCountry:
		return countryKey(rec.Geo)
	case DimASN:
		if rec.ASN == nil {
			return "-"
		}
		return rec.ASN.ASN + "|" + rec.ASN.ASName
	}
	return "-"
}

// countryKey renders the combined code|name|continent tuple the
// country rollups key on.
func countryKey(geo *geoip.GeoInfo) string {
	if geo == nil {
		return "-"
	}
	code := geo.CountryCode
	if code == "" {
		code = "-"
	}
	name := geo.CountryName
	if name == "" {
		name = "Unknown"
	}
	continent := geo.ContinentCode
	if continent == "" {
		continent = "-"
	}
	return code + "|" + name + "|" + continent
}

// Aggregate counts occurrences of each distinct key tuple over the
// record set. dims must name one to three dimensions out of user,
// operation, ip, country and asn. Buckets come back ranked by count
// descending, ties broken by the key tuple ascending, and are not
// truncated; callers cap tables for display with Top.
func Aggregate(recs []records.Record, dims ...string) ([]Bucket, error) {
	if len(dims) == 0 || len(dims) > 3 {
		return nil, fmt.Errorf("analysis: aggregate wants 1 to 3 dimensions, got %d", len(dims))
	}
	for _, d := range dims {
		switch d {
		case DimUser, DimOperation, DimIP, DimCountry, DimASN:
		default:
			return nil, fmt.Errorf("analysis: unknown dimension %q", d)
		}
	}

	counts := make(map[string]int)
	for i := range recs {
		parts := make([]string, len(dims))
		for j, d := range dims {
			parts[j] = dimValue(d, &recs[i])
		}
		counts[strings.Join(parts, tupleSep)]++
	}

	buckets := make([]Bucket, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, Bucket{
			Key:      strings.Split(key, tupleSep),
			Count:    count,
			Severity: severityFor(count),
		})
	}
	sortBuckets(buckets)
	return buckets, nil
}

// sortBuckets ranks by count descending with deterministic ties: equal
// counts order by the key tuple ascending.
func sortBuckets(buckets []Bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return lessTuple(buckets[i].Key, buckets[j].Key)
	})
}

func lessTuple(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Top returns at most n leading buckets.
func Top(buckets []Bucket, n int) []Bucket {
	if len(buckets) > n {
		return buckets[:n]
	}
	return buckets
}

// TopNames aggregates a single dimension and returns its heaviest
// values as name/count pairs.
func TopNames(recs []records.Record, dim string, n int) []NameCount {
	buckets, err := Aggregate(recs, dim)
	if err != nil {
		return nil
	}
	top := Top(buckets, n)
	out := make([]NameCount, 0, len(top))
	for _, b := range top {
		out = append(out, NameCount{Name: b.Key[0], Count: b.Count})
	}
	return out
}
