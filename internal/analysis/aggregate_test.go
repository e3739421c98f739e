package analysis

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/pawprintlabs/pawprint/internal/records"
)

func TestAggregateSumsToRecordCount(t *testing.T) {
	recs := []records.Record{
		rec("alice", "Send", "10.0.0.1", ""),
		rec("alice", "HardDelete", "", ""),
		rec("", "Send", "10.0.0.2", ""),
		withGeo(rec("bob", "Send", "1.1.1.1", ""), "FR", "France", "EU"),
	}

	for _, dim := range []string{DimUser, DimOperation, DimIP, DimCountry, DimASN} {
		t.Run(dim, func(t *testing.T) {
			buckets, err := Aggregate(recs, dim)
			if err != nil {
				t.Fatalf("Aggregate() error = %v", err)
			}
			sum := 0
			for _, b := range buckets {
				sum += b.Count
			}
			if sum != len(recs) {
				t.Errorf("bucket counts sum to %d, want %d", sum, len(recs))
			}
		})
	}
}

func TestAggregatePlaceholders(t *testing.T) {
	recs := []records.Record{
		{Operation: "Send"},
	}

	byUser, _ := Aggregate(recs, DimUser)
	if byUser[0].Key[0] != "Unknown" {
		t.Errorf("empty user bucketed as %q, want Unknown", byUser[0].Key[0])
	}
	byIP, _ := Aggregate(recs, DimIP)
	if byIP[0].Key[0] != "-" {
		t.Errorf("empty ip bucketed as %q, want -", byIP[0].Key[0])
	}
	byCountry, _ := Aggregate(recs, DimCountry)
	if byCountry[0].Key[0] != "-" {
		t.Errorf("missing geo bucketed as %q, want -", byCountry[0].Key[0])
	}
	byASN, _ := Aggregate(recs, DimASN)
	if byASN[0].Key[0] != "-" {
		t.Errorf("missing asn bucketed as %q, want -", byASN[0].Key[0])
	}
}

func TestAggregateCountryTuple(t *testing.T) {
	recs := []records.Record{
		withGeo(rec("a", "Op", "1.1.1.1", ""), "FR", "France", "EU"),
	}
	buckets, _ := Aggregate(recs, DimCountry)
	if buckets[0].Key[0] != "FR|France|EU" {
		t.Errorf("country key = %q, want FR|France|EU", buckets[0].Key[0])
	}
}

func TestAggregateASNPair(t *testing.T) {
	recs := []records.Record{
		withASN(rec("a", "Op", "1.1.1.1", ""), "AS64500", "Example Net"),
	}
	buckets, _ := Aggregate(recs, DimASN)
	if buckets[0].Key[0] != "AS64500|Example Net" {
		t.Errorf("asn key = %q, want AS64500|Example Net", buckets[0].Key[0])
	}
}

func TestAggregateRanking(t *testing.T) {
	var recs []records.Record
	add := func(user string, n int) {
		for i := 0; i < n; i++ {
			recs = append(recs, rec(user, "Op", "", ""))
		}
	}
	add("carol", 2)
	add("alice", 2)
	add("bob", 5)

	buckets, err := Aggregate(recs, DimUser)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	var got []string
	for _, b := range buckets {
		got = append(got, b.Key[0])
	}
	// bob leads on count; the tied pair orders lexicographically.
	want := []string{"bob", "alice", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ranking = %v, want %v", got, want)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	var recs []records.Record
	for i := 0; i < 40; i++ {
		recs = append(recs, rec(fmt.Sprintf("user%02d", i%7), fmt.Sprintf("Op%d", i%3), fmt.Sprintf("10.0.0.%d", i%5), ""))
	}

	first, _ := Aggregate(recs, DimUser, DimOperation, DimIP)
	second, _ := Aggregate(recs, DimUser, DimOperation, DimIP)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated aggregation over the same set produced different output")
	}
}

func TestAggregateSeverity(t *testing.T) {
	var recs []records.Record
	add := func(user string, n int) {
		for i := 0; i < n; i++ {
			recs = append(recs, rec(user, "Op", "", ""))
		}
	}
	add("high", 21)
	add("medium", 11)
	add("low", 10)

	buckets, _ := Aggregate(recs, DimUser)
	severities := map[string]string{}
	for _, b := range buckets {
		severities[b.Key[0]] = b.Severity
	}
	if severities["high"] != SeverityHigh || severities["medium"] != SeverityMedium || severities["low"] != SeverityLow {
		t.Errorf("severities = %v, want thresholds at >20 and >10", severities)
	}
}

func TestAggregateRejectsBadDims(t *testing.T) {
	recs := []records.Record{rec("a", "Op", "", "")}

	if _, err := Aggregate(recs); err == nil {
		t.Error("Aggregate() with no dims did not fail")
	}
	if _, err := Aggregate(recs, DimUser, DimOperation, DimIP, DimCountry); err == nil {
		t.Error("Aggregate() with four dims did not fail")
	}
	if _, err := Aggregate(recs, "workload"); err == nil {
		t.Error("Aggregate() with an unknown dim did not fail")
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	buckets, err := Aggregate(nil, DimUser)
	if err != nil {
		t.Fatalf("Aggregate(nil) error = %v", err)
	}
	if len(buckets) != 0 {
		t.Errorf("Aggregate(nil) = %v, want empty", buckets)
	}
}

func TestTop(t *testing.T) {
	buckets := []Bucket{{Count: 3}, {Count: 2}, {Count: 1}}
	if got := Top(buckets, 2); len(got) != 2 || got[0].Count != 3 {
		t.Errorf("Top(2) = %v", got)
	}
	if got := Top(buckets, 10); len(got) != 3 {
		t.Errorf("Top(10) = %v, want all", got)
	}
}

func TestPatternsEndToEnd(t *testing.T) {
	recs := []records.Record{
		rec("alice", "FileDownloaded", "10.0.0.1", ""),
		rec("alice", "FileDownloaded", "10.0.0.1", ""),
		rec("bob", "FileDownloaded", "10.0.0.2", ""),
	}

	report := Patterns(recs)
	table := report.UserOperationIP
	if table.TotalPatterns != 2 {
		t.Errorf("TotalPatterns = %d, want 2 distinct tuples", table.TotalPatterns)
	}
	if len(table.Buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(table.Buckets))
	}
	first := table.Buckets[0]
	if first.Count != 2 || !reflect.DeepEqual(first.Key, []string{"alice", "FileDownloaded", "10.0.0.1"}) {
		t.Errorf("top bucket = %+v, want alice's pair of downloads first", first)
	}

	if len(report.UserIP.Buckets) != 2 || report.UserIP.Buckets[0].Count != 2 {
		t.Errorf("user_ip table = %+v, want alice's bucket leading", report.UserIP.Buckets)
	}
}

func TestPatternsTruncation(t *testing.T) {
	var recs []records.Record
	for i := 0; i < 60; i++ {
		recs = append(recs, rec(fmt.Sprintf("user%03d", i), "Op", "10.0.0.1", ""))
	}

	report := Patterns(recs)
	if len(report.UserIP.Buckets) != 50 {
		t.Errorf("user_ip buckets = %d, want capped at 50", len(report.UserIP.Buckets))
	}
	if report.UserIP.TotalPatterns != 60 {
		t.Errorf("TotalPatterns = %d, want 60 before truncation", report.UserIP.TotalPatterns)
	}
}
