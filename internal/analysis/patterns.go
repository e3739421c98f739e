package analysis

import "github.com/pawprintlabs/pawprint/internal/records"

// tableLimit caps pattern tables for display; they exist for triage,
// not export.
const tableLimit = 50

// PatternReport bundles the frequency tables used to spot repetitive
// user, address and operation combinations.
type PatternReport struct {
	UserIP          Table `json:"user_ip"`
	UserOperation   Table `json:"user_operation"`
	OperationIP     Table `json:"operation_ip"`
	UserOperationIP Table `json:"user_operation_ip"`
	Countries       Table `json:"countries"`
	ASNs            Table `json:"asns"`
}

// Patterns computes every pattern table over the given record set.
// Tables are ranked, truncated to the top entries, and carry the
// distinct tuple count seen before truncation.
func Patterns(recs []records.Record) PatternReport {
	return PatternReport{
		UserIP:          buildTable(recs, DimUser, DimIP),
		UserOperation:   buildTable(recs, DimUser, DimOperation),
		OperationIP:     buildTable(recs, DimOperation, DimIP),
		UserOperationIP: buildTable(recs, DimUser, DimOperation, DimIP),
		Countries:       buildTable(recs, DimCountry),
		ASNs:            buildTable(recs, DimASN),
	}
}

func buildTable(recs []records.Record, dims ...string) Table {
	buckets, _ := Aggregate(recs, dims...)
	return Table{
		Dims:          dims,
		TotalPatterns: len(buckets),
		Buckets:       Top(buckets, tableLimit),
	}
}
