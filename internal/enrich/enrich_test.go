package enrich

import (
	"context"
	"testing"

	"github.com/pawprintlabs/pawprint/internal/geoip"
	"github.com/pawprintlabs/pawprint/internal/ipindex"
	"github.com/pawprintlabs/pawprint/internal/records"
)

func testResolver(t *testing.T) *geoip.Resolver {
	t.Helper()
	geo, ok := ipindex.FromCIDR("10.0.0.0/24", map[string]string{
		"country_code": "FR", "country_name": "France", "continent_code": "EU",
	})
	if !ok {
		t.Fatal("building geo range")
	}
	asn, ok := ipindex.FromCIDR("10.0.0.0/25", map[string]string{
		"asn": "AS64500", "as_name": "Example Net", "as_domain": "example.net",
	})
	if !ok {
		t.Fatal("building asn range")
	}
	return geoip.NewResolver([]ipindex.Range{geo}, []ipindex.Range{asn})
}

func TestEnrich(t *testing.T) {
	recs := []records.Record{
		{Operation: "Send", ClientIP: "10.0.0.5"},
		{Operation: "Send", ClientIP: "10.0.0.200"},
		{Operation: "Send", ClientIP: "192.0.2.1"},
		{Operation: "Send"},
	}

	n, err := Enrich(context.Background(), recs, testResolver(t), Options{})
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if n != 2 {
		t.Errorf("enriched = %d, want 2", n)
	}

	if recs[0].Geo == nil || recs[0].Geo.CountryCode != "FR" {
		t.Errorf("record 0 geo = %+v, want FR", recs[0].Geo)
	}
	if recs[0].ASN == nil || recs[0].ASN.ASN != "AS64500" {
		t.Errorf("record 0 asn = %+v, want AS64500", recs[0].ASN)
	}

	// 10.0.0.200 is inside the /24 but outside the /25.
	if recs[1].Geo == nil || recs[1].ASN != nil {
		t.Errorf("record 1 = geo %+v asn %+v, want partial enrichment", recs[1].Geo, recs[1].ASN)
	}

	if recs[2].Geo != nil || recs[2].ASN != nil {
		t.Errorf("record 2 enriched despite being outside all ranges")
	}
	if recs[3].Geo != nil || recs[3].ASN != nil {
		t.Errorf("record 3 enriched despite empty client ip")
	}
}

func TestEnrichEmptySlice(t *testing.T) {
	n, err := Enrich(context.Background(), nil, testResolver(t), Options{})
	if err != nil || n != 0 {
		t.Errorf("Enrich(nil) = %d, %v, want 0, nil", n, err)
	}
}

func TestEnrichNilResolver(t *testing.T) {
	recs := []records.Record{{ClientIP: "10.0.0.5"}}
	n, err := Enrich(context.Background(), recs, nil, Options{})
	if err != nil || n != 0 {
		t.Errorf("Enrich(nil resolver) = %d, %v, want 0, nil", n, err)
	}
	if recs[0].Geo != nil {
		t.Errorf("record enriched without a resolver")
	}
}

func TestEnrichProgress(t *testing.T) {
	recs := make([]records.Record, 10)
	for i := range recs {
		recs[i].ClientIP = "10.0.0.5"
	}

	var checkpoints []Checkpoint
	_, err := Enrich(context.Background(), recs, testResolver(t), Options{
		ChunkSize:  4,
		OnProgress: func(c Checkpoint) { checkpoints = append(checkpoints, c) },
	})
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}

	if len(checkpoints) != 3 {
		t.Fatalf("checkpoints = %d, want 3", len(checkpoints))
	}
	last := checkpoints[len(checkpoints)-1]
	if last.Done != 10 || last.Total != 10 || last.Percent != 100 {
		t.Errorf("final checkpoint = %+v, want 10/10 at 100%%", last)
	}
	if checkpoints[0].Done != 4 || checkpoints[0].Percent != 40 {
		t.Errorf("first checkpoint = %+v, want 4/10 at 40%%", checkpoints[0])
	}
}

func TestEnrichCancellation(t *testing.T) {
	recs := make([]records.Record, 100)
	for i := range recs {
		recs[i].ClientIP = "10.0.0.5"
	}

	ctx, cancel := context.WithCancel(context.Background())
	var done int
	_, err := Enrich(ctx, recs, testResolver(t), Options{
		ChunkSize: 10,
		OnProgress: func(c Checkpoint) {
			done = c.Done
			if c.Done >= 20 {
				cancel()
			}
		},
	})
	if err != context.Canceled {
		t.Fatalf("Enrich() error = %v, want context.Canceled", err)
	}
	if done >= 100 {
		t.Errorf("enrichment ran to completion despite cancellation")
	}
}

func TestCollectIPs(t *testing.T) {
	recs := []records.Record{
		{ClientIP: "10.0.0.1"},
		{ClientIP: ""},
		{ClientIP: "10.0.0.2"},
		{ClientIP: "10.0.0.1"},
	}
	got := CollectIPs(recs)
	want := []string{"10.0.0.1", "10.0.0.2"}
	if len(got) != len(want) {
		t.Fatalf("CollectIPs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CollectIPs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
