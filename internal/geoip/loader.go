package geoip

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/pawprintlabs/pawprint/internal/ipindex"
)

// Kind selects which database schema LoadRangesCSV expects.
type Kind int

const (
	// KindCountry rows carry continent_code, country_code, country_name.
	KindCountry Kind = iota
	// KindASN rows carry asn, as_name, as_domain.
	KindASN
)

// Database file names inside the geoip directory. The downloader stores
// gzip-compressed copies; plain .csv files are accepted as well.
const (
	CountryFile = "ip-to-country.csv"
	ASNFile     = "ip-to-asn.csv"
)

// LoadRangesCSV reads an iplocate range database. Rows with malformed
// CIDR blocks and IPv6 rows are skipped and counted; only a missing or
// unreadable header is an error.
func LoadRangesCSV(r io.Reader, kind Kind) ([]ipindex.Range, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("geoip: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["network"]; !ok {
		return nil, 0, fmt.Errorf("geoip: no network column in header %v", header)
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var ranges []ipindex.Range
	skipped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		var attrs map[string]string
		switch kind {
		case KindCountry:
			attrs = map[string]string{
				"continent_code": field(row, "continent_code"),
				"country_code":   field(row, "country_code"),
				"country_name":   field(row, "country_name"),
			}
		case KindASN:
			attrs = map[string]string{
				"asn":       field(row, "asn"),
				"as_name":   field(row, "as_name"),
				"as_domain": field(row, "as_domain"),
			}
		}

		rg, ok := ipindex.FromCIDR(field(row, "network"), attrs)
		if !ok {
			skipped++
			continue
		}
		ranges = append(ranges, rg)
	}
	return ranges, skipped, nil
}

// Open loads the country and ASN databases from dir. Missing files are
// tolerated (the matching lookup stays unavailable and Status reflects
// it); a file that exists but cannot be parsed is an error.
func Open(dir string) (*Resolver, error) {
	r := &Resolver{
		geoCache: make(map[string]*GeoInfo),
		asnCache: make(map[string]*ASNInfo),
	}

	geoPath, geoRanges, err := loadDatabase(dir, CountryFile, KindCountry)
	if err != nil {
		return nil, err
	}
	if geoRanges != nil {
		r.geo = ipindex.Build(geoRanges)
		r.geoPath = geoPath
		if fi, err := os.Stat(geoPath); err == nil {
			r.geoMod = fi.ModTime()
		}
	}

	asnPath, asnRanges, err := loadDatabase(dir, ASNFile, KindASN)
	if err != nil {
		return nil, err
	}
	if asnRanges != nil {
		r.asn = ipindex.Build(asnRanges)
		r.asnPath = asnPath
		if fi, err := os.Stat(asnPath); err == nil {
			r.asnMod = fi.ModTime()
		}
	}

	return r, nil
}

// loadDatabase opens name.gz or name under dir, whichever exists.
// A nil range slice with nil error means the file is absent.
func loadDatabase(dir, name string, kind Kind) (string, []ipindex.Range, error) {
	for _, candidate := range []string{filepath.Join(dir, name+".gz"), filepath.Join(dir, name)} {
		f, err := os.Open(candidate)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", nil, fmt.Errorf("geoip: open %s: %w", candidate, err)
		}
		defer f.Close()

		var reader io.Reader = f
		if strings.HasSuffix(candidate, ".gz") {
			zr, err := gzip.NewReader(f)
			if err != nil {
				return "", nil, fmt.Errorf("geoip: gunzip %s: %w", candidate, err)
			}
			defer zr.Close()
			reader = zr
		}

		ranges, _, err := LoadRangesCSV(reader, kind)
		if err != nil {
			return "", nil, fmt.Errorf("geoip: load %s: %w", candidate, err)
		}
		return candidate, ranges, nil
	}
	return "", nil, nil
}
