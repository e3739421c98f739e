// Package geoip resolves IP addresses to country and ASN attributes
// using range databases from the iplocate ip-address-databases project.
package geoip

import (
	"strings"
	"sync"
	"time"

	"github.com/pawprintlabs/pawprint/internal/ipindex"
)

// GeoInfo holds the country attributes for an IP address.
type GeoInfo struct {
	CountryCode   string `json:"country_code"`
	CountryName   string `json:"country_name"`
	ContinentCode string `json:"continent_code"`
}

// ASNInfo holds the autonomous-system attributes for an IP address.
type ASNInfo struct {
	ASN      string `json:"asn"`
	ASName   string `json:"as_name"`
	ASDomain string `json:"as_domain"`
}

// maxCacheEntries bounds each per-IP result cache. When the cap is hit
// roughly a quarter of the entries are evicted at random.
const maxCacheEntries = 100000

// Resolver answers geo and ASN lookups over two immutable range
// indexes. Lookup results, including misses, are cached per IP; the
// indexes themselves are never modified after construction, so the
// only lock guards the caches.
type Resolver struct {
	geo *ipindex.Index
	asn *ipindex.Index

	geoPath string
	asnPath string
	geoMod  time.Time
	asnMod  time.Time

	mu       sync.RWMutex
	geoCache map[string]*GeoInfo
	asnCache map[string]*ASNInfo
}

// NewResolver builds a Resolver from pre-loaded range sets. Either
// slice may be nil, leaving that lookup permanently unavailable.
func NewResolver(geoRanges, asnRanges []ipindex.Range) *Resolver {
	r := &Resolver{
		geoCache: make(map[string]*GeoInfo),
		asnCache: make(map[string]*ASNInfo),
	}
	if geoRanges != nil {
		r.geo = ipindex.Build(geoRanges)
	}
	if asnRanges != nil {
		r.asn = ipindex.Build(asnRanges)
	}
	return r
}

// GeoAvailable reports whether the country database is loaded.
func (r *Resolver) GeoAvailable() bool { return r.geo != nil }

// ASNAvailable reports whether the ASN database is loaded.
func (r *Resolver) ASNAvailable() bool { return r.asn != nil }

// LookupGeo returns the country attributes for ip, or nil when the ip
// is empty, malformed, outside every range, or the database is absent.
func (r *Resolver) LookupGeo(ip string) *GeoInfo {
	ip = strings.TrimSpace(ip)
	if ip == "" || r.geo == nil {
		return nil
	}

	r.mu.RLock()
	cached, ok := r.geoCache[ip]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	var info *GeoInfo
	if attrs, found := r.geo.Lookup(ip); found {
		info = &GeoInfo{
			CountryCode:   attrs["country_code"],
			CountryName:   attrs["country_name"],
			ContinentCode: attrs["continent_code"],
		}
	}

	r.mu.Lock()
	if len(r.geoCache) >= maxCacheEntries {
		evictRandom(r.geoCache)
	}
	r.geoCache[ip] = info
	r.mu.Unlock()
	return info
}

// LookupASN returns the ASN attributes for ip, or nil when unavailable.
func (r *Resolver) LookupASN(ip string) *ASNInfo {
	ip = strings.TrimSpace(ip)
	if ip == "" || r.asn == nil {
		return nil
	}

	r.mu.RLock()
	cached, ok := r.asnCache[ip]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	var info *ASNInfo
	if attrs, found := r.asn.Lookup(ip); found {
		info = &ASNInfo{
			ASN:      attrs["asn"],
			ASName:   attrs["as_name"],
			ASDomain: attrs["as_domain"],
		}
	}

	r.mu.Lock()
	if len(r.asnCache) >= maxCacheEntries {
		evictRandom(r.asnCache)
	}
	r.asnCache[ip] = info
	r.mu.Unlock()
	return info
}

// Precache warms both caches for a set of IPs in one pass. Called
// before row-by-row processing so repeated addresses hit the cache.
func (r *Resolver) Precache(ips []string) int {
	warmed := 0
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		r.LookupGeo(ip)
		r.LookupASN(ip)
		warmed++
	}
	return warmed
}

// DatabaseStatus describes one loaded (or missing) range database.
type DatabaseStatus struct {
	Loaded    bool   `json:"loaded"`
	Ranges    int    `json:"ranges"`
	Path      string `json:"path,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Status reports the load state of both databases.
type Status struct {
	Ready   bool           `json:"ready"`
	Country DatabaseStatus `json:"country"`
	ASN     DatabaseStatus `json:"asn"`
}

// Status returns the resolver's database load state.
func (r *Resolver) Status() Status {
	s := Status{
		Country: DatabaseStatus{Loaded: r.geo != nil, Path: r.geoPath},
		ASN:     DatabaseStatus{Loaded: r.asn != nil, Path: r.asnPath},
	}
	if r.geo != nil {
		s.Country.Ranges = r.geo.Len()
		if !r.geoMod.IsZero() {
			s.Country.UpdatedAt = r.geoMod.Format(time.RFC3339)
		}
	}
	if r.asn != nil {
		s.ASN.Ranges = r.asn.Len()
		if !r.asnMod.IsZero() {
			s.ASN.UpdatedAt = r.asnMod.Format(time.RFC3339)
		}
	}
	s.Ready = s.Country.Loaded && s.ASN.Loaded
	return s
}

// evictRandom deletes roughly a quarter of the map, relying on Go's
// randomized map iteration order.
func evictRandom[V any](m map[string]V) {
	target := len(m) / 4
	removed := 0
	for k := range m {
		delete(m, k)
		removed++
		if removed >= target {
			break
		}
	}
}
