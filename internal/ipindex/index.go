// Package ipindex implements a sorted IP-range index answering point
// lookups by binary search.
package ipindex

import (
	"encoding/binary"
	"net"
	"sort"
)

// Range maps a contiguous span of IPv4 addresses to a set of attributes.
type Range struct {
	Start uint32
	End   uint32
	Attrs map[string]string
}

// Index holds ranges sorted by start address. It is immutable after
// Build and safe for concurrent lookups without locking.
type Index struct {
	starts []uint32
	ends   []uint32
	attrs  []map[string]string
}

// Build constructs an Index from the given ranges. The input slice is
// copied and sorted by start address ascending; the caller may reuse it.
// Ranges are expected to be non-overlapping; when the input violates
// that, Lookup returns some containing range without specifying which.
func Build(ranges []Range) *Index {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	idx := &Index{
		starts: make([]uint32, len(sorted)),
		ends:   make([]uint32, len(sorted)),
		attrs:  make([]map[string]string, len(sorted)),
	}
	for i, r := range sorted {
		idx.starts[i] = r.Start
		idx.ends[i] = r.End
		idx.attrs[i] = r.Attrs
	}
	return idx
}

// Lookup returns the attributes of the range containing ip. Malformed
// addresses and addresses falling in a gap between ranges report
// ok=false; lookups never fail with an error.
func (idx *Index) Lookup(ip string) (map[string]string, bool) {
	ord, ok := ToOrdinal(ip)
	if !ok {
		return nil, false
	}
	return idx.LookupOrdinal(ord)
}

// LookupOrdinal is Lookup for an already-converted address ordinal.
func (idx *Index) LookupOrdinal(ord uint32) (map[string]string, bool) {
	// Rightmost range whose start is <= ord, then verify ord is not
	// past that range's end.
	i := sort.Search(len(idx.starts), func(i int) bool { return idx.starts[i] > ord })
	if i == 0 {
		return nil, false
	}
	i--
	if ord > idx.ends[i] {
		return nil, false
	}
	return idx.attrs[i], true
}

// Len returns the number of ranges in the index.
func (idx *Index) Len() int { return len(idx.starts) }

// ToOrdinal converts a dotted-quad IPv4 address to its unsigned 32-bit
// ordinal. IPv6 and malformed addresses report ok=false.
func ToOrdinal(ip string) (uint32, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return 0, false
	}
	v4 := parsed.To4()
	if v4 == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(v4), true
}

// FromCIDR converts an IPv4 CIDR block to the Range spanning it.
// IPv6 and malformed blocks report ok=false.
func FromCIDR(cidr string, attrs map[string]string) (Range, bool) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return Range{}, false
	}
	v4 := ipnet.IP.To4()
	if v4 == nil {
		return Range{}, false
	}
	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return Range{}, false
	}
	start := binary.BigEndian.Uint32(v4)
	span := uint64(1) << uint(bits-ones)
	return Range{Start: start, End: start + uint32(span-1), Attrs: attrs}, true
}
