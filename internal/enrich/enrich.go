// Package enrich attaches geolocation and ASN attributes to normalized
// records. It runs before a record set is published and is the only
// stage that writes to records after normalization.
package enrich

import (
	"context"

	"github.com/pawprintlabs/pawprint/internal/geoip"
	"github.com/pawprintlabs/pawprint/internal/records"
)

const defaultChunkSize = 500

// Checkpoint reports progress after each processed chunk.
type Checkpoint struct {
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// Options tunes chunking and progress reporting. The zero value is
// usable.
type Options struct {
	// ChunkSize is the number of records enriched between checkpoints.
	ChunkSize int
	// OnProgress, when set, receives a checkpoint after every chunk.
	OnProgress func(Checkpoint)
}

// Enrich resolves each record's client IP against the loaded range
// indexes and fills Geo and ASN in place. Records with an empty IP are
// passed through untouched; geo and ASN are looked up independently so
// partial enrichment is normal. Work is chunked, and a canceled context
// stops between chunks with ctx.Err(), in which case the caller should
// discard the partially enriched slice. Returns how many records
// received at least one attribute.
func Enrich(ctx context.Context, recs []records.Record, resolver *geoip.Resolver, opts Options) (int, error) {
	if resolver == nil || len(recs) == 0 {
		return 0, nil
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	enriched := 0
	total := len(recs)
	for start := 0; start < total; start += chunk {
		select {
		case <-ctx.Done():
			return enriched, ctx.Err()
		default:
		}

		end := start + chunk
		if end > total {
			end = total
		}
		for i := start; i < end; i++ {
			rec := &recs[i]
			if rec.ClientIP == "" {
				continue
			}
			rec.Geo = resolver.LookupGeo(rec.ClientIP)
			rec.ASN = resolver.LookupASN(rec.ClientIP)
			if rec.Geo != nil || rec.ASN != nil {
				enriched++
			}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Checkpoint{
				Done:    end,
				Total:   total,
				Percent: float64(end) / float64(total) * 100,
			})
		}
	}
	return enriched, nil
}

// CollectIPs returns the distinct non-empty client IPs in first-seen
// order, for warming the resolver cache ahead of a full pass.
func CollectIPs(recs []records.Record) []string {
	seen := make(map[string]struct{}, len(recs))
	var out []string
	for _, rec := range recs {
		if rec.ClientIP == "" {
			continue
		}
		if _, ok := seen[rec.ClientIP]; ok {
			continue
		}
		seen[rec.ClientIP] = struct{}{}
		out = append(out, rec.ClientIP)
	}
	return out
}
