package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/pawprintlabs/pawprint/internal/analysis"
	"github.com/pawprintlabs/pawprint/internal/enrich"
	"github.com/pawprintlabs/pawprint/internal/jobs"
	"github.com/pawprintlabs/pawprint/internal/logger"
)

// Synchronous view names, also used as the cache's view column.
const (
	viewSummary = "summary"
	viewFiles   = "files"
	viewUsers   = "users"
)

// cacheKey derives the cache row key from everything the payload
// depends on: the record set, the view and the filter values.
func cacheKey(contentHash, view string, f analysis.Filter) string {
	filters, _ := json.Marshal(f)
	h := sha256.New()
	h.Write([]byte(contentHash))
	h.Write([]byte{'|'})
	h.Write([]byte(view))
	h.Write([]byte{'|'})
	h.Write(filters)
	return hex.EncodeToString(h.Sum(nil))
}

// viewPayload serves one synchronous view as marshaled JSON, reading
// through the analysis cache when one is configured. Cache failures
// degrade to recomputing.
func viewPayload(ctx context.Context, deps Deps, s Session, view string, f analysis.Filter) ([]byte, error) {
	key := cacheKey(s.ContentHash, view, f)
	if deps.Cache != nil {
		payload, err := deps.Cache.Get(ctx, key)
		if err != nil {
			logger.L().Warn().Err(err).Str("session", s.ID).Str("view", view).Msg("analysis cache read")
		} else if payload != nil {
			return payload, nil
		}
	}

	recs := f.Apply(s.Records)

	var result any
	switch view {
	case viewSummary:
		result = analysis.Summary(s.LogType, s.Columns, s.Stats, recs)
	case viewFiles:
		result = analysis.FileOperations(recs, s.UserMap)
	case viewUsers:
		result = analysis.UserActivity(recs, s.UserMap)
	default:
		return nil, fmt.Errorf("session: unknown view %q", view)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("session: encode %s view: %w", view, err)
	}
	if deps.Cache != nil {
		if err := deps.Cache.Put(ctx, key, s.ID, view, payload, deps.CacheTTL); err != nil {
			logger.L().Warn().Err(err).Str("session", s.ID).Str("view", view).Msg("analysis cache write")
		}
	}
	return payload, nil
}

type exchangeRequest struct {
	analysis.Filter
	GeoIP bool `json:"geoip"`
}

// ExchangeResult is the payload popped from /api/results after an
// exchange analysis job finishes.
type ExchangeResult struct {
	SessionID string                 `json:"session_id"`
	LogType   string                 `json:"log_type"`
	GeoIP     bool                   `json:"geoip"`
	Enriched  int                    `json:"enriched_records"`
	Summary   analysis.SummaryView   `json:"summary"`
	Exchange  analysis.ExchangeView  `json:"exchange"`
	Patterns  analysis.PatternReport `json:"patterns"`
}

// exchangeJob builds the background run: filter, optionally enrich
// with geo and ASN data, then assemble the exchange views. The job
// works on its own filtered copy so the session's published records
// stay untouched.
func exchangeJob(deps Deps, s Session, req exchangeRequest) func(ctx context.Context, report func(jobs.Progress)) (any, error) {
	return func(ctx context.Context, report func(jobs.Progress)) (any, error) {
		recs := req.Filter.Apply(s.Records)
		total := len(recs)
		report(jobs.Progress{Total: total, Message: "filtering records"})

		enriched := 0
		if req.GeoIP && deps.Geo != nil {
			resolver := deps.Geo.Resolver()

			ips := enrich.CollectIPs(recs)
			report(jobs.Progress{Total: total, Message: fmt.Sprintf("caching %d unique addresses", len(ips))})
			resolver.Precache(ips)

			var err error
			enriched, err = enrich.Enrich(ctx, recs, resolver, enrich.Options{
				ChunkSize: deps.ChunkSize,
				OnProgress: func(cp enrich.Checkpoint) {
					report(jobs.Progress{
						Current: cp.Done,
						Total:   cp.Total,
						Percent: cp.Percent,
						Message: "resolving addresses",
					})
				},
			})
			if err != nil {
				return nil, err
			}
		}

		report(jobs.Progress{Current: total, Total: total, Percent: 100, Message: "building views"})
		return ExchangeResult{
			SessionID: s.ID,
			LogType:   s.LogType,
			GeoIP:     req.GeoIP,
			Enriched:  enriched,
			Summary:   analysis.Summary(s.LogType, s.Columns, s.Stats, recs),
			Exchange:  analysis.Exchange(recs, s.UserMap),
			Patterns:  analysis.Patterns(recs),
		}, nil
	}
}
