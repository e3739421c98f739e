package session

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/pawprintlabs/pawprint/internal/analysis"
	"github.com/pawprintlabs/pawprint/internal/db"
	"github.com/pawprintlabs/pawprint/internal/geoip"
	"github.com/pawprintlabs/pawprint/internal/jobs"
	"github.com/pawprintlabs/pawprint/internal/records"
	"github.com/pawprintlabs/pawprint/internal/usermap"
)

const (
	defaultPerPage   = 50
	maxPerPage       = 500
	rollupLimit      = 15
	progressInterval = 500 * time.Millisecond
)

// Deps carries everything the session routes need. Cache and Geo may
// be nil; caching and enrichment degrade to no-ops.
type Deps struct {
	Sessions  *Manager
	Jobs      *jobs.Manager
	Geo       *geoip.Service
	Cache     *db.CacheStore
	CacheTTL  time.Duration
	ChunkSize int
}

// RegisterRoutes mounts the upload, analysis and export endpoints
// under /api.
func RegisterRoutes(r chi.Router, deps Deps) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", handleUpload(deps))
		r.Post("/upload/{sessionID}/add", handleUploadAdd(deps))

		r.Get("/sessions", handleListSessions(deps))
		r.Get("/sessions/{sessionID}", handleGetSession(deps))
		r.Delete("/sessions/{sessionID}", handleDeleteSession(deps))

		r.Post("/usermap/{sessionID}", handleUserMap(deps))

		r.Get("/analysis/{sessionID}/summary", handleView(deps, viewSummary))
		r.Get("/analysis/{sessionID}/files", handleView(deps, viewFiles))
		r.Get("/analysis/{sessionID}/users", handleView(deps, viewUsers))
		r.Post("/analysis/{sessionID}/exchange", handleExchange(deps))

		r.Get("/progress/{sessionID}", handleProgress(deps))
		r.Get("/progress/{sessionID}/ws", handleProgressWS(deps))
		r.Get("/results/{sessionID}", handleResults(deps))

		r.Post("/filter/{sessionID}", handleFilter(deps))
		r.Get("/export/{sessionID}", handleExport(deps))
	})
}

type uploadResponse struct {
	SessionID   string   `json:"session_id"`
	Filename    string   `json:"filename"`
	LogType     string   `json:"log_type"`
	Rows        int      `json:"rows"`
	SkippedRows int      `json:"skipped_rows"`
	Columns     []string `json:"columns"`
}

func uploadResponseFrom(meta Meta) uploadResponse {
	return uploadResponse{
		SessionID:   meta.ID,
		Filename:    meta.Filename,
		LogType:     meta.LogType,
		Rows:        meta.Rows,
		SkippedRows: meta.ParseStats.SkippedRows,
		Columns:     meta.Columns,
	}
}

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
			return
		}
		defer file.Close()

		if !allowedUpload(header.Filename) {
			writeError(w, http.StatusBadRequest, "only .csv and .csv.gz uploads are supported")
			return
		}

		meta, err := deps.Sessions.Create(r.Context(), header.Filename, file)
		if err != nil {
			writeIngestError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, uploadResponseFrom(meta))
	}
}

func handleUploadAdd(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
			return
		}
		defer file.Close()

		if !allowedUpload(header.Filename) {
			writeError(w, http.StatusBadRequest, "only .csv and .csv.gz uploads are supported")
			return
		}

		// A merge changes the record set under any job still chewing on
		// the old one.
		deps.Jobs.Cancel(id)

		meta, err := deps.Sessions.Append(r.Context(), id, header.Filename, file)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			writeIngestError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, uploadResponseFrom(meta))
	}
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sessions": deps.Sessions.List()})
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := fetchSession(deps, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.meta())
	}
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		deps.Jobs.Cancel(id)
		if err := deps.Sessions.Delete(r.Context(), id); err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "session_id": id})
	}
}

func handleUserMap(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")

		var src io.Reader
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			src = file
		} else {
			src = r.Body
		}

		um, err := usermap.Parse(src)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		n, err := deps.Sessions.SetUserMap(id, um)
		if err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "entries": n})
	}
}

func handleView(deps Deps, view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := fetchSession(deps, w, r)
		if !ok {
			return
		}
		payload, err := viewPayload(r.Context(), deps, s, view, analysis.FromQuery(r.URL.Query()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	}
}

func handleExchange(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := fetchSession(deps, w, r)
		if !ok {
			return
		}

		var req exchangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := deps.Jobs.Submit(jobs.Job{SessionID: s.ID, Run: exchangeJob(deps, s, req)})
		switch {
		case errors.Is(err, jobs.ErrBusy):
			writeError(w, http.StatusConflict, "analysis already running for this session")
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "session_id": s.ID})
		}
	}
}

func handleProgress(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		p, ok := deps.Jobs.Progress(id)
		if !ok {
			writeError(w, http.StatusNotFound, "no analysis for session")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func handleProgressWS(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()

		for {
			p, ok := deps.Jobs.Progress(id)
			if !ok {
				conn.WriteJSON(jobs.Progress{Complete: true, Message: "no analysis for session"})
				return
			}
			if err := conn.WriteJSON(p); err != nil {
				return
			}
			if p.Complete {
				return
			}
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}

func handleResults(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")

		if result, ok := deps.Jobs.PopResult(id); ok {
			writeJSON(w, http.StatusOK, result)
			return
		}
		if deps.Jobs.Running(id) {
			p, _ := deps.Jobs.Progress(id)
			writeJSON(w, http.StatusAccepted, p)
			return
		}
		if p, ok := deps.Jobs.Progress(id); ok && p.Error != "" {
			writeError(w, http.StatusInternalServerError, p.Error)
			return
		}
		writeError(w, http.StatusNotFound, "no results for session")
	}
}

type filterRequest struct {
	analysis.Filter
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

type filterResponse struct {
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	PerPage    int                    `json:"per_page"`
	TotalPages int                    `json:"total_pages"`
	Records    []analysis.DetailEntry `json:"records"`
	Patterns   analysis.PatternReport `json:"patterns"`
	Operations []analysis.NameCount   `json:"operations"`
	Users      []analysis.NameCount   `json:"users"`
}

func handleFilter(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := fetchSession(deps, w, r)
		if !ok {
			return
		}

		var req filterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Page < 1 {
			req.Page = 1
		}
		if req.PerPage < 1 {
			req.PerPage = defaultPerPage
		}
		if req.PerPage > maxPerPage {
			req.PerPage = maxPerPage
		}

		recs := req.Filter.Apply(s.Records)

		total := len(recs)
		totalPages := (total + req.PerPage - 1) / req.PerPage
		start := (req.Page - 1) * req.PerPage
		if start > total {
			start = total
		}
		end := start + req.PerPage
		if end > total {
			end = total
		}

		writeJSON(w, http.StatusOK, filterResponse{
			Total:      total,
			Page:       req.Page,
			PerPage:    req.PerPage,
			TotalPages: totalPages,
			Records:    analysis.Details(recs[start:end]),
			Patterns:   analysis.Patterns(recs),
			Operations: analysis.TopNames(recs, analysis.DimOperation, rollupLimit),
			Users:      analysis.TopNames(recs, analysis.DimUser, rollupLimit),
		})
	}
}

func handleExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := fetchSession(deps, w, r)
		if !ok {
			return
		}

		recs := analysis.FromQuery(r.URL.Query()).Apply(s.Records)

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", exportName(s.Filename)))
		w.WriteHeader(http.StatusOK)
		analysis.ExportCSV(w, recs, s.UserMap)
	}
}

func fetchSession(deps Deps, w http.ResponseWriter, r *http.Request) (Session, bool) {
	id := chi.URLParam(r, "sessionID")
	s, ok := deps.Sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return Session{}, false
	}
	return s, true
}

func allowedUpload(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".csv.gz")
}

func exportName(filename string) string {
	base := strings.TrimSuffix(filename, ".gz")
	base = strings.TrimSuffix(base, ".csv")
	if base == "" {
		base = "records"
	}
	return base + "_filtered.csv"
}

func writeIngestError(w http.ResponseWriter, err error) {
	if errors.Is(err, records.ErrEmptyInput) {
		writeError(w, http.StatusBadRequest, "uploaded file has no header row")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
