package geoip

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

// RegisterRoutes mounts geoip endpoints under /api/geoip.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/api/geoip", func(r chi.Router) {
		r.Get("/status", handleStatus(svc))
		r.Post("/download", handleDownload(svc))
		r.Get("/lookup/{ip}", handleLookup(svc))
	})
}

func handleStatus(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

func handleDownload(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Download(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

func handleLookup(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := chi.URLParam(r, "ip")
		resolver := svc.Resolver()

		resp := struct {
			IP      string   `json:"ip"`
			Geo     *GeoInfo `json:"geo"`
			ASN     *ASNInfo `json:"asn"`
			Display string   `json:"display"`
		}{IP: ip}
		resp.Geo = resolver.LookupGeo(ip)
		resp.ASN = resolver.LookupASN(ip)
		resp.Display = FormatIPDisplay(ip, resp.Geo)

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
