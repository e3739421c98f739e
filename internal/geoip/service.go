package geoip

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// ServiceConfig carries the directory and download settings for a
// long-lived geoip Service.
type ServiceConfig struct {
	Dir             string
	CountryURL      string
	ASNURL          string
	DownloadTimeout time.Duration
	Client          *http.Client
}

// Service owns the current Resolver and can replace it after a
// database download. Readers grab the resolver once per analysis; the
// snapshot they hold stays valid and immutable even if a download
// swaps in a newer one concurrently.
type Service struct {
	cfg ServiceConfig

	mu       sync.RWMutex
	resolver *Resolver
}

// NewService loads the databases found under cfg.Dir (missing files are
// tolerated) and returns the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	resolver, err := Open(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, resolver: resolver}, nil
}

// Resolver returns the current resolver snapshot.
func (s *Service) Resolver() *Resolver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver
}

// Status reports the current resolver's database state.
func (s *Service) Status() Status {
	return s.Resolver().Status()
}

// Download fetches fresh databases and swaps in a resolver built from
// them. The previous resolver keeps serving ongoing analyses.
func (s *Service) Download(ctx context.Context) error {
	err := Download(ctx, DownloadOptions{
		Dir:        s.cfg.Dir,
		CountryURL: s.cfg.CountryURL,
		ASNURL:     s.cfg.ASNURL,
		Timeout:    s.cfg.DownloadTimeout,
		Client:     s.cfg.Client,
	})
	if err != nil {
		return err
	}

	resolver, err := Open(s.cfg.Dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.resolver = resolver
	s.mu.Unlock()
	return nil
}
