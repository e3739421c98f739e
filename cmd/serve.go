package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pawprintlabs/pawprint/internal/db"
	"github.com/pawprintlabs/pawprint/internal/geoip"
	"github.com/pawprintlabs/pawprint/internal/jobs"
	"github.com/pawprintlabs/pawprint/internal/logger"
	"github.com/pawprintlabs/pawprint/internal/server"
	"github.com/pawprintlabs/pawprint/internal/session"
)

// jobQueueSize bounds how many analysis jobs may wait behind the
// running ones before Submit starts refusing.
const jobQueueSize = 16

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis server",
	Long: `Starts the pawprint HTTP server: upload audit exports, run filtered
analyses and background enrichment jobs, and stream job progress over
WebSocket.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger.Init(level, cfg.Log.Format)
	log := logger.L()

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddr = listen
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	sessionStore := db.NewSessionStore(database)
	cacheStore := db.NewCacheStore(database)

	// Records only live in memory, so session rows from a previous
	// run describe sessions that no longer exist. The analysis cache
	// stays: it is keyed by content, and re-uploading the same export
	// hits it again.
	if n, err := sessionStore.Clear(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("clearing stale session rows")
	} else if n > 0 {
		log.Info().Int64("rows", n).Msg("cleared stale session rows")
	}

	var geoSvc *geoip.Service
	if cfg.GeoIP.Enabled {
		geoSvc, err = geoip.NewService(geoip.ServiceConfig{
			Dir:             cfg.GeoIPDir(),
			CountryURL:      cfg.GeoIP.CountryURL,
			ASNURL:          cfg.GeoIP.ASNURL,
			DownloadTimeout: cfg.GeoIP.DownloadTimeout.Std(),
		})
		if err != nil {
			return fmt.Errorf("loading geoip databases: %w", err)
		}
		if status := geoSvc.Status(); !status.Ready {
			log.Warn().Msg("geoip databases missing; run `pawprint geoip download` or POST /api/geoip/download")
		} else {
			log.Info().
				Int("country_ranges", status.Country.Ranges).
				Int("asn_ranges", status.ASN.Ranges).
				Msg("geoip databases loaded")
		}
	}

	jobManager := jobs.NewManager(cfg.Analysis.Workers, jobQueueSize)
	defer jobManager.Stop()

	sessions := session.NewManager(sessionStore, cacheStore)

	srv := server.New(server.Config{
		ListenAddr:  cfg.ListenAddr,
		MaxUploadMB: cfg.Upload.MaxSizeMB,
	})
	session.RegisterRoutes(srv.Router(), session.Deps{
		Sessions:  sessions,
		Jobs:      jobManager,
		Geo:       geoSvc,
		Cache:     cacheStore,
		CacheTTL:  cfg.Analysis.CacheTTL.Std(),
		ChunkSize: cfg.Analysis.ChunkSize,
	})
	if geoSvc != nil {
		geoip.RegisterRoutes(srv.Router(), geoSvc)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go purgeCacheLoop(ctx, cacheStore)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// purgeCacheLoop drops expired analysis cache rows at startup and then
// hourly until ctx is canceled.
func purgeCacheLoop(ctx context.Context, cache *db.CacheStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if n, err := cache.PurgeExpired(ctx); err != nil {
			logger.L().Warn().Err(err).Msg("purging analysis cache")
		} else if n > 0 {
			logger.L().Debug().Int64("rows", n).Msg("purged expired analysis cache")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
