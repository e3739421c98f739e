package config

import (
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible defaults. GeoIP
// download URLs are left empty so the geoip package's bundled
// defaults apply.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8571",
		DataDir:    "pawprint-data",
		Upload: UploadConfig{
			MaxSizeMB: 200,
		},
		Analysis: AnalysisConfig{
			Workers:   4,
			ChunkSize: 500,
			CacheTTL:  Duration(24 * time.Hour),
		},
		GeoIP: GeoIPConfig{
			Enabled:         true,
			DownloadTimeout: Duration(5 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DBPath returns the configured sqlite path, derived from the data
// directory when unset.
func (c *Config) DBPath() string {
	if c.DB.Path != "" {
		return c.DB.Path
	}
	return filepath.Join(c.DataDir, "pawprint.db")
}

// GeoIPDir returns the configured database directory, derived from
// the data directory when unset.
func (c *Config) GeoIPDir() string {
	if c.GeoIP.Dir != "" {
		return c.GeoIP.Dir
	}
	return filepath.Join(c.DataDir, "geoip")
}
