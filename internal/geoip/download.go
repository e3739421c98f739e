package geoip

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/pawprintlabs/pawprint/internal/logger"
)

// Default database locations, overridable through configuration.
const (
	DefaultCountryURL = "https://github.com/iplocate/ip-address-databases/raw/main/ip-to-country/ip-to-country.csv.zip"
	DefaultASNURL     = "https://github.com/iplocate/ip-address-databases/raw/main/ip-to-asn/ip-to-asn.csv.zip"

	defaultDownloadTimeout = 2 * time.Minute
)

// DownloadOptions configures Download. Zero values fall back to the
// default URLs, timeout, and http.DefaultClient.
type DownloadOptions struct {
	Dir        string
	CountryURL string
	ASNURL     string
	Timeout    time.Duration
	Client     *http.Client
}

// Download fetches both range databases and stores them gzip-compressed
// under opts.Dir. Each archive is fetched, the inner CSV extracted, and
// the result written to a temp file renamed into place, so a partial
// download never clobbers a working database.
func Download(ctx context.Context, opts DownloadOptions) error {
	if opts.CountryURL == "" {
		opts.CountryURL = DefaultCountryURL
	}
	if opts.ASNURL == "" {
		opts.ASNURL = DefaultASNURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultDownloadTimeout
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("geoip: create dir: %w", err)
	}

	return errors.Join(
		downloadOne(ctx, opts, opts.CountryURL, filepath.Join(opts.Dir, CountryFile+".gz")),
		downloadOne(ctx, opts, opts.ASNURL, filepath.Join(opts.Dir, ASNFile+".gz")),
	)
}

func downloadOne(ctx context.Context, opts DownloadOptions, url, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	logger.L().Info().Str("url", url).Msg("downloading geoip database")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("geoip: build request: %w", err)
	}
	resp, err := opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("geoip: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geoip: fetch %s: unexpected status %s", url, resp.Status)
	}

	archive, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("geoip: read archive: %w", err)
	}

	csvData, err := extractCSV(archive)
	if err != nil {
		return fmt.Errorf("geoip: %s: %w", url, err)
	}

	if err := writeGzipAtomic(dest, csvData); err != nil {
		return err
	}

	logger.L().Info().Str("path", dest).Int("bytes", len(csvData)).Msg("geoip database saved")
	return nil
}

// extractCSV returns the contents of the first .csv member of a zip
// archive, inflating with the klauspost flate implementation.
func extractCSV(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip member %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read zip member %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, errors.New("no csv member in archive")
}

func writeGzipAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".geoip-*")
	if err != nil {
		return fmt.Errorf("geoip: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if _, err := zw.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("geoip: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("geoip: compress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("geoip: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("geoip: rename: %w", err)
	}
	return nil
}
