package config

import (
	"fmt"
	"time"

	yamlv3 "gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes human-readable
// strings ("24h", "90s") in YAML and environment values.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yamlv3.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the top-level pawprint configuration, corresponding to
// pawprint.yml.
type Config struct {
	ListenAddr string         `yaml:"listen_addr" koanf:"listen_addr"`
	DataDir    string         `yaml:"data_dir" koanf:"data_dir"`
	DB         DBConfig       `yaml:"db" koanf:"db"`
	Upload     UploadConfig   `yaml:"upload" koanf:"upload"`
	Analysis   AnalysisConfig `yaml:"analysis" koanf:"analysis"`
	GeoIP      GeoIPConfig    `yaml:"geoip" koanf:"geoip"`
	Log        LogConfig      `yaml:"log" koanf:"log"`
}

// DBConfig locates the sqlite database. An empty path derives from
// the data directory.
type DBConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// UploadConfig bounds incoming request bodies.
type UploadConfig struct {
	MaxSizeMB int64 `yaml:"max_size_mb" koanf:"max_size_mb"`
}

// AnalysisConfig tunes the background analysis pipeline.
type AnalysisConfig struct {
	Workers   int      `yaml:"workers" koanf:"workers"`
	ChunkSize int      `yaml:"chunk_size" koanf:"chunk_size"`
	CacheTTL  Duration `yaml:"cache_ttl" koanf:"cache_ttl"`
}

// GeoIPConfig controls the range databases and their download. Empty
// URLs fall back to the bundled defaults; an empty dir derives from
// the data directory.
type GeoIPConfig struct {
	Enabled         bool     `yaml:"enabled" koanf:"enabled"`
	Dir             string   `yaml:"dir" koanf:"dir"`
	CountryURL      string   `yaml:"country_url" koanf:"country_url"`
	ASNURL          string   `yaml:"asn_url" koanf:"asn_url"`
	DownloadTimeout Duration `yaml:"download_timeout" koanf:"download_timeout"`
}

// LogConfig selects zerolog level and output format.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}
