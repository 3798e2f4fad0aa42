package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
)

// Config holds all tool settings. Values come from built-in defaults, then an
// optional TOML file named by QUAKES_CONFIG, then environment variables.
type Config struct {
	// Catalog query.
	Catalog        string        `toml:"catalog" env:"CATALOG"`
	CatalogTimeout time.Duration `toml:"catalog_timeout" env:"CATALOG_TIMEOUT"`
	MinLatitude    float64       `toml:"min_latitude" env:"MIN_LATITUDE"`
	MaxLatitude    float64       `toml:"max_latitude" env:"MAX_LATITUDE"`
	MinLongitude   float64       `toml:"min_longitude" env:"MIN_LONGITUDE"`
	MaxLongitude   float64       `toml:"max_longitude" env:"MAX_LONGITUDE"`
	StartTime      time.Time     `toml:"start_time" env:"START_TIME"`
	EndTime        time.Time     `toml:"end_time" env:"END_TIME"`
	MinMagnitude   float64       `toml:"min_magnitude" env:"MIN_MAGNITUDE"`
	MaxMagnitude   float64       `toml:"max_magnitude" env:"MAX_MAGNITUDE"`

	FailOnFetchError bool `toml:"fail_on_fetch_error" env:"FAIL_ON_FETCH_ERROR"`

	// Outputs.
	OutputDir       string `toml:"output_dir" env:"OUTPUT_DIR"`
	SpreadsheetName string `toml:"spreadsheet_name" env:"SPREADSHEET_NAME"`
	SheetName       string `toml:"sheet_name" env:"SHEET_NAME"`
	MapLandPath     string `toml:"map_land_path" env:"MAP_LAND_PATH"`
	MapBordersPath  string `toml:"map_borders_path" env:"MAP_BORDERS_PATH"`
	MapDPI          int    `toml:"map_dpi" env:"MAP_DPI"`

	// Waveform listing.
	WaveformDir string `toml:"waveform_dir" env:"WAVEFORM_DIR"`
	WaveformExt string `toml:"waveform_ext" env:"WAVEFORM_EXT"`

	// Scheduled mode and service endpoints.
	RunInterval     time.Duration `toml:"run_interval" env:"RUN_INTERVAL"`
	HTTPAddr        string        `toml:"http_addr" env:"HTTP_ADDR"`
	LogLevel        string        `toml:"log_level" env:"LOG_LEVEL"`
	LogFormat       string        `toml:"log_format" env:"LOG_FORMAT"`
	ShutdownTimeout time.Duration `toml:"-"`

	// Mapbox place enrichment.
	MapboxToken     string        `toml:"-" env:"MAPBOX_TOKEN"`
	MapboxEnabled   bool          `toml:"-" env:"MAPBOX_ENABLED"`
	MapboxTimeout   time.Duration `toml:"mapbox_timeout" env:"MAPBOX_TIMEOUT"`
	MapboxCacheSize int           `toml:"mapbox_cache_size" env:"MAPBOX_CACHE_SIZE"`
	MapboxRateLimit float64       `toml:"mapbox_rate_limit" env:"MAPBOX_RATE_LIMIT"`

	// Optional sinks.
	KafkaBrokers  []string `toml:"kafka_brokers" env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string   `toml:"kafka_topic" env:"KAFKA_TOPIC"`
	ArchiveDBPath string   `toml:"archive_db_path" env:"ARCHIVE_DB_PATH"`
	S3Bucket      string   `toml:"s3_bucket" env:"S3_BUCKET"`
	S3Prefix      string   `toml:"s3_prefix" env:"S3_PREFIX"`
	S3Region      string   `toml:"s3_region" env:"S3_REGION"`
	S3Endpoint    string   `toml:"s3_endpoint" env:"S3_ENDPOINT"`
}

func defaults() *Config {
	return &Config{
		Catalog:         "IRIS",
		CatalogTimeout:  60 * time.Second,
		MinLatitude:     10.0,
		MaxLatitude:     50.0,
		MinLongitude:    -130.0,
		MaxLongitude:    -85.0,
		StartTime:       time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndTime:         time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		MinMagnitude:    5.0,
		MaxMagnitude:    9.5,
		OutputDir:       "output",
		SpreadsheetName: "calmex.xlsx",
		SheetName:       "info",
		MapDPI:          150,
		WaveformDir:     "waveforms",
		WaveformExt:     ".SAC",
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		MapboxTimeout:   5 * time.Second,
		MapboxCacheSize: 1000,
		MapboxRateLimit: 5,
		S3Region:        "us-east-1",
	}
}

// Load reads configuration, applying defaults where unset.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("QUAKES_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("invalid QUAKES_CONFIG %s: %w", path, err)
		}
	}

	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Time{}): parseTime,
		},
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout = shutdownTimeout

	if _, ok := os.LookupEnv("MAPBOX_ENABLED"); !ok {
		cfg.MapboxEnabled = cfg.MapboxToken != ""
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Catalog == "" {
		return errors.New("CATALOG is required")
	}
	if c.CatalogTimeout <= 0 {
		return errors.New("invalid CATALOG_TIMEOUT")
	}
	if err := c.Bounds().Validate(); err != nil {
		return fmt.Errorf("invalid MIN/MAX_LATITUDE or MIN/MAX_LONGITUDE: %w", err)
	}
	if c.MinMagnitude > c.MaxMagnitude {
		return errors.New("MIN_MAGNITUDE must not exceed MAX_MAGNITUDE")
	}
	if !c.StartTime.Before(c.EndTime) {
		return errors.New("START_TIME must be before END_TIME")
	}
	if c.SpreadsheetName == "" || c.SheetName == "" {
		return errors.New("SPREADSHEET_NAME and SHEET_NAME are required")
	}
	if c.MapDPI <= 0 {
		return errors.New("invalid MAP_DPI")
	}
	if c.RunInterval < 0 {
		return errors.New("invalid RUN_INTERVAL")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	if c.MapboxTimeout <= 0 {
		return errors.New("invalid MAPBOX_TIMEOUT")
	}
	if c.MapboxCacheSize <= 0 {
		return errors.New("invalid MAPBOX_CACHE_SIZE")
	}
	if c.MapboxRateLimit <= 0 {
		return errors.New("invalid MAPBOX_RATE_LIMIT")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if c.KafkaTopic != "" && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_TOPIC is set but KAFKA_BROKERS is empty")
	}
	return nil
}

// Bounds returns the configured map region.
func (c *Config) Bounds() domain.MapBounds {
	return domain.MapBounds{
		MinLatitude:  c.MinLatitude,
		MaxLatitude:  c.MaxLatitude,
		MinLongitude: c.MinLongitude,
		MaxLongitude: c.MaxLongitude,
	}
}

// Query returns the catalog request described by the configuration.
func (c *Config) Query() domain.Query {
	return domain.Query{
		Catalog:   c.Catalog,
		Bounds:    c.Bounds(),
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
		Magnitude: domain.MagnitudeRange{Min: c.MinMagnitude, Max: c.MaxMagnitude},
	}
}

// SpreadsheetPath is the deterministic location of the event table.
func (c *Config) SpreadsheetPath() string {
	return filepath.Join(c.OutputDir, c.SpreadsheetName)
}

// parseTime accepts RFC 3339 timestamps and plain dates (UTC midnight).
func parseTime(v string) (any, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("invalid time %q", v)
}
