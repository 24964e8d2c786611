package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all ETL and server settings, populated from environment variables.
type Config struct {
	DatalakeRoot string

	GHCNDBaseURL    string
	GHCNDReadmeURL  string
	StartYear       int
	EndYear         int
	Elements        []string
	StationPrefixes []string

	StreamThresholdBytes int64
	DownloadTimeout      time.Duration

	HexCenterLat      float64
	HexCenterLon      float64
	HexResolution     int
	HexRingSize       int
	AverageWindowDays int

	FirePointsPath     string
	FirePerimetersPath string
	StatesShapefile    string
	PredictionsPath    string

	FieldsFile          string
	NormalizationPolicy string
	LayerCacheSize      int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// LoadDotEnv loads a .env file into the environment if one exists. Variables
// already set take precedence.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var errs []error
	intVar := func(key string, def int) int {
		v, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, strconv.Itoa(def)))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s", key))
		}
		return v
	}
	floatVar := func(key string, def float64) float64 {
		v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, strconv.FormatFloat(def, 'f', -1, 64)), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s", key))
		}
		return v
	}

	downloadTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("DOWNLOAD_TIMEOUT", "30m"))
	if err != nil || downloadTimeout <= 0 {
		errs = append(errs, errors.New("invalid DOWNLOAD_TIMEOUT"))
	}

	threshold, err := strconv.ParseInt(sharedcfg.EnvOrDefault("STREAM_THRESHOLD_BYTES", "1073741824"), 10, 64)
	if err != nil || threshold <= 0 {
		errs = append(errs, errors.New("invalid STREAM_THRESHOLD_BYTES"))
	}

	cfg := &Config{
		DatalakeRoot:    sharedcfg.EnvOrDefault("DATALAKE_ROOT", "lake"),
		GHCNDBaseURL:    strings.TrimRight(sharedcfg.EnvOrDefault("GHCND_BASE_URL", "https://noaa-ghcn-pds.s3.amazonaws.com"), "/"),
		GHCNDReadmeURL:  sharedcfg.EnvOrDefault("GHCND_README_URL", "https://docs.opendata.aws/noaa-ghcn-pds/readme.html"),
		StartYear:       intVar("START_YEAR", 2000),
		EndYear:         intVar("END_YEAR", 2025),
		Elements:        splitList(sharedcfg.EnvOrDefault("GHCND_ELEMENTS", "PRCP,SNOW,SNWD,TMAX,TMIN,AWND")),
		StationPrefixes: splitList(sharedcfg.EnvOrDefault("STATION_PREFIXES", "US,CA,MX")),

		StreamThresholdBytes: threshold,
		DownloadTimeout:      downloadTimeout,

		HexCenterLat:      floatVar("HEX_CENTER_LAT", 40),
		HexCenterLon:      floatVar("HEX_CENTER_LON", -95),
		HexResolution:     intVar("HEX_RESOLUTION", 4),
		HexRingSize:       intVar("HEX_RING_SIZE", 100),
		AverageWindowDays: intVar("AVERAGE_WINDOW_DAYS", 1),

		FirePointsPath:     os.Getenv("FIRE_POINTS_PATH"),
		FirePerimetersPath: os.Getenv("FIRE_PERIMETERS_PATH"),
		StatesShapefile:    os.Getenv("STATES_SHAPEFILE"),
		PredictionsPath:    os.Getenv("PREDICTIONS_PATH"),

		FieldsFile:          os.Getenv("FIELDS_FILE"),
		NormalizationPolicy: strings.ToLower(sharedcfg.EnvOrDefault("NORMALIZATION_POLICY", "fixed")),
		LayerCacheSize:      intVar("LAYER_CACHE_SIZE", 16),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "hex-layer-records"),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatalakeRoot == "":
		return errors.New("DATALAKE_ROOT is required")
	case c.StartYear > c.EndYear:
		return fmt.Errorf("START_YEAR %d is after END_YEAR %d", c.StartYear, c.EndYear)
	case len(c.Elements) == 0:
		return errors.New("GHCND_ELEMENTS is required")
	case c.HexResolution < 0 || c.HexResolution > 15:
		return errors.New("HEX_RESOLUTION must be between 0 and 15")
	case c.HexRingSize < 0:
		return errors.New("HEX_RING_SIZE must not be negative")
	case c.HexCenterLat < -90 || c.HexCenterLat > 90:
		return errors.New("HEX_CENTER_LAT must be between -90 and 90")
	case c.HexCenterLon < -180 || c.HexCenterLon > 180:
		return errors.New("HEX_CENTER_LON must be between -180 and 180")
	case c.AverageWindowDays < 1:
		return errors.New("AVERAGE_WINDOW_DAYS must be at least 1")
	case c.NormalizationPolicy != "fixed" && c.NormalizationPolicy != "data":
		return fmt.Errorf("invalid NORMALIZATION_POLICY %q", c.NormalizationPolicy)
	case c.LayerCacheSize <= 0:
		return errors.New("LAYER_CACHE_SIZE must be positive")
	case c.KafkaEnabled && len(c.KafkaBrokers) == 0:
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	case c.KafkaEnabled && c.KafkaTopic == "":
		return errors.New("KAFKA_TOPIC is required")
	}
	return nil
}

// Years returns every year from StartYear to EndYear inclusive.
func (c *Config) Years() []int {
	years := make([]int, 0, c.EndYear-c.StartYear+1)
	for y := c.StartYear; y <= c.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
