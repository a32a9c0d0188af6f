package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // SOURCE_TIMEZONE must resolve on hosts without zoneinfo

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Sink names accepted in SINKS.
const (
	SinkJSON   = "json"
	SinkKafka  = "kafka"
	SinkSQLite = "sqlite"
)

// IncidentSource pairs an incident CSV key with the schema vintage it uses.
type IncidentSource struct {
	Key     string
	Vintage string
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	SourceURL            string
	OutputURL            string
	NeighborhoodsKey     string
	NeighborhoodProperty string
	IncidentSources      []IncidentSource
	CitationsKey         string
	WeatherKey           string
	AstroKeyPattern      string
	AstroYears           []int

	SourceZone         *time.Location
	AstroZone          *time.Location
	StrictAccidentType bool
	MissingAstroPolicy string
	ExtraChargeLabels  map[string]string

	SpatialIndex     string
	LocatorCacheSize int
	Workers          int

	Sinks            []string
	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaBatchSize   int
	KafkaBatchFlush  time.Duration
	SQLitePath       string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	batchFlush, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	incidents, err := parseIncidentSources(sharedcfg.EnvOrDefault("INCIDENT_SOURCES",
		"ACCIDENT-2010-2013.csv=2010-2013,ACCIDENT-2014.csv=2014"))
	if err != nil {
		return nil, err
	}

	years, err := parseYears(sharedcfg.EnvOrDefault("ASTRO_YEARS", "2010,2011,2012,2013,2014"))
	if err != nil {
		return nil, err
	}

	sourceZone, err := time.LoadLocation(sharedcfg.EnvOrDefault("SOURCE_TIMEZONE", "America/New_York"))
	if err != nil {
		return nil, fmt.Errorf("invalid SOURCE_TIMEZONE: %w", err)
	}

	astroOffset, err := time.ParseDuration(sharedcfg.EnvOrDefault("ASTRO_UTC_OFFSET", "-5h"))
	if err != nil || astroOffset < -14*time.Hour || astroOffset > 14*time.Hour {
		return nil, errors.New("invalid ASTRO_UTC_OFFSET: must be a duration between -14h and 14h")
	}

	strict, err := parseBool("STRICT_ACCIDENT_TYPE", false)
	if err != nil {
		return nil, err
	}

	extraCharges, err := parseChargeLabels(os.Getenv("EXTRA_CHARGE_LABELS"))
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseNonNegativeInt("LOCATOR_CACHE_SIZE", 4096)
	if err != nil {
		return nil, err
	}

	workers, err := parseNonNegativeInt("WORKERS", 4)
	if err != nil || workers < 1 {
		return nil, errors.New("invalid WORKERS: must be a positive integer")
	}

	cfg := &Config{
		SourceURL:            sharedcfg.EnvOrDefault("SOURCE_URL", "data_sources"),
		OutputURL:            sharedcfg.EnvOrDefault("OUTPUT_URL", "data"),
		NeighborhoodsKey:     sharedcfg.EnvOrDefault("NEIGHBORHOODS_KEY", "cambridgegis/Boundary/CDD_Neighborhoods/BOUNDARY_CDDNeighborhoods.geojson"),
		NeighborhoodProperty: sharedcfg.EnvOrDefault("NEIGHBORHOOD_PROPERTY", "properties.N_HOOD"),
		IncidentSources:      incidents,
		CitationsKey:         sharedcfg.EnvOrDefault("CITATIONS_KEY", "CITATIONS-2010-2014.csv"),
		WeatherKey:           sharedcfg.EnvOrDefault("WEATHER_KEY", "weather-2010-2014.csv"),
		AstroKeyPattern:      sharedcfg.EnvOrDefault("ASTRO_KEY_PATTERN", "sun/{year}.txt"),
		AstroYears:           years,

		SourceZone:         sourceZone,
		AstroZone:          time.FixedZone(astroZoneName(astroOffset), int(astroOffset.Seconds())),
		StrictAccidentType: strict,
		MissingAstroPolicy: sharedcfg.EnvOrDefault("MISSING_ASTRO_POLICY", "fill"),
		ExtraChargeLabels:  extraCharges,

		SpatialIndex:     sharedcfg.EnvOrDefault("SPATIAL_INDEX", "rtree"),
		LocatorCacheSize: cacheSize,
		Workers:          workers,

		Sinks:            sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("SINKS", SinkJSON)),
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopicPrefix: sharedcfg.EnvOrDefault("KAFKA_TOPIC_PREFIX", "cambridge."),
		KafkaBatchSize:   batchSize,
		KafkaBatchFlush:  batchFlush,
		SQLitePath:       sharedcfg.EnvOrDefault("SQLITE_PATH", "data/cambridge.db"),

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.NeighborhoodsKey == "" {
		return errors.New("NEIGHBORHOODS_KEY is required")
	}
	if !strings.Contains(c.AstroKeyPattern, "{year}") {
		return errors.New("invalid ASTRO_KEY_PATTERN: must contain {year}")
	}
	switch c.MissingAstroPolicy {
	case "fill", "drop", "fail":
	default:
		return fmt.Errorf("invalid MISSING_ASTRO_POLICY %q: must be fill, drop, or fail", c.MissingAstroPolicy)
	}
	switch c.SpatialIndex {
	case "rtree", "none":
	default:
		return fmt.Errorf("invalid SPATIAL_INDEX %q: must be rtree or none", c.SpatialIndex)
	}
	if len(c.Sinks) == 0 {
		return errors.New("SINKS is required")
	}
	for _, s := range c.Sinks {
		switch s {
		case SinkJSON, SinkSQLite:
		case SinkKafka:
			if len(c.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is required for the kafka sink")
			}
		default:
			return fmt.Errorf("invalid SINKS entry %q: must be json, kafka, or sqlite", s)
		}
	}
	return nil
}

// HasSink reports whether name is one of the configured sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// AstroKey returns the astronomical table key for year.
func (c *Config) AstroKey(year int) string {
	return strings.ReplaceAll(c.AstroKeyPattern, "{year}", strconv.Itoa(year))
}

// parseIncidentSources parses "key=vintage,key=vintage".
func parseIncidentSources(s string) ([]IncidentSource, error) {
	var out []IncidentSource
	for _, part := range sharedcfg.ParseBrokers(s) {
		key, vintage, ok := strings.Cut(part, "=")
		key, vintage = strings.TrimSpace(key), strings.TrimSpace(vintage)
		if !ok || key == "" || vintage == "" {
			return nil, fmt.Errorf("invalid INCIDENT_SOURCES entry %q: want key=vintage", part)
		}
		out = append(out, IncidentSource{Key: key, Vintage: vintage})
	}
	if len(out) == 0 {
		return nil, errors.New("INCIDENT_SOURCES is required")
	}
	return out, nil
}

func parseYears(s string) ([]int, error) {
	var out []int
	for _, part := range sharedcfg.ParseBrokers(s) {
		y, err := strconv.Atoi(part)
		if err != nil || y < 1800 || y > 2200 {
			return nil, fmt.Errorf("invalid ASTRO_YEARS entry %q", part)
		}
		out = append(out, y)
	}
	if len(out) == 0 {
		return nil, errors.New("ASTRO_YEARS is required")
	}
	return out, nil
}

// parseChargeLabels parses "description=Label;description=Label". Charge
// descriptions contain commas, so entries are separated by semicolons.
func parseChargeLabels(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		desc, label, ok := strings.Cut(part, "=")
		desc, label = strings.TrimSpace(desc), strings.TrimSpace(label)
		if !ok || desc == "" || label == "" {
			return nil, fmt.Errorf("invalid EXTRA_CHARGE_LABELS entry %q: want description=Label", part)
		}
		out[desc] = label
	}
	return out, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return v, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", key)
	}
	return n, nil
}

func astroZoneName(offset time.Duration) string {
	if offset == -5*time.Hour {
		return "EST"
	}
	return "UTC" + offset.String()
}
