package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Data sources accepted in DATA_SOURCE.
const (
	SourceCSV     = "csv"
	SourceSocrata = "socrata"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Resolution.
	ThresholdMeters     float64
	DistanceFormula     string
	SpatialIndexEnabled bool

	// Hazard data loading.
	DataSource        string
	DataDir           string
	SocrataBaseURL    string
	SocrataAppToken   string
	SocrataPageSize   int
	SocrataWorkers    int
	SocrataMaxRecords int
	SocrataRateLimit  float64
	SocrataTimeout    time.Duration
	SocrataLookback   time.Duration
	SocrataStartDate  string
	SocrataEndDate    string

	// Warning generation (Anthropic Messages API).
	AnthropicAPIKey  string
	AnthropicEnabled bool
	AnthropicModel   string
	AnthropicTimeout time.Duration

	// Speech synthesis.
	SpeechEnabled  bool
	SpeechLanguage string
	SpeechBaseURL  string
	SpeechTimeout  time.Duration
	AudioDir       string

	// Kafka driver-location pipeline.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
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

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	threshold, err := parsePositiveFloat("HAZARD_THRESHOLD_METERS", 500)
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	socrataTimeout, err := parsePositiveDuration("SOCRATA_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	socrataLookback, err := parsePositiveDuration("SOCRATA_LOOKBACK", "720h")
	if err != nil {
		return nil, err
	}
	anthropicTimeout, err := parsePositiveDuration("ANTHROPIC_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}
	speechTimeout, err := parsePositiveDuration("SPEECH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	pageSize, err := parsePositiveInt("SOCRATA_PAGE_SIZE", 5000)
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveInt("SOCRATA_WORKERS", 10)
	if err != nil {
		return nil, err
	}
	maxRecords, err := parsePositiveInt("SOCRATA_MAX_RECORDS", 1_000_000)
	if err != nil {
		return nil, err
	}
	rateLimit, err := parsePositiveFloat("SOCRATA_RATE_LIMIT", 5)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ThresholdMeters:     threshold,
		DistanceFormula:     sharedcfg.EnvOrDefault("DISTANCE_FORMULA", "ellipsoidal"),
		SpatialIndexEnabled: os.Getenv("SPATIAL_INDEX_ENABLED") == "true",

		DataSource:        sharedcfg.EnvOrDefault("DATA_SOURCE", SourceCSV),
		DataDir:           sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		SocrataBaseURL:    sharedcfg.EnvOrDefault("SOCRATA_BASE_URL", "https://data.cityofnewyork.us/resource"),
		SocrataAppToken:   os.Getenv("SOCRATA_APP_TOKEN"),
		SocrataPageSize:   pageSize,
		SocrataWorkers:    workers,
		SocrataMaxRecords: maxRecords,
		SocrataRateLimit:  rateLimit,
		SocrataTimeout:    socrataTimeout,
		SocrataLookback:   socrataLookback,
		SocrataStartDate:  os.Getenv("SOCRATA_START_DATE"),
		SocrataEndDate:    os.Getenv("SOCRATA_END_DATE"),

		AnthropicAPIKey:  anthropicKey,
		AnthropicEnabled: envBool("ANTHROPIC_ENABLED", anthropicKey != ""),
		AnthropicModel:   sharedcfg.EnvOrDefault("ANTHROPIC_MODEL", "claude-haiku-4-5-20251001"),
		AnthropicTimeout: anthropicTimeout,

		SpeechEnabled:  envBool("SPEECH_ENABLED", false),
		SpeechLanguage: sharedcfg.EnvOrDefault("SPEECH_LANGUAGE", "en"),
		SpeechBaseURL:  sharedcfg.EnvOrDefault("SPEECH_BASE_URL", "https://translate.google.com/translate_tts"),
		SpeechTimeout:  speechTimeout,
		AudioDir:       sharedcfg.EnvOrDefault("AUDIO_DIR", os.TempDir()),

		KafkaEnabled:       envBool("KAFKA_ENABLED", false),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "driver-locations"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "hazard-alerts"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "hazard-proximity"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   envBool("MAPBOX_ENABLED", mapboxToken != ""),
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DataSource {
	case SourceCSV:
		if c.DataDir == "" {
			return errors.New("DATA_DIR is required when DATA_SOURCE is csv")
		}
	case SourceSocrata:
		if c.SocrataBaseURL == "" {
			return errors.New("SOCRATA_BASE_URL is required when DATA_SOURCE is socrata")
		}
	default:
		return fmt.Errorf("invalid DATA_SOURCE %q: want csv or socrata", c.DataSource)
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSourceTopic == "" {
			return errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if c.AnthropicEnabled && c.AnthropicAPIKey == "" {
		return errors.New("ANTHROPIC_ENABLED is true but ANTHROPIC_API_KEY is not set")
	}
	for key, v := range map[string]string{"SOCRATA_START_DATE": c.SocrataStartDate, "SOCRATA_END_DATE": c.SocrataEndDate} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, v); err != nil {
			return fmt.Errorf("invalid %s %q: want YYYY-MM-DD", key, v)
		}
	}
	return nil
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return def
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
