// Package app builds the service's collaborators from configuration. Both
// binaries share it so the daemon and the CLI resolve hazards identically.
package app

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/anthropic"
	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/mapbox"
	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/socrata"
	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/speech"
	"github.com/couchcryptid/hazard-proximity-service/internal/catalog"
	"github.com/couchcryptid/hazard-proximity-service/internal/config"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/observability"
	"github.com/couchcryptid/hazard-proximity-service/internal/warning"
)

// NewResolver returns a resolver over the built-in categories using the
// configured distance formula.
func NewResolver(cfg *config.Config) (*domain.Resolver, error) {
	distance, err := domain.ParseFormula(cfg.DistanceFormula)
	if err != nil {
		return nil, fmt.Errorf("invalid DISTANCE_FORMULA: %w", err)
	}
	return domain.NewResolver(distance, domain.DefaultRegistry()), nil
}

// NewSocrataClient returns an open data client configured from cfg.
func NewSocrataClient(cfg *config.Config, registry *domain.Registry, metrics *observability.Metrics, logger *slog.Logger) *socrata.Client {
	return socrata.NewClient(socrata.Options{
		BaseURL:    cfg.SocrataBaseURL,
		AppToken:   cfg.SocrataAppToken,
		PageSize:   cfg.SocrataPageSize,
		Workers:    cfg.SocrataWorkers,
		MaxRecords: cfg.SocrataMaxRecords,
		RateLimit:  cfg.SocrataRateLimit,
		Timeout:    cfg.SocrataTimeout,
	}, registry, metrics, logger)
}

// NewSource selects the hazard source named by DATA_SOURCE.
func NewSource(cfg *config.Config, registry *domain.Registry, metrics *observability.Metrics, logger *slog.Logger) catalog.Source {
	if cfg.DataSource == config.SourceSocrata {
		return catalog.SocrataSource{
			Client:    NewSocrataClient(cfg, registry, metrics, logger),
			Datasets:  socrata.DefaultDatasets(),
			StartDate: cfg.SocrataStartDate,
			EndDate:   cfg.SocrataEndDate,
			Lookback:  cfg.SocrataLookback,
		}
	}
	return catalog.DirSource{Dir: cfg.DataDir, Registry: registry}
}

// NewCatalog wires the configured source and resolver into an unloaded catalog.
func NewCatalog(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*catalog.Catalog, error) {
	resolver, err := NewResolver(cfg)
	if err != nil {
		return nil, err
	}
	src := NewSource(cfg, resolver.Registry(), metrics, logger)
	return catalog.New(src, resolver, cfg.SpatialIndexEnabled, metrics, logger), nil
}

// NewWarningService wires the optional message generator and synthesizer.
func NewWarningService(cfg *config.Config, finder warning.Finder, metrics *observability.Metrics, logger *slog.Logger) *warning.Service {
	var generator domain.MessageGenerator
	if cfg.AnthropicEnabled {
		generator = anthropic.NewGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicTimeout)
		logger.Info("llm warnings enabled", "model", cfg.AnthropicModel)
	} else {
		logger.Info("llm warnings disabled, using fallback messages")
	}

	var synthesizer domain.Synthesizer
	if cfg.SpeechEnabled {
		synthesizer = speech.NewClient(cfg.SpeechBaseURL, cfg.SpeechLanguage, cfg.SpeechTimeout, logger)
		logger.Info("speech synthesis enabled", "language", cfg.SpeechLanguage, "audio_dir", cfg.AudioDir)
	}

	return warning.NewService(finder, domain.NewGate(cfg.ThresholdMeters), generator, synthesizer, cfg.AudioDir, metrics, logger)
}

// NewGeocoder returns the cached Mapbox geocoder, or nil when geocoding is disabled.
func NewGeocoder(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) domain.Geocoder {
	if !cfg.MapboxEnabled {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("mapbox geocoding disabled")
		return nil
	}
	metrics.GeocodeEnabled.Set(1)
	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
	logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	return mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
}
