package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/framewise/internal/framing"
	"github.com/ppiankov/framewise/internal/llm"
	"github.com/ppiankov/framewise/internal/metrics"
	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/recovery"
	"github.com/ppiankov/framewise/internal/references"
	"github.com/ppiankov/framewise/internal/region"
	"github.com/ppiankov/framewise/internal/validate"
	"github.com/ppiankov/framewise/internal/worker"
)

// FromConfig builds a pipeline and all its collaborators from cfg. Paths in
// cfg must already be resolved. The caller must Close the pipeline.
func FromConfig(ctx context.Context, cfg model.Config, logger *zap.Logger, m *metrics.Metrics) (*Pipeline, error) {
	registry, err := llm.BuildRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return fromConfig(cfg, registry, logger, m)
}

// OfflineFromConfig builds a pipeline without model providers, for follow-up
// calls that never invoke a model (resume, resolve, dismiss, status).
// Provider credentials are not required.
func OfflineFromConfig(cfg model.Config, logger *zap.Logger, m *metrics.Metrics) (*Pipeline, error) {
	return fromConfig(cfg, llm.NewRegistry(cfg.Generation.Models), logger, m)
}

func fromConfig(cfg model.Config, registry ProviderSource, logger *zap.Logger, m *metrics.Metrics) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var err error
	catalog := framing.DefaultCatalog()
	if cfg.Data.CatalogFile != "" {
		if catalog, err = framing.LoadCatalogFile(cfg.Data.CatalogFile); err != nil {
			return nil, fmt.Errorf("load frame catalog: %w", err)
		}
	}

	var regions region.Provider = region.NewStaticProvider()
	if cfg.Data.RegionsFile != "" {
		loaded, err := region.LoadFile(cfg.Data.RegionsFile)
		if err != nil {
			return nil, fmt.Errorf("load regions: %w", err)
		}
		regions = loaded
	}

	ttl := time.Duration(cfg.Recovery.SessionTTL) * time.Hour
	store := recovery.NewMemoryStore(ttl)
	if cfg.Recovery.Dir != "" {
		store = recovery.NewPersistentStore(cfg.Recovery.Dir, ttl)
	}

	opts := Options{
		Providers: registry,
		Store:     store,
		Catalog:   catalog,
		Regions:   regions,
		Fetcher: NewFetcher(
			time.Duration(cfg.HTTP.Timeout)*time.Second,
			cfg.HTTP.UserAgent,
			cfg.HTTP.MaxBodyBytes,
			cfg.HTTP.RespectRobots,
			cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy,
		),
		Citations: validate.NewCitationValidator(validate.CitationOptions{
			VerifyOnline:  cfg.Citations.VerifyOnline,
			Timeout:       time.Duration(cfg.Citations.Timeout) * time.Second,
			UserAgent:     cfg.HTTP.UserAgent,
			RespectRobots: cfg.HTTP.RespectRobots,
			HTTPProxy:     cfg.HTTP.HTTPProxy,
			HTTPSProxy:    cfg.HTTP.HTTPSProxy,
			NoProxy:       cfg.HTTP.NoProxy,
		}),
		Limiter:    worker.NewLimiter(cfg.Generation.RequestsPerSecond, cfg.Generation.Burst),
		Metrics:    m,
		Logger:     logger,
		Generation: cfg.Generation,
		Recovery:   cfg.Recovery,
	}

	if cfg.References.Enabled && cfg.References.DBPath != "" {
		refs, err := references.Open(cfg.References.DBPath, cfg.References)
		if err != nil {
			// Reference search is optional enrichment
			logger.Warn("reference library unavailable", zap.String("path", cfg.References.DBPath), zap.Error(err))
		} else {
			opts.References = refs
		}
	}

	return New(opts)
}
