package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/suppchat/backend/config"
	"github.com/suppchat/backend/internal/domain"
	"github.com/suppchat/backend/internal/infrastructure/cache"
	"github.com/suppchat/backend/internal/infrastructure/commerce"
	"github.com/suppchat/backend/internal/infrastructure/htmlcontent"
	"github.com/suppchat/backend/internal/infrastructure/store"
	"github.com/suppchat/backend/internal/usecase"
)

// byteCache is a CacheRepository owning a connection or goroutine
type byteCache interface {
	domain.CacheRepository
	Close() error
}

// app holds the wired services shared by the serve and refresh commands
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    domain.AnswerStore
	cache    byteCache
	commerce *commerce.Client
	catalog  *usecase.CatalogService
	products *usecase.ProductContextService
	answers  *usecase.ResponseCache
}

// newApp builds every dependency from configuration
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	answerStore, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = answerStore

	c, err := openCache(ctx, cfg.Cache)
	if err != nil {
		answerStore.Close()
		return nil, err
	}
	a.cache = c

	a.commerce = commerce.NewClient(commerce.ClientConfig{
		BaseURL:           cfg.Commerce.BaseURL,
		AccessToken:       cfg.Commerce.AccessToken,
		Currency:          cfg.Commerce.Currency,
		PageSize:          cfg.Commerce.PageSize,
		Timeout:           cfg.Commerce.Timeout,
		RequestsPerSecond: cfg.Commerce.RequestsPerSecond,
		Burst:             cfg.Commerce.Burst,
	}, logger)
	a.commerce.SetDebug(cfg.Commerce.Debug)

	// Interfaces stay nil when enrichment is off
	var (
		detail    domain.DetailSource
		extractor domain.ContentExtractor
	)
	if cfg.Enrichment.Enabled {
		detail = a.commerce
		extractor = htmlcontent.NewExtractor()
	}

	a.catalog = usecase.NewCatalogService(a.commerce, detail, extractor, a.cache, logger, usecase.CatalogServiceConfig{
		SnapshotTTL:          cfg.Catalog.SnapshotTTL,
		PageTimeout:          cfg.Catalog.PageTimeout,
		MaxTimeoutRetries:    cfg.Catalog.MaxTimeoutRetries,
		RetryBaseDelay:       cfg.Catalog.RetryBaseDelay,
		MaxPages:             cfg.Catalog.MaxPages,
		FailureCooldown:      cfg.Catalog.FailureCooldown,
		EnrichmentBatchSize:  cfg.Enrichment.BatchSize,
		EnrichmentBatchPause: cfg.Enrichment.BatchPause,
		EnrichmentTimeout:    cfg.Enrichment.Timeout,
		EnrichmentTTL:        cfg.Enrichment.TTL,
		ThrottleTTL:          cfg.Enrichment.ThrottleTTL,
	})

	a.products = usecase.NewProductContextService(a.catalog, a.cache, logger, usecase.ProductContextConfig{
		TTL:         cfg.Catalog.SnapshotTTL,
		MaxBenefits: cfg.Catalog.MaxBenefits,
	})
	a.catalog.OnRefresh(a.products.Invalidate)

	a.answers = usecase.NewResponseCache(a.store, a.catalog, logger, usecase.ResponseCacheConfig{
		EntryTTL:                      cfg.Answers.EntryTTL,
		PromotionThreshold:            cfg.Answers.PromotionThreshold,
		ComparisonKeyIncludesQuestion: cfg.Answers.ComparisonKeyIncludesQuestion,
	})

	logger.Info().
		Str("store", cfg.Store.Driver).
		Str("cache", cfg.Cache.Type).
		Bool("enrichment", cfg.Enrichment.Enabled).
		Dur("snapshot_ttl", cfg.Catalog.SnapshotTTL).
		Int64("promotion_threshold", cfg.Answers.PromotionThreshold).
		Msg("services configured")

	return a, nil
}

func openStore(cfg config.StoreConfig) (domain.AnswerStore, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		s, err := store.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening answer store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openCache(ctx context.Context, cfg config.CacheConfig) (byteCache, error) {
	switch cfg.Type {
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis":
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: cfg.RedisURL, Prefix: cfg.KeyPrefix})
		if err != nil {
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

// close waits for pending hit updates then releases the store and cache
func (a *app) close() error {
	a.answers.Close()
	return errors.Join(a.store.Close(), a.cache.Close())
}
