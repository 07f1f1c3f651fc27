package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/suppchat/backend/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Defaults for the catalog synchronizer
const (
	defaultSnapshotTTL          = 4 * time.Hour
	defaultPageTimeout          = 30 * time.Second
	defaultMaxTimeoutRetries    = 3
	defaultRetryBaseDelay       = 500 * time.Millisecond
	defaultMaxPages             = 200
	defaultFailureCooldown      = 5 * time.Minute
	defaultEnrichmentBatchSize  = 10
	defaultEnrichmentBatchPause = time.Second
	defaultEnrichmentTimeout    = 15 * time.Second
	defaultEnrichmentTTL        = 4 * time.Hour
	defaultThrottleTTL          = 5 * time.Minute
)

// Byte cache key prefixes owned by the synchronizer
const (
	enrichmentKeyPrefix = "enrichment:"
	throttledKeyPrefix  = "enrichment-throttled:"
)

const refreshFlightKey = "catalog"

// RefreshListener is notified after every successful catalog refresh
type RefreshListener func(ctx context.Context, snapshot *domain.CatalogSnapshot)

// CatalogServiceConfig holds configuration for the catalog synchronizer
type CatalogServiceConfig struct {
	SnapshotTTL       time.Duration
	PageTimeout       time.Duration
	MaxTimeoutRetries int
	RetryBaseDelay    time.Duration
	MaxPages          int
	// FailureCooldown is how long a stale snapshot keeps being served
	// without I/O after a failed refresh
	FailureCooldown time.Duration

	EnrichmentBatchSize  int
	EnrichmentBatchPause time.Duration
	EnrichmentTimeout    time.Duration
	EnrichmentTTL        time.Duration
	ThrottleTTL          time.Duration
}

// CatalogService keeps a local, periodically refreshed mirror of the
// commerce catalog. At most one refresh runs at a time; concurrent callers
// share its result.
type CatalogService struct {
	source    domain.CatalogSource
	detail    domain.DetailSource
	extractor domain.ContentExtractor
	cache     domain.CacheRepository
	logger    zerolog.Logger
	cfg       CatalogServiceConfig

	mu       sync.RWMutex
	snapshot *domain.CatalogSnapshot
	failedAt time.Time

	flight singleflight.Group

	listenersMu sync.Mutex
	listeners   []RefreshListener

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCatalogService creates a new catalog synchronizer with dependencies.
// detail and extractor may be nil, which disables enrichment.
func NewCatalogService(
	source domain.CatalogSource,
	detail domain.DetailSource,
	extractor domain.ContentExtractor,
	cache domain.CacheRepository,
	logger zerolog.Logger,
	cfg CatalogServiceConfig,
) *CatalogService {
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = defaultSnapshotTTL
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = defaultPageTimeout
	}
	if cfg.MaxTimeoutRetries <= 0 {
		cfg.MaxTimeoutRetries = defaultMaxTimeoutRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.FailureCooldown <= 0 {
		cfg.FailureCooldown = defaultFailureCooldown
	}
	if cfg.EnrichmentBatchSize <= 0 {
		cfg.EnrichmentBatchSize = defaultEnrichmentBatchSize
	}
	if cfg.EnrichmentBatchPause <= 0 {
		cfg.EnrichmentBatchPause = defaultEnrichmentBatchPause
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = defaultEnrichmentTimeout
	}
	if cfg.EnrichmentTTL <= 0 {
		cfg.EnrichmentTTL = defaultEnrichmentTTL
	}
	if cfg.ThrottleTTL <= 0 {
		cfg.ThrottleTTL = defaultThrottleTTL
	}

	return &CatalogService{
		source:    source,
		detail:    detail,
		extractor: extractor,
		cache:     cache,
		logger:    logger.With().Str("component", "catalog").Logger(),
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// DefaultCatalogServiceConfig returns the production defaults
func DefaultCatalogServiceConfig() CatalogServiceConfig {
	return CatalogServiceConfig{
		SnapshotTTL:          defaultSnapshotTTL,
		PageTimeout:          defaultPageTimeout,
		MaxTimeoutRetries:    defaultMaxTimeoutRetries,
		RetryBaseDelay:       defaultRetryBaseDelay,
		MaxPages:             defaultMaxPages,
		FailureCooldown:      defaultFailureCooldown,
		EnrichmentBatchSize:  defaultEnrichmentBatchSize,
		EnrichmentBatchPause: defaultEnrichmentBatchPause,
		EnrichmentTimeout:    defaultEnrichmentTimeout,
		EnrichmentTTL:        defaultEnrichmentTTL,
		ThrottleTTL:          defaultThrottleTTL,
	}
}

// OnRefresh registers a listener called after each successful refresh
func (s *CatalogService) OnRefresh(listener RefreshListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Current returns the last published snapshot without any I/O. It is nil
// before the first successful refresh.
func (s *CatalogService) Current() *domain.CatalogSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// GetSnapshot returns a fresh-enough catalog snapshot, refreshing it when it
// is older than the TTL or when forceRefresh is set.
// Flow: fresh snapshot -> join or start the single refresh -> fallback
func (s *CatalogService) GetSnapshot(ctx context.Context, forceRefresh bool) (*domain.CatalogSnapshot, error) {
	if !forceRefresh {
		if snapshot := s.servable(); snapshot != nil {
			return snapshot, nil
		}
	}

	// The refresh outlives the caller that started it: other waiters depend on it
	refreshCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(refreshFlightKey, func() (interface{}, error) {
		return s.refresh(refreshCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.CatalogSnapshot), nil
	}
}

// servable returns the current snapshot when it is within its TTL, or when
// a refresh failed less than FailureCooldown ago. Nil means refresh.
func (s *CatalogService) servable() *domain.CatalogSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil
	}
	now := s.now()
	if s.snapshot.Age(now) < s.cfg.SnapshotTTL {
		return s.snapshot
	}
	if !s.failedAt.IsZero() && now.Sub(s.failedAt) < s.cfg.FailureCooldown {
		return s.snapshot
	}
	return nil
}

// refresh rebuilds the snapshot. On failure the last known-good snapshot is
// served; listeners only hear about successful refreshes.
func (s *CatalogService) refresh(ctx context.Context) (*domain.CatalogSnapshot, error) {
	started := s.now()
	s.logger.Info().Msg("catalog refresh started")

	items, pages, err := s.fetchCatalog(ctx)
	if err != nil {
		s.mu.Lock()
		previous := s.snapshot
		if previous != nil {
			s.failedAt = s.now()
		}
		s.mu.Unlock()

		if previous != nil {
			s.logger.Warn().
				Err(err).
				Time("fetched_at", previous.FetchedAt).
				Dur("cooldown", s.cfg.FailureCooldown).
				Msg("catalog refresh failed, serving last known-good snapshot")
			return previous, nil
		}
		s.logger.Error().Err(err).Msg("catalog refresh failed, no snapshot to fall back on")
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	enriched := s.enrich(ctx, items)

	snapshot := &domain.CatalogSnapshot{Items: items, FetchedAt: s.now()}
	s.mu.Lock()
	s.snapshot = snapshot
	s.failedAt = time.Time{}
	s.mu.Unlock()

	s.logger.Info().
		Int("pages", pages).
		Int("items", len(items)).
		Int("enriched", enriched).
		Dur("duration", s.now().Sub(started)).
		Msg("catalog refresh completed")

	s.notify(ctx, snapshot)
	return snapshot, nil
}

func (s *CatalogService) notify(ctx context.Context, snapshot *domain.CatalogSnapshot) {
	s.listenersMu.Lock()
	listeners := append([]RefreshListener(nil), s.listeners...)
	s.listenersMu.Unlock()

	for _, listener := range listeners {
		listener(ctx, snapshot)
	}
}

// fetchCatalog walks every page of the listing
func (s *CatalogService) fetchCatalog(ctx context.Context) ([]domain.CatalogItem, int, error) {
	var items []domain.CatalogItem
	cursor := ""

	for pages := 0; pages < s.cfg.MaxPages; pages++ {
		page, err := s.fetchPageWithRetry(ctx, cursor)
		if err != nil {
			return nil, pages, fmt.Errorf("page %d: %w", pages+1, err)
		}

		items = append(items, page.Items...)
		if page.NextCursor == "" {
			return items, pages + 1, nil
		}
		cursor = page.NextCursor
	}

	s.logger.Warn().Int("max_pages", s.cfg.MaxPages).Msg("catalog page limit reached, snapshot may be incomplete")
	return items, s.cfg.MaxPages, nil
}

// fetchPageWithRetry fetches one page under its own timeout. Only timeouts
// are retried.
func (s *CatalogService) fetchPageWithRetry(ctx context.Context, cursor string) (*domain.CatalogPage, error) {
	for attempt := 1; ; attempt++ {
		pageCtx, cancel := context.WithTimeout(ctx, s.cfg.PageTimeout)
		page, err := s.source.FetchPage(pageCtx, cursor)
		cancel()
		if err == nil {
			return page, nil
		}

		if !isTimeout(err) || attempt > s.cfg.MaxTimeoutRetries {
			return nil, err
		}

		delay := exponentialBackoff(attempt, s.cfg.RetryBaseDelay)
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("catalog page timed out, retrying")

		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// enrich attaches detail-page content to items in bounded batches.
// Failures leave the item unenriched. Returns the number of enriched items.
func (s *CatalogService) enrich(ctx context.Context, items []domain.CatalogItem) int {
	if s.detail == nil || s.extractor == nil || len(items) == 0 {
		return 0
	}

	var enriched atomic.Int64
	batchSize := s.cfg.EnrichmentBatchSize

	for start := 0; start < len(items); start += batchSize {
		if start > 0 && s.cfg.EnrichmentBatchPause > 0 {
			if err := s.sleep(ctx, s.cfg.EnrichmentBatchPause); err != nil {
				break
			}
		}

		end := min(start+batchSize, len(items))

		var g errgroup.Group
		g.SetLimit(batchSize)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if content := s.enrichItem(ctx, items[i].Handle); content != nil {
					items[i].Content = content
					enriched.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	return int(enriched.Load())
}

// enrichItem returns the content of one product, from cache when possible
func (s *CatalogService) enrichItem(ctx context.Context, handle string) *domain.ProductContent {
	if cached, err := s.cache.Get(ctx, enrichmentKeyPrefix+handle); err == nil {
		var content domain.ProductContent
		if err := json.Unmarshal(cached, &content); err == nil {
			return nonEmpty(&content)
		}
	}

	if _, err := s.cache.Get(ctx, throttledKeyPrefix+handle); err == nil {
		s.logger.Debug().Str("handle", handle).Msg("enrichment throttled")
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.EnrichmentTimeout)
	defer cancel()

	body, err := s.detail.FetchProductPage(fetchCtx, handle)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			s.logger.Warn().Str("handle", handle).Dur("ttl", s.cfg.ThrottleTTL).Msg("detail page rate limited")
			if err := s.cache.Set(ctx, throttledKeyPrefix+handle, []byte("1"), s.cfg.ThrottleTTL); err != nil {
				s.logger.Debug().Err(err).Str("handle", handle).Msg("throttle marker write failed")
			}
			return nil
		}
		s.logger.Warn().Err(err).Str("handle", handle).Msg("detail page fetch failed")
		return nil
	}

	content, err := s.extractor.Extract(bytes.NewReader(body))
	if err != nil {
		s.logger.Warn().Err(err).Str("handle", handle).Msg("content extraction failed")
		return nil
	}

	if data, err := json.Marshal(content); err == nil {
		if err := s.cache.Set(ctx, enrichmentKeyPrefix+handle, data, s.cfg.EnrichmentTTL); err != nil {
			s.logger.Debug().Err(err).Str("handle", handle).Msg("enrichment cache write failed")
		}
	}

	return nonEmpty(content)
}

func nonEmpty(content *domain.ProductContent) *domain.ProductContent {
	if content.IsEmpty() {
		return nil
	}
	return content
}

// isTimeout reports whether err is a deadline or network timeout
func isTimeout(err error) bool {
	if errors.Is(err, domain.ErrFetchTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// exponentialBackoff returns base, 2*base, 4*base... for attempts 1, 2, 3...
func exponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
