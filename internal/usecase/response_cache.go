package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/suppchat/backend/internal/domain"
)

// Defaults for the answer cache
const (
	defaultEntryTTL           = 90 * 24 * time.Hour
	defaultPromotionThreshold = 2
	defaultHitUpdateTimeout   = 5 * time.Second
)

// SnapshotProvider returns the current catalog snapshot
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, forceRefresh bool) (*domain.CatalogSnapshot, error)
}

// ResponseCacheConfig holds configuration for the answer cache
type ResponseCacheConfig struct {
	EntryTTL           time.Duration
	PromotionThreshold int64
	// ComparisonKeyIncludesQuestion folds the normalized question into the
	// comparison key so two questions about the same products do not collide.
	ComparisonKeyIncludesQuestion bool
	HitUpdateTimeout              time.Duration
}

// ResponseCache serves previously computed answers from three cascading
// tiers and promotes repeated questions into them.
type ResponseCache struct {
	store    domain.AnswerStore
	catalog  SnapshotProvider
	mentions *MentionExtractor
	logger   zerolog.Logger
	cfg      ResponseCacheConfig

	now     func() time.Time
	pending sync.WaitGroup
}

// NewResponseCache creates a new answer cache with dependencies.
// catalog may be nil, which disables the comparison tier.
func NewResponseCache(
	store domain.AnswerStore,
	catalog SnapshotProvider,
	logger zerolog.Logger,
	cfg ResponseCacheConfig,
) *ResponseCache {
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = defaultEntryTTL
	}
	if cfg.PromotionThreshold <= 0 {
		cfg.PromotionThreshold = defaultPromotionThreshold
	}
	if cfg.HitUpdateTimeout <= 0 {
		cfg.HitUpdateTimeout = defaultHitUpdateTimeout
	}

	return &ResponseCache{
		store:    store,
		catalog:  catalog,
		mentions: NewMentionExtractor(),
		logger:   logger.With().Str("component", "answers").Logger(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// tierProbe is one (tier, key) pair to consult
type tierProbe struct {
	tier domain.Tier
	key  string
}

// questionContext holds every key ingredient derived from a question
type questionContext struct {
	normalized  string
	mentions    []string
	comparison  bool
	cluster     *domain.ProfileCluster
	clusterHash string
}

// analyze computes the normalized question, mentions, comparison intent and
// cluster hash of a question.
func (c *ResponseCache) analyze(ctx context.Context, question string, profile *domain.UserProfile) questionContext {
	qc := questionContext{normalized: NormalizeQuestion(question)}
	if qc.normalized == "" {
		return qc
	}

	// Mentions only matter when the comparison tier can apply
	if HasComparisonIntent(question) && c.catalog != nil {
		snapshot, err := c.catalog.GetSnapshot(ctx, false)
		if err != nil {
			c.logger.Warn().Err(err).Msg("catalog unavailable, skipping comparison tier")
		} else {
			qc.comparison = true
			qc.mentions = c.mentions.ExtractMentions(question, snapshot)
		}
	}

	if profile != nil {
		cluster := DeriveCluster(*profile)
		qc.cluster = &cluster
		qc.clusterHash = ClusterHash(cluster)
	}

	return qc
}

// probes returns the tiers to consult in cascade order. The first probe is
// also the frequency key of the question.
func (qc questionContext) probes(includeQuestion bool) []tierProbe {
	probes := make([]tierProbe, 0, 3)

	if qc.comparison && len(qc.mentions) >= 2 {
		key := "comparison:" + strings.Join(qc.mentions, ",")
		if includeQuestion {
			key += "|" + qc.normalized
		}
		probes = append(probes, tierProbe{tier: domain.TierComparison, key: key})
	}

	if qc.clusterHash != "" {
		probes = append(probes, tierProbe{
			tier: domain.TierCluster,
			key:  "cluster:" + qc.clusterHash + "|" + qc.normalized,
		})
	}

	probes = append(probes, tierProbe{tier: domain.TierFAQ, key: "faq:" + qc.normalized})
	return probes
}

// Lookup returns a live cached answer for the question, consulting the
// comparison, cluster and FAQ tiers in that order. Store failures count as
// misses.
func (c *ResponseCache) Lookup(ctx context.Context, question string, profile *domain.UserProfile) (*domain.CacheEntry, bool) {
	qc := c.analyze(ctx, question, profile)
	if qc.normalized == "" {
		return nil, false
	}

	now := c.now()
	for _, probe := range qc.probes(c.cfg.ComparisonKeyIncludesQuestion) {
		entry, err := c.store.FindEntry(ctx, probe.tier, probe.key, now)
		if err != nil {
			if !errors.Is(err, domain.ErrCacheMiss) {
				c.logger.Warn().Err(err).Str("tier", string(probe.tier)).Msg("cache read failed, treating as miss")
			}
			continue
		}
		if !entry.IsLive(now) {
			continue
		}

		c.logger.Debug().
			Str("tier", string(probe.tier)).
			Str("key", probe.key).
			Int64("hits", entry.HitCount).
			Msg("cache hit")

		c.recordHit(entry.ID)
		return entry, true
	}

	c.logger.Debug().Str("question", qc.normalized).Msg("cache miss")
	return nil, false
}

// recordHit increments the entry hit counter without blocking the caller
func (c *ResponseCache) recordHit(id string) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HitUpdateTimeout)
		defer cancel()

		if err := c.store.IncrementHits(ctx, id); err != nil {
			c.logger.Debug().Err(err).Str("id", id).Msg("hit count update failed")
		}
	}()
}

// Close waits for pending hit count updates
func (c *ResponseCache) Close() {
	c.pending.Wait()
}
