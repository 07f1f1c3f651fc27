package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/suppchat/backend/internal/domain"
)

// comparisonQuestionType tags entries of the comparison tier
const comparisonQuestionType = "comparison"

// supplementKeywords mark FAQ questions about products. Matched as prefixes
// of normalized tokens.
var supplementKeywords = []string{
	"vitamin", "mineral", "complement", "supplement", "magnesium", "zinc",
	"omega", "collagen", "probiotiq", "probiotic", "protein", "whey", "gelule",
	"capsule", "comprime", "posologie", "dosage", "cure",
	"iron", "calcium", "spirulin", "curcum", "ashwagandha", "melatonin",
	"ingredient", "composition",
}

// healthKeywords mark FAQ questions about health topics
var healthKeywords = []string{
	"sante", "health", "sommeil", "sleep", "stress", "anxie", "fatigue",
	"energie", "energy", "digestion", "immunit", "immune", "douleur", "pain",
	"articulation", "joint", "peau", "skin", "cheveux", "hair", "coeur", "heart",
	"tension", "poids", "weight", "grossesse", "pregnan", "cholesterol",
	"diabet", "muscle", "recuperation", "recovery", "symptom", "carence",
	"deficien",
}

// RecordOccurrence reports an answer produced for a question. The question
// is counted under its most specific key and promoted into the matching
// tier once seen PromotionThreshold times. Failures are logged, never
// returned: caching is best-effort.
func (c *ResponseCache) RecordOccurrence(
	ctx context.Context,
	question, response string,
	profile *domain.UserProfile,
	products []domain.ProductRef,
) {
	if strings.TrimSpace(response) == "" {
		return
	}

	qc := c.analyze(ctx, question, profile)
	if qc.normalized == "" {
		return
	}

	probe := qc.probes(c.cfg.ComparisonKeyIncludesQuestion)[0]
	now := c.now()
	occ := domain.Occurrence{
		Key:          probe.key,
		Tier:         probe.tier,
		ResponseText: response,
		Products:     products,
		At:           now,
	}

	record, err := c.store.RecordFrequency(ctx, occ)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", probe.key).Msg("frequency update failed")
		return
	}

	if record.OccurrenceCount < c.cfg.PromotionThreshold {
		c.logger.Debug().Str("key", probe.key).Int64("count", record.OccurrenceCount).Msg("question tracked")
		return
	}

	_, err = c.store.FindEntry(ctx, probe.tier, probe.key, now)
	switch {
	case err == nil:
		// Already promoted and still live
		return
	case !errors.Is(err, domain.ErrCacheMiss):
		c.logger.Warn().Err(err).Str("key", probe.key).Msg("cache read failed, skipping promotion")
		return
	}

	if record.Promoted() {
		// The promoted entry expired: the key starts a new cycle
		record, err = c.store.ResetFrequency(ctx, occ)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", probe.key).Msg("frequency reset failed")
			return
		}
		if record.OccurrenceCount < c.cfg.PromotionThreshold {
			return
		}
	}

	c.promote(ctx, qc, probe, record, now)
}

// promote writes the tier entry implied by the probe, using the most
// recently seen response and products
func (c *ResponseCache) promote(ctx context.Context, qc questionContext, probe tierProbe, record *domain.FrequencyRecord, now time.Time) {
	entry := &domain.CacheEntry{
		ID:                 uuid.NewString(),
		Tier:               probe.tier,
		Key:                probe.key,
		NormalizedQuestion: qc.normalized,
		ResponseText:       record.LastResponseText,
		Products:           record.LastProducts,
		CreatedAt:          now,
		UpdatedAt:          now,
		ExpiresAt:          now.Add(c.cfg.EntryTTL),
	}

	switch probe.tier {
	case domain.TierComparison:
		entry.Comparison = &domain.ComparisonDetails{
			Handles:      append([]string(nil), qc.mentions...),
			QuestionType: comparisonQuestionType,
		}
	case domain.TierCluster:
		entry.Cluster = &domain.ClusterDetails{
			ClusterHash: qc.clusterHash,
			Cluster:     *qc.cluster,
		}
	case domain.TierFAQ:
		entry.FAQ = &domain.FAQDetails{Category: CategorizeFAQ(qc.normalized)}
	}

	if err := entry.Validate(); err != nil {
		c.logger.Error().Err(err).Str("key", probe.key).Msg("refusing to promote invalid entry")
		return
	}

	if err := c.store.SaveEntry(ctx, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", probe.key).Msg("promotion write failed")
		return
	}
	if err := c.store.MarkPromoted(ctx, probe.key, now); err != nil {
		c.logger.Warn().Err(err).Str("key", probe.key).Msg("promotion mark failed")
	}

	c.logger.Info().
		Str("tier", string(probe.tier)).
		Str("key", probe.key).
		Int64("count", record.OccurrenceCount).
		Msg("question promoted")
}

// CategorizeFAQ tags a normalized question as supplement, health or general
func CategorizeFAQ(normalized string) domain.FAQCategory {
	tokens := strings.Fields(normalized)
	if hasKeywordPrefix(tokens, supplementKeywords) {
		return domain.FAQCategorySupplement
	}
	if hasKeywordPrefix(tokens, healthKeywords) {
		return domain.FAQCategoryHealth
	}
	return domain.FAQCategoryGeneral
}

func hasKeywordPrefix(tokens, keywords []string) bool {
	for _, token := range tokens {
		for _, keyword := range keywords {
			if strings.HasPrefix(token, keyword) {
				return true
			}
		}
	}
	return false
}
