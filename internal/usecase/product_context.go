package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suppchat/backend/internal/domain"
)

// Keys of catalog-derived data in the byte cache. Everything under
// catalogKeyPrefix is dropped when the catalog refreshes.
const (
	catalogKeyPrefix  = "catalog:"
	productContextKey = catalogKeyPrefix + "context"
)

const defaultMaxBenefits = 3

// ProductContextConfig holds configuration for the rendered product context
type ProductContextConfig struct {
	TTL         time.Duration
	MaxBenefits int
}

// ProductContextService renders the catalog into the compact text block
// used when building prompts, and caches the result until the next refresh.
type ProductContextService struct {
	catalog SnapshotProvider
	cache   domain.CacheRepository
	logger  zerolog.Logger
	cfg     ProductContextConfig
}

// NewProductContextService creates a new product context renderer
func NewProductContextService(
	catalog SnapshotProvider,
	cache domain.CacheRepository,
	logger zerolog.Logger,
	cfg ProductContextConfig,
) *ProductContextService {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultSnapshotTTL
	}
	if cfg.MaxBenefits <= 0 {
		cfg.MaxBenefits = defaultMaxBenefits
	}

	return &ProductContextService{
		catalog: catalog,
		cache:   cache,
		logger:  logger.With().Str("component", "product-context").Logger(),
		cfg:     cfg,
	}
}

// Render returns the product context, from cache when possible
func (s *ProductContextService) Render(ctx context.Context) (string, error) {
	if cached, err := s.cache.Get(ctx, productContextKey); err == nil {
		return string(cached), nil
	}

	snapshot, err := s.catalog.GetSnapshot(ctx, false)
	if err != nil {
		return "", err
	}

	rendered := RenderProductContext(snapshot, s.cfg.MaxBenefits)
	if err := s.cache.Set(ctx, productContextKey, []byte(rendered), s.cfg.TTL); err != nil {
		s.logger.Warn().Err(err).Msg("product context cache write failed")
	}
	return rendered, nil
}

// Invalidate drops every catalog-derived cache entry. Registered as a
// catalog refresh listener.
func (s *ProductContextService) Invalidate(ctx context.Context, snapshot *domain.CatalogSnapshot) {
	if err := s.cache.DeleteByPrefix(ctx, catalogKeyPrefix); err != nil {
		s.logger.Warn().Err(err).Msg("product context invalidation failed")
		return
	}
	s.logger.Debug().Int("items", snapshot.Len()).Msg("product context invalidated")
}

// RenderProductContext formats one line per item, followed by its first
// benefits when the item was enriched
func RenderProductContext(snapshot *domain.CatalogSnapshot, maxBenefits int) string {
	if snapshot.Len() == 0 {
		return ""
	}

	var b strings.Builder
	for _, item := range snapshot.Items {
		fmt.Fprintf(&b, "- %s (%s): %s", item.Title, item.Handle, formatPrice(item.Price, item.Currency))
		if item.Available {
			b.WriteString(", en stock")
		} else {
			b.WriteString(", en rupture")
		}
		b.WriteByte('\n')

		if item.Content != nil && len(item.Content.Benefits) > 0 {
			benefits := item.Content.Benefits
			if len(benefits) > maxBenefits {
				benefits = benefits[:maxBenefits]
			}
			b.WriteString("  Bienfaits: ")
			b.WriteString(strings.Join(benefits, "; "))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func formatPrice(price float64, currency string) string {
	formatted := strconv.FormatFloat(price, 'f', 2, 64)
	if currency == "" {
		return formatted
	}
	return formatted + " " + currency
}
