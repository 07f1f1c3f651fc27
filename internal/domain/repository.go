package domain

import (
	"context"
	"io"
	"time"
)

// CacheRepository defines the interface for byte-oriented caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// CatalogSource defines the paginated commerce catalog listing
type CatalogSource interface {
	FetchPage(ctx context.Context, cursor string) (*CatalogPage, error)
}

// DetailSource fetches the public detail document of a product
type DetailSource interface {
	FetchProductPage(ctx context.Context, handle string) ([]byte, error)
}

// ContentExtractor turns a detail document into structured sections
type ContentExtractor interface {
	Extract(r io.Reader) (*ProductContent, error)
}

// EntryStore persists servable cache entries of every tier
type EntryStore interface {
	// FindEntry returns the first entry with the tier and key whose expiry is
	// after now, or ErrCacheMiss.
	FindEntry(ctx context.Context, tier Tier, key string, now time.Time) (*CacheEntry, error)
	SaveEntry(ctx context.Context, entry *CacheEntry) error
	IncrementHits(ctx context.Context, id string) error
}

// FrequencyStore persists occurrence counters
type FrequencyStore interface {
	// RecordFrequency atomically creates the record with count 1 or
	// increments it, overwriting the last seen response, and returns the
	// post-update record.
	RecordFrequency(ctx context.Context, occ Occurrence) (*FrequencyRecord, error)
	// ResetFrequency restarts the counter at 1 with the given response and
	// clears PromotedAt.
	ResetFrequency(ctx context.Context, occ Occurrence) (*FrequencyRecord, error)
	// MarkPromoted stamps the record once its tier entry was written, or
	// returns ErrRecordNotFound.
	MarkPromoted(ctx context.Context, key string, at time.Time) error
	GetFrequency(ctx context.Context, key string) (*FrequencyRecord, error)
}

// AnswerStore is the document store behind the cache tiers
type AnswerStore interface {
	EntryStore
	FrequencyStore
	Close() error
}
