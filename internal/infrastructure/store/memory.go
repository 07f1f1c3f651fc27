package store

import (
	"context"
	"sync"
	"time"

	"github.com/suppchat/backend/internal/domain"
)

// MemoryStore is an in-process answer store for development and tests.
// Entries are keyed by (tier, key); saving an existing key replaces it.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.CacheEntry
	byID    map[string]string
	records map[string]*domain.FrequencyRecord
}

// NewMemoryStore creates a new empty in-memory answer store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*domain.CacheEntry),
		byID:    make(map[string]string),
		records: make(map[string]*domain.FrequencyRecord),
	}
}

func entryKey(tier domain.Tier, key string) string {
	return string(tier) + "|" + key
}

// FindEntry returns the live entry stored under (tier, key)
func (s *MemoryStore) FindEntry(ctx context.Context, tier domain.Tier, key string, now time.Time) (*domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[entryKey(tier, key)]
	if !ok || !entry.ExpiresAt.After(now) {
		return nil, domain.ErrCacheMiss
	}
	return entry.Clone(), nil
}

// SaveEntry validates and upserts an entry
func (s *MemoryStore) SaveEntry(ctx context.Context, entry *domain.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey(entry.Tier, entry.Key)
	if previous, ok := s.entries[k]; ok {
		delete(s.byID, previous.ID)
	}
	s.entries[k] = entry.Clone()
	s.byID[entry.ID] = k
	return nil
}

// IncrementHits adds one to the entry hit counter
func (s *MemoryStore) IncrementHits(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.byID[id]
	if !ok {
		return domain.ErrCacheMiss
	}
	s.entries[k].HitCount++
	return nil
}

// RecordFrequency creates the record with count 1 or increments it
func (s *MemoryStore) RecordFrequency(ctx context.Context, occ domain.Occurrence) (*domain.FrequencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[occ.Key]
	if !ok {
		record = &domain.FrequencyRecord{Key: occ.Key, Tier: occ.Tier, CreatedAt: occ.At}
		s.records[occ.Key] = record
	}
	record.OccurrenceCount++
	record.LastResponseText = occ.ResponseText
	record.LastProducts = append([]domain.ProductRef(nil), occ.Products...)
	record.UpdatedAt = occ.At
	return record.Clone(), nil
}

// ResetFrequency restarts the counter at 1 with the latest response
func (s *MemoryStore) ResetFrequency(ctx context.Context, occ domain.Occurrence) (*domain.FrequencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[occ.Key]
	if !ok {
		record = &domain.FrequencyRecord{Key: occ.Key, Tier: occ.Tier, CreatedAt: occ.At}
		s.records[occ.Key] = record
	}
	record.OccurrenceCount = 1
	record.PromotedAt = time.Time{}
	record.LastResponseText = occ.ResponseText
	record.LastProducts = append([]domain.ProductRef(nil), occ.Products...)
	record.UpdatedAt = occ.At
	return record.Clone(), nil
}

// MarkPromoted records that the key's current cycle produced a tier entry
func (s *MemoryStore) MarkPromoted(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return domain.ErrRecordNotFound
	}
	record.PromotedAt = at
	return nil
}

// GetFrequency returns the record stored under key
func (s *MemoryStore) GetFrequency(ctx context.Context, key string) (*domain.FrequencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return record.Clone(), nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}
