package domain

import (
	"fmt"
	"sort"
	"time"
)

// Tier identifies one of the three cascading answer caches
type Tier string

const (
	TierComparison Tier = "comparison"
	TierCluster    Tier = "cluster"
	TierFAQ        Tier = "faq"
)

// FAQCategory is the coarse topic attached to FAQ entries
type FAQCategory string

const (
	FAQCategorySupplement FAQCategory = "supplement"
	FAQCategoryHealth     FAQCategory = "health"
	FAQCategoryGeneral    FAQCategory = "general"
)

// ProductRef is a product recommendation as it was when the answer was produced.
// It is never re-resolved against the live catalog.
type ProductRef struct {
	Handle string  `json:"handle"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	URL    string  `json:"url,omitempty"`
}

// ComparisonDetails is the payload of a comparison-tier entry
type ComparisonDetails struct {
	Handles      []string `json:"handles"`
	QuestionType string   `json:"questionType"`
}

// ClusterDetails is the payload of a cluster-tier entry
type ClusterDetails struct {
	ClusterHash string         `json:"clusterHash"`
	Cluster     ProfileCluster `json:"cluster"`
}

// FAQDetails is the payload of a FAQ-tier entry
type FAQDetails struct {
	Category FAQCategory `json:"category"`
}

// CacheEntry is a servable cached answer. Tier selects which one of
// Comparison, Cluster or FAQ is set.
type CacheEntry struct {
	ID                 string       `json:"id"`
	Tier               Tier         `json:"tier"`
	Key                string       `json:"key"`
	NormalizedQuestion string       `json:"normalizedQuestion"`
	ResponseText       string       `json:"responseText"`
	Products           []ProductRef `json:"products"`
	HitCount           int64        `json:"hitCount"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
	ExpiresAt          time.Time    `json:"expiresAt"`

	Comparison *ComparisonDetails `json:"comparison,omitempty"`
	Cluster    *ClusterDetails    `json:"cluster,omitempty"`
	FAQ        *FAQDetails        `json:"faq,omitempty"`
}

// IsLive reports whether the entry may still be served at now
func (e *CacheEntry) IsLive(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Validate checks the tier tag against its payload and the entry timestamps
func (e *CacheEntry) Validate() error {
	if e.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidEntry)
	}
	if !e.ExpiresAt.After(e.CreatedAt) {
		return fmt.Errorf("%w: expiresAt must be after createdAt", ErrInvalidEntry)
	}

	payloads := 0
	for _, set := range []bool{e.Comparison != nil, e.Cluster != nil, e.FAQ != nil} {
		if set {
			payloads++
		}
	}
	if payloads != 1 {
		return fmt.Errorf("%w: expected exactly one tier payload, got %d", ErrInvalidEntry, payloads)
	}

	switch e.Tier {
	case TierComparison:
		if e.Comparison == nil {
			return fmt.Errorf("%w: comparison tier without comparison payload", ErrInvalidEntry)
		}
		h := e.Comparison.Handles
		if len(h) < 2 {
			return fmt.Errorf("%w: comparison needs at least 2 handles", ErrInvalidEntry)
		}
		if !sort.StringsAreSorted(h) {
			return fmt.Errorf("%w: comparison handles must be sorted", ErrInvalidEntry)
		}
		for i := 1; i < len(h); i++ {
			if h[i] == h[i-1] {
				return fmt.Errorf("%w: duplicate comparison handle %q", ErrInvalidEntry, h[i])
			}
		}
	case TierCluster:
		if e.Cluster == nil || e.Cluster.ClusterHash == "" {
			return fmt.Errorf("%w: cluster tier without cluster hash", ErrInvalidEntry)
		}
	case TierFAQ:
		if e.FAQ == nil {
			return fmt.Errorf("%w: faq tier without faq payload", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidEntry, e.Tier)
	}

	return nil
}

// FrequencyRecord counts how often a normalized question context was answered
type FrequencyRecord struct {
	Key              string       `json:"key"`
	Tier             Tier         `json:"tier"`
	OccurrenceCount  int64        `json:"occurrenceCount"`
	LastResponseText string       `json:"lastResponseText"`
	LastProducts     []ProductRef `json:"lastProducts"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	// PromotedAt is set once the current cycle produced a tier entry and
	// cleared when the counter restarts. Zero means never promoted.
	PromotedAt time.Time `json:"promotedAt,omitempty"`
}

// Promoted reports whether the current cycle already wrote a tier entry
func (r *FrequencyRecord) Promoted() bool {
	return !r.PromotedAt.IsZero()
}

// Occurrence is one observed answer reported back to the frequency tracker
type Occurrence struct {
	Key          string
	Tier         Tier
	ResponseText string
	Products     []ProductRef
	At           time.Time
}

// Clone returns a deep copy so stores never hand out shared slices
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Products = append([]ProductRef(nil), e.Products...)
	if e.Comparison != nil {
		comparison := *e.Comparison
		comparison.Handles = append([]string(nil), e.Comparison.Handles...)
		c.Comparison = &comparison
	}
	if e.Cluster != nil {
		cluster := *e.Cluster
		cluster.Cluster.Conditions = append([]string(nil), e.Cluster.Cluster.Conditions...)
		c.Cluster = &cluster
	}
	if e.FAQ != nil {
		faq := *e.FAQ
		c.FAQ = &faq
	}
	return &c
}

// Clone returns a deep copy of the record
func (r *FrequencyRecord) Clone() *FrequencyRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.LastProducts = append([]ProductRef(nil), r.LastProducts...)
	return &c
}
