package domain

import "time"

// ProductContent holds the structured sections scraped from a product detail page
type ProductContent struct {
	Benefits          []string `json:"benefits,omitempty"`
	TargetAudience    []string `json:"targetAudience,omitempty"`
	Usage             []string `json:"usage,omitempty"`
	Contraindications []string `json:"contraindications,omitempty"`
}

// IsEmpty reports whether no section was found
func (c *ProductContent) IsEmpty() bool {
	return c == nil || len(c.Benefits)+len(c.TargetAudience)+len(c.Usage)+len(c.Contraindications) == 0
}

// CatalogItem is one product of the commerce catalog mirror
type CatalogItem struct {
	Handle      string          `json:"handle"`
	Title       string          `json:"title"`
	Price       float64         `json:"price"`
	Currency    string          `json:"currency,omitempty"`
	Available   bool            `json:"available"`
	Collections []string        `json:"collections,omitempty"`
	ProductType string          `json:"productType,omitempty"`
	Description string          `json:"description,omitempty"`
	Content     *ProductContent `json:"content,omitempty"`
}

// Ref returns the verbatim product snapshot stored alongside cached answers
func (i CatalogItem) Ref(storeURL string) ProductRef {
	ref := ProductRef{
		Handle: i.Handle,
		Title:  i.Title,
		Price:  i.Price,
	}
	if storeURL != "" {
		ref.URL = storeURL + "/products/" + i.Handle
	}
	return ref
}

// CatalogPage is one page of the paginated commerce listing.
// NextCursor is empty when no further page exists.
type CatalogPage struct {
	Items      []CatalogItem
	NextCursor string
}

// CatalogSnapshot is a complete, timestamped catalog. It is never mutated
// after being published by the synchronizer.
type CatalogSnapshot struct {
	Items     []CatalogItem `json:"items"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// Age returns how old the snapshot is at now
func (s *CatalogSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Find returns the item with the given handle
func (s *CatalogSnapshot) Find(handle string) (CatalogItem, bool) {
	for _, item := range s.Items {
		if item.Handle == handle {
			return item, true
		}
	}
	return CatalogItem{}, false
}

// Len returns the number of items, tolerating a nil snapshot
func (s *CatalogSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Handles returns the handles of every item in catalog order
func (s *CatalogSnapshot) Handles() []string {
	if s == nil {
		return nil
	}
	handles := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		handles = append(handles, item.Handle)
	}
	return handles
}
