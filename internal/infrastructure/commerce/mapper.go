package commerce

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/suppchat/backend/internal/domain"
	"github.com/suppchat/backend/internal/infrastructure/htmlcontent"
)

// productsResponse is the body of the products.json listing
type productsResponse struct {
	Products []product `json:"products"`
}

type product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	BodyHTML    string    `json:"body_html"`
	ProductType string    `json:"product_type"`
	Vendor      string    `json:"vendor"`
	Tags        tagList   `json:"tags"`
	Variants    []variant `json:"variants"`
}

type variant struct {
	Price     flexiblePrice `json:"price"`
	Available *bool         `json:"available"`
}

// tagList accepts both "a, b" and ["a", "b"]
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}

	if data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*t = list
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*t = strings.Split(joined, ",")
	return nil
}

// flexiblePrice accepts "14.90" as well as 14.9. ok is false when absent
// or unparseable.
type flexiblePrice struct {
	value float64
	ok    bool
}

func (p *flexiblePrice) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	p.value, p.ok = value, true
	return nil
}

// mapProducts converts listing products to catalog items, skipping
// products without a handle
func mapProducts(products []product, currency string) []domain.CatalogItem {
	items := make([]domain.CatalogItem, 0, len(products))
	for _, p := range products {
		if strings.TrimSpace(p.Handle) == "" {
			continue
		}
		items = append(items, mapProduct(p, currency))
	}
	return items
}

// mapProduct converts one listing product to our domain CatalogItem
func mapProduct(p product, currency string) domain.CatalogItem {
	price, available := summarizeVariants(p.Variants)

	return domain.CatalogItem{
		Handle:      strings.TrimSpace(p.Handle),
		Title:       strings.TrimSpace(p.Title),
		Price:       price,
		Currency:    currency,
		Available:   available,
		Collections: cleanTags(p.Tags),
		ProductType: strings.TrimSpace(p.ProductType),
		Description: htmlcontent.PlainText(p.BodyHTML),
	}
}

// summarizeVariants returns the lowest variant price and whether any
// variant can be bought. A variant without availability data counts as
// available.
func summarizeVariants(variants []variant) (float64, bool) {
	var (
		lowest    float64
		havePrice bool
		available bool
	)

	for _, v := range variants {
		if v.Available == nil || *v.Available {
			available = true
		}
		if v.Price.ok && (!havePrice || v.Price.value < lowest) {
			lowest = v.Price.value
			havePrice = true
		}
	}
	return lowest, available
}

func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var cleaned []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		cleaned = append(cleaned, tag)
	}
	return cleaned
}
