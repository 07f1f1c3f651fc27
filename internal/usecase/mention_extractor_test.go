package usecase

import (
	"reflect"
	"testing"
	"time"

	"github.com/suppchat/backend/internal/domain"
)

func testSnapshot(items ...domain.CatalogItem) *domain.CatalogSnapshot {
	return &domain.CatalogSnapshot{Items: items, FetchedAt: time.Now()}
}

var (
	itemVitaminD3 = domain.CatalogItem{Handle: "vitamine-d3", Title: "Vitamine D3", Price: 14.9, Available: true}
	itemMagnesium = domain.CatalogItem{Handle: "magnesium", Title: "Magnesium Bisglycinate", Price: 19.9, Available: true}
	itemOmega3    = domain.CatalogItem{Handle: "omega-3-epax", Title: "Oméga 3 EPAX", Price: 24.5, Available: true}
	itemIron      = domain.CatalogItem{Handle: "fer-bisglycinate", Title: "Fer bisglycinate", Price: 12, Available: true}
	itemProbiotic = domain.CatalogItem{Handle: "probiotique-20-souches", Title: "Probiotique 20 souches", Price: 29, Available: true}
)

func TestExtractMentions(t *testing.T) {
	extractor := NewMentionExtractor()
	snapshot := testSnapshot(itemVitaminD3, itemMagnesium, itemOmega3, itemIron, itemProbiotic)

	testCases := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "comparison question with two products",
			text: "quelle est la différence entre vitamine d3 et magnesium ?",
			want: []string{"magnesium", "vitamine-d3"},
		},
		{
			name: "abbreviation expansion",
			text: "Is fish oil good for the heart?",
			want: []string{"omega-3-epax"},
		},
		{
			name: "handle segment and diacritics",
			text: "Le magnésium aide-t-il à dormir ?",
			want: []string{"magnesium"},
		},
		{
			name: "short term needs a whole word",
			text: "Les ferments lactiques sont-ils utiles ?",
			want: []string{"probiotique-20-souches"},
		},
		{
			name: "iron by english name",
			text: "do you sell iron supplements",
			want: []string{"fer-bisglycinate"},
		},
		{
			name: "plural matches by prefix",
			text: "les probiotiques en cure",
			want: []string{"probiotique-20-souches"},
		},
		{
			name: "no product",
			text: "Quels sont vos délais de livraison ?",
			want: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractor.ExtractMentions(tc.text, snapshot)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ExtractMentions(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestMentionsTerm(t *testing.T) {
	testCases := []struct {
		name     string
		haystack string
		term     string
		want     bool
	}{
		{"short term as whole word", " du fer le soir ", "fer", true},
		{"short term inside a longer word", " les ferments lactiques ", "fer", false},
		{"short term at word end", " un enfer ", "fer", false},
		{"long term as word prefix", " les probiotiques ", "probiotique", true},
		{"long term inside a word", " supermagnesium ", "magnesium", false},
		{"multi word term", " huile de poisson bio ", "huile de poisson", true},
		{"multi word short tail", " vitamine dx ", "vitamine d", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mentionsTerm(tc.haystack, tc.term); got != tc.want {
				t.Errorf("mentionsTerm(%q, %q) = %v, want %v", tc.haystack, tc.term, got, tc.want)
			}
		})
	}
}

func TestExtractMentions_DeterministicAcrossCatalogOrder(t *testing.T) {
	text := "vitamine d3, magnésium ou oméga 3 ?"
	forward := testSnapshot(itemVitaminD3, itemMagnesium, itemOmega3)
	backward := testSnapshot(itemOmega3, itemMagnesium, itemVitaminD3, itemMagnesium)

	extractor := NewMentionExtractor()
	a := extractor.ExtractMentions(text, forward)
	b := extractor.ExtractMentions(text, backward)

	want := []string{"magnesium", "omega-3-epax", "vitamine-d3"}
	if !reflect.DeepEqual(a, want) {
		t.Errorf("forward = %v, want %v", a, want)
	}
	if !reflect.DeepEqual(b, want) {
		t.Errorf("backward = %v, want %v", b, want)
	}
}

func TestExtractMentions_EmptyInputs(t *testing.T) {
	extractor := NewMentionExtractor()

	if got := extractor.ExtractMentions("", testSnapshot(itemMagnesium)); got != nil {
		t.Errorf("empty text = %v, want nil", got)
	}
	if got := extractor.ExtractMentions("magnesium", nil); got != nil {
		t.Errorf("nil snapshot = %v, want nil", got)
	}
}

func TestExtractMentions_RebuildsIndexForNewSnapshot(t *testing.T) {
	extractor := NewMentionExtractor()

	first := testSnapshot(itemMagnesium)
	if got := extractor.ExtractMentions("vitamine d3", first); got != nil {
		t.Fatalf("first snapshot mentions = %v, want nil", got)
	}

	second := testSnapshot(itemMagnesium, itemVitaminD3)
	got := extractor.ExtractMentions("vitamine d3", second)
	if !reflect.DeepEqual(got, []string{"vitamine-d3"}) {
		t.Errorf("second snapshot mentions = %v, want [vitamine-d3]", got)
	}
}

func TestHasComparisonIntent(t *testing.T) {
	testCases := []struct {
		text string
		want bool
	}{
		{"quelle est la différence entre vitamine d3 et magnesium ?", true},
		{"What's the difference between zinc and iron?", true},
		{"Peux-tu comparer ces deux produits ?", true},
		{"whey vs caseine", true},
		{"Magnesium versus zinc", true},
		{"Which is better for sleep, magnesium or melatonin?", true},
		{"Lequel est le meilleur pour la peau ?", true},
		{"collagène marin ou plutôt bovin ?", true},
		{"Comment prendre la vitamine D ?", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			if got := HasComparisonIntent(tc.text); got != tc.want {
				t.Errorf("HasComparisonIntent(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}
