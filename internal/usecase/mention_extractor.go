package usecase

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/suppchat/backend/internal/domain"
	"github.com/suppchat/backend/internal/platform/textfold"
)

// minTitleTermLength is the shortest title token used as a search term
const minTitleTermLength = 3

// minPrefixTermLength is the shortest word allowed to match the start of a
// longer word ("probiotique" in "probiotiques"). Shorter words must match
// whole so "fer" does not fire on "ferments".
const minPrefixTermLength = 5

// abbreviationExpansions maps a catalog token to the other ways customers
// refer to it. Keys and values are folded (lowercase, no diacritics).
var abbreviationExpansions = map[string][]string{
	"d3":          {"vitamine d", "vitamin d", "vit d", "cholecalciferol"},
	"d":           {"vitamine d", "vitamin d", "vit d"},
	"c":           {"vitamine c", "vitamin c", "vit c", "acide ascorbique", "ascorbic acid"},
	"b12":         {"vitamine b12", "vitamin b12", "cobalamine", "methylcobalamine"},
	"b9":          {"vitamine b9", "folate", "acide folique", "folic acid"},
	"k2":          {"vitamine k2", "vitamin k2", "menaquinone", "mk7", "mk 7"},
	"b":           {"vitamines b", "vitamin b", "complexe b", "b complex"},
	"omega":       {"omega 3", "omega3", "epa", "dha", "huile de poisson", "fish oil"},
	"magnesium":   {"magnesium"},
	"zinc":        {"zinc", "zn"},
	"fer":         {"fer", "iron"},
	"collagene":   {"collagen", "collagene"},
	"curcuma":     {"curcumine", "curcumin", "turmeric"},
	"probiotique": {"probiotiques", "probiotic", "ferments lactiques"},
	"spiruline":   {"spirulina"},
	"ashwagandha": {"withania"},
	"melatonine":  {"melatonin"},
	"whey":        {"proteine de lactoserum", "whey protein"},
	"coq10":       {"coenzyme q10", "ubiquinol", "q10"},
}

// genericProductTerms are title tokens too common in a supplement catalog
// to identify a single product
var genericProductTerms = map[string]bool{
	"vitamine": true, "vitamin": true, "vitamines": true, "vitamins": true,
	"complexe": true, "complex": true, "formule": true, "formula": true,
	"capsules": true, "gelules": true, "comprimes": true, "tablets": true,
	"poudre": true, "powder": true, "bio": true, "organic": true, "naturel": true,
	"natural": true, "plus": true, "premium": true, "forte": true, "extra": true,
	"pack": true, "cure": true, "mois": true, "jours": true, "liquide": true,
	"huile": true, "extrait": true, "extract": true, "marine": true,
}

// comparisonPatterns detect a question comparing products.
// Matched against folded, punctuation-free text.
var comparisonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bdifferences? (entre|between)\b`),
	regexp.MustCompile(`\bwhat s the difference\b`),
	regexp.MustCompile(`\bcompar(e|er|ez|es|aison|ing|ison)\b`),
	regexp.MustCompile(`\bversus\b`),
	regexp.MustCompile(`\bvs\b`),
	regexp.MustCompile(`\bwhich (one )?(is )?better\b`),
	regexp.MustCompile(`\bbetter than\b`),
	regexp.MustCompile(`\b(lequel|laquelle|lesquels) (est|sont)? ?(le |la )?(meilleur|meilleure|mieux)\b`),
	regexp.MustCompile(`\b(meilleur|meilleure|mieux) que\b`),
	regexp.MustCompile(`\bmieux entre\b`),
	regexp.MustCompile(`\bou plutot\b`),
	regexp.MustCompile(`\bplutot que\b`),
}

// productTerms is the search-term set of one catalog item
type productTerms struct {
	handle string
	terms  []string
}

// MentionExtractor identifies which catalog items a question refers to.
// Term sets are rebuilt only when a new snapshot is passed in.
type MentionExtractor struct {
	mu       sync.Mutex
	snapshot *domain.CatalogSnapshot
	index    []productTerms
}

// NewMentionExtractor creates a new mention extractor
func NewMentionExtractor() *MentionExtractor {
	return &MentionExtractor{}
}

// ExtractMentions returns the sorted, deduplicated handles of the items
// mentioned in text.
func (m *MentionExtractor) ExtractMentions(text string, snapshot *domain.CatalogSnapshot) []string {
	if text == "" || snapshot.Len() == 0 {
		return nil
	}

	// Leading and trailing spaces anchor terms at word starts
	haystack := " " + textfold.Words(text) + " "

	seen := make(map[string]bool)
	var mentions []string
	for _, product := range m.termsFor(snapshot) {
		if seen[product.handle] {
			continue
		}
		for _, term := range product.terms {
			if mentionsTerm(haystack, term) {
				seen[product.handle] = true
				mentions = append(mentions, product.handle)
				break
			}
		}
	}

	sort.Strings(mentions)
	return mentions
}

// mentionsTerm reports whether term occurs in haystack anchored at a word
// start. The last word of the term decides whether a prefix match is enough.
func mentionsTerm(haystack, term string) bool {
	lastWord := term[strings.LastIndexByte(term, ' ')+1:]
	if len(lastWord) >= minPrefixTermLength {
		return strings.Contains(haystack, " "+term)
	}
	return strings.Contains(haystack, " "+term+" ")
}

// termsFor returns the term index for snapshot, rebuilding it on change
func (m *MentionExtractor) termsFor(snapshot *domain.CatalogSnapshot) []productTerms {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot != snapshot {
		m.index = buildTermIndex(snapshot)
		m.snapshot = snapshot
	}
	return m.index
}

func buildTermIndex(snapshot *domain.CatalogSnapshot) []productTerms {
	index := make([]productTerms, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		if item.Handle == "" {
			continue
		}
		index = append(index, productTerms{
			handle: item.Handle,
			terms:  searchTerms(item),
		})
	}
	return index
}

// searchTerms builds the term set of one item from its title tokens, the
// abbreviation table and its handle segments.
func searchTerms(item domain.CatalogItem) []string {
	set := make(map[string]bool)

	addToken := func(token string) {
		if expansions, ok := abbreviationExpansions[token]; ok {
			for _, e := range expansions {
				set[e] = true
			}
			if len(token) >= 2 {
				set[token] = true
			}
		}
		if len(token) < minTitleTermLength || genericProductTerms[token] || questionStopWords[token] || isNumeric(token) {
			return
		}
		set[token] = true
	}

	for _, token := range strings.Fields(textfold.Words(item.Title)) {
		addToken(token)
	}

	for _, segment := range strings.FieldsFunc(textfold.Fold(item.Handle), func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' '
	}) {
		addToken(segment)
	}

	terms := make([]string, 0, len(set))
	for term := range set {
		terms = append(terms, term)
	}
	// Longest first so the most specific term decides
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	return terms
}

// HasComparisonIntent reports whether the question asks to compare products
func HasComparisonIntent(text string) bool {
	words := textfold.Words(text)
	if words == "" {
		return false
	}
	for _, pattern := range comparisonPatterns {
		if pattern.MatchString(words) {
			return true
		}
	}
	return false
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
