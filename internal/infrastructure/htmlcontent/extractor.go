package htmlcontent

import (
	"fmt"
	"io"
	"strings"

	"github.com/suppchat/backend/internal/domain"
	"github.com/suppchat/backend/internal/platform/textfold"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const defaultMaxItemsPerSection = 8

type section int

const (
	sectionNone section = iota
	sectionBenefits
	sectionAudience
	sectionUsage
	sectionContraindications
)

// sectionLabels maps folded heading words to sections. Checked in order:
// warnings often mention usage ("ne pas depasser la dose") so they come first.
var sectionLabels = []struct {
	section  section
	keywords []string
}{
	{sectionContraindications, []string{
		"contre indication", "contreindication", "contraindication", "precaution",
		"avertissement", "mise en garde", "mises en garde", "warning", "deconseille", "ne pas",
		"side effect", "effets indesirables",
	}},
	{sectionUsage, []string{
		"conseils d utilisation", "mode d emploi", "utilisation", "posologie",
		"dosage", "how to use", "directions", "usage", "comment prendre", "suggested use",
	}},
	{sectionAudience, []string{
		"pour qui", "public", "destine", "ideal pour", "recommande pour", "convient",
		"who is it for", "target", "suitable for",
	}},
	{sectionBenefits, []string{
		"bienfait", "benefice", "benefit", "avantage", "atout", "proprietes",
		"pourquoi", "why", "actions", "key features",
	}},
}

// skippedTags never contain product sections
var skippedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Form:     true,
}

var headingTags = map[atom.Atom]bool{
	atom.H2:      true,
	atom.H3:      true,
	atom.H4:      true,
	atom.H5:      true,
	atom.H6:      true,
	atom.Summary: true,
	atom.Dt:      true,
}

// Extractor pulls benefits, audience, usage and contraindications out of a
// product detail page by walking its document tree.
type Extractor struct {
	maxItemsPerSection int
}

// NewExtractor creates a new content extractor
func NewExtractor() *Extractor {
	return &Extractor{maxItemsPerSection: defaultMaxItemsPerSection}
}

// Extract parses the document and returns the sections it found. A page
// without recognizable sections yields empty content, not an error.
func (e *Extractor) Extract(r io.Reader) (*domain.ProductContent, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	w := &walker{
		content:  &domain.ProductContent{},
		seen:     make(map[section]map[string]bool),
		maxItems: e.maxItemsPerSection,
	}
	w.walk(doc)
	return w.content, nil
}

// walker tracks the section the last heading opened
type walker struct {
	content  *domain.ProductContent
	current  section
	seen     map[section]map[string]bool
	maxItems int
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if skippedTags[n.DataAtom] {
			return
		}

		switch {
		case headingTags[n.DataAtom]:
			w.current = classify(nodeText(n))
			return
		case n.DataAtom == atom.Li || n.DataAtom == atom.Dd:
			w.add(nodeText(n))
			return
		case n.DataAtom == atom.P:
			w.paragraph(n)
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// paragraph handles "<p><strong>Label :</strong> text</p>" as an inline
// heading followed by an item, and plain paragraphs as items
func (w *walker) paragraph(n *html.Node) {
	label := leadingEmphasis(n)
	if label == nil {
		w.add(nodeText(n))
		return
	}

	labelText := nodeText(label)
	var rest strings.Builder
	for c := label.NextSibling; c != nil; c = c.NextSibling {
		collectText(c, &rest)
	}
	restText := strings.TrimLeft(collapse(rest.String()), ":- ")

	if sec := classify(labelText); sec != sectionNone {
		w.current = sec
		w.add(restText)
		return
	}
	if restText == "" {
		// A bold-only paragraph with an unknown label closes the section
		w.current = sectionNone
		return
	}
	w.add(nodeText(n))
}

func (w *walker) add(text string) {
	if w.current == sectionNone || text == "" {
		return
	}

	key := textfold.Words(text)
	if key == "" {
		return
	}
	if w.seen[w.current] == nil {
		w.seen[w.current] = make(map[string]bool)
	}
	if w.seen[w.current][key] {
		return
	}

	target := w.target()
	if len(*target) >= w.maxItems {
		return
	}
	w.seen[w.current][key] = true
	*target = append(*target, text)
}

func (w *walker) target() *[]string {
	switch w.current {
	case sectionBenefits:
		return &w.content.Benefits
	case sectionAudience:
		return &w.content.TargetAudience
	case sectionUsage:
		return &w.content.Usage
	default:
		return &w.content.Contraindications
	}
}

// classify maps a heading to a section
func classify(label string) section {
	folded := " " + textfold.Words(label) + " "
	if strings.TrimSpace(folded) == "" {
		return sectionNone
	}
	for _, entry := range sectionLabels {
		for _, keyword := range entry.keywords {
			if strings.Contains(folded, " "+keyword) {
				return entry.section
			}
		}
	}
	return sectionNone
}

// leadingEmphasis returns the strong/b element opening the paragraph, if any
func leadingEmphasis(p *html.Node) *html.Node {
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			continue
		}
		if c.Type == html.ElementNode && (c.DataAtom == atom.Strong || c.DataAtom == atom.B) {
			return c
		}
		return nil
	}
	return nil
}
