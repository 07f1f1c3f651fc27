package htmlcontent

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockTags separate words when flattening markup to text
var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true,
	atom.Ol: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.Table: true, atom.Section: true, atom.Article: true, atom.Dt: true,
	atom.Dd: true, atom.Blockquote: true,
}

// PlainText flattens an HTML fragment, such as a product description, to
// single-spaced text. Entities are decoded.
func PlainText(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		// The tokenizer rarely fails; fall back to the raw markup
		return collapse(markup)
	}

	var b strings.Builder
	collectText(doc, &b)
	return collapse(b.String())
}

// nodeText returns the collapsed text under n
func nodeText(n *html.Node) string {
	var b strings.Builder
	collectText(n, &b)
	return collapse(b.String())
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if skippedTags[n.DataAtom] {
			return
		}
	}

	block := n.Type == html.ElementNode && blockTags[n.DataAtom]
	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if block {
		b.WriteByte(' ')
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
