package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true, atom.Td: true,
	atom.Th: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Article: true, atom.Section: true,
	atom.Header: true, atom.Footer: true, atom.Table: true, atom.Ul: true,
	atom.Ol: true, atom.Dt: true, atom.Dd: true, atom.Blockquote: true,
	atom.Pre: true, atom.Time: true,
}

// NodeText returns the visible text of n with one line per block element.
// Whitespace inside a line is collapsed and blank lines are dropped.
func NodeText(n *html.Node) string {
	var b strings.Builder
	writeText(n, &b)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func writeText(n *html.Node, b *strings.Builder) {
	if n == nil {
		return
	}
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		case atom.Br:
			b.WriteByte('\n')
			return
		}
	}

	block := n.Type == html.ElementNode && blockAtoms[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}
	if block {
		b.WriteByte('\n')
	}
}

// anchorHrefs returns every anchor href under sel in document order,
// resolved against base when it is known.
func anchorHrefs(sel *goquery.Selection, base *url.URL) []string {
	var links []string
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		links = append(links, resolve(base, href))
	})
	// The selection itself may be an anchor.
	if goquery.NodeName(sel) == "a" {
		if href, ok := sel.Attr("href"); ok && strings.TrimSpace(href) != "" {
			links = append([]string{resolve(base, strings.TrimSpace(href))}, links...)
		}
	}
	return links
}

func resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// fragmentOf builds a fragment from one matched element.
func fragmentOf(sel *goquery.Selection, base *url.URL) Fragment {
	f := Fragment{
		Text:  NodeText(sel.Get(0)),
		Links: anchorHrefs(sel, base),
	}
	f.node = sel.Get(0)
	return f
}
