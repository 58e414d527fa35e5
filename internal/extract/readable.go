package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var fallbackPageURL = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}

// findReadable returns the paragraphs of the page's main readable content.
// It is opt-in: on list pages it tends to pick up introductory prose.
func findReadable(doc *goquery.Document) ([]Fragment, error) {
	page, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("rendering document: %w", err)
	}

	pageURL := doc.Url
	if pageURL == nil {
		pageURL = fallbackPageURL
	}
	article, err := readability.FromReader(strings.NewReader(page), pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}
	if strings.TrimSpace(article.Content) == "" {
		return nil, nil
	}

	content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("parsing readable content: %w", err)
	}

	var out []Fragment
	content.Find("p").Each(func(_ int, p *goquery.Selection) {
		f := fragmentOf(p, doc.Url)
		if f.Text != "" {
			out = append(out, f)
		}
	})
	return out, nil
}
