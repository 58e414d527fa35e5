package collect

import (
	"context"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/circolari/internal/database"
	"github.com/TobiSchelling/circolari/internal/extract"
)

const maxPerFeed = 20

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL      string
	Name     string
	Category string
}

// FeedParser turns RSS/Atom items into raw fragments.
type FeedParser struct {
	feeds  []FeedConfig
	parser *gofeed.Parser
}

// NewFeedParser creates a new FeedParser.
func NewFeedParser(feeds []FeedConfig) *FeedParser {
	return &FeedParser{feeds: feeds, parser: gofeed.NewParser()}
}

// ParseAll parses all configured feeds. A feed that fails is logged and
// skipped.
func (fp *FeedParser) ParseAll(ctx context.Context) []extract.Fragment {
	var all []extract.Fragment
	for _, fc := range fp.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		feed, err := fp.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		frags := feedFragments(feed, name, fc.Category)
		all = append(all, frags...)
		log.Printf("Parsed %d items from %s", len(frags), name)
	}
	return all
}

func feedFragments(feed *gofeed.Feed, source, category string) []extract.Fragment {
	var frags []extract.Fragment
	for _, item := range feed.Items {
		if len(frags) >= maxPerFeed {
			break
		}
		if f, ok := itemFragment(item, source, category); ok {
			frags = append(frags, f)
		}
	}
	return frags
}

// itemFragment lays an item out the way a portal row reads: title on the
// first line, then the publication date, then the text.
func itemFragment(item *gofeed.Item, source, category string) (extract.Fragment, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return extract.Fragment{}, false
	}

	lines := []string{title}
	if item.PublishedParsed != nil {
		lines = append(lines, item.PublishedParsed.UTC().Format("02/01/2006"))
	} else if item.UpdatedParsed != nil {
		lines = append(lines, item.UpdatedParsed.UTC().Format("02/01/2006"))
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}
	if text := stripHTML(content); text != "" {
		lines = append(lines, text)
	}

	var links []string
	if item.Link != "" {
		links = append(links, item.Link)
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			links = append(links, enc.URL)
		}
	}

	if len(item.Categories) > 0 && strings.TrimSpace(item.Categories[0]) != "" {
		category = item.Categories[0]
	}
	if category == "" {
		category = database.DefaultCategory
	}

	return extract.Fragment{
		Text:     strings.Join(lines, "\n"),
		Links:    links,
		Category: category,
		Source:   source,
	}, true
}

func stripHTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
