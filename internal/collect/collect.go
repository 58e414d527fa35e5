// Package collect gathers raw notice fragments from the portal and from the
// configured feeds.
package collect

import (
	"context"
	"fmt"
	"log"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/circolari/internal/config"
	"github.com/TobiSchelling/circolari/internal/extract"
)

// PageSource renders the portal's notices page.
type PageSource interface {
	Fetch(ctx context.Context) (*goquery.Document, error)
}

// Collection holds everything found in one collection pass, before the
// length filter and batch cap are applied.
type Collection struct {
	Results []extract.LocatorResult
	Feed    []extract.Fragment
	// PortalErr is set when the portal failed and the collector was told to
	// carry on without it.
	PortalErr error
}

// Candidates returns the portal candidates in locator order followed by the
// feed fragments.
func (c *Collection) Candidates() []extract.Fragment {
	out := extract.Candidates(c.Results)
	return append(out, c.Feed...)
}

// Collector orchestrates fragment collection from the portal and feeds.
type Collector struct {
	portal        PageSource
	engine        *extract.Engine
	feedParser    *FeedParser
	demoOnFailure bool
}

// NewCollector creates a collector. portal may be nil when no portal is
// configured.
func NewCollector(cfg *config.Config, portal PageSource, engine *extract.Engine) *Collector {
	c := &Collector{
		portal:        portal,
		engine:        engine,
		demoOnFailure: cfg.Portal.DemoOnFailure,
	}

	if len(cfg.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Feeds))
		for i, f := range cfg.Feeds {
			feeds[i] = FeedConfig{URL: f.URL, Name: f.Name, Category: f.Category}
		}
		c.feedParser = NewFeedParser(feeds)
	}

	return c
}

// Collect fetches the portal page, runs the locators over it and parses the
// feeds. A portal failure aborts collection unless demo_on_failure is set.
func (c *Collector) Collect(ctx context.Context) (*Collection, error) {
	col := &Collection{}

	if c.portal != nil {
		log.Println("Fetching portal notices page...")
		doc, err := c.portal.Fetch(ctx)
		switch {
		case err != nil && !c.demoOnFailure:
			return nil, fmt.Errorf("fetching portal: %w", err)
		case err != nil:
			log.Printf("Portal unavailable, continuing without it: %v", err)
			col.PortalErr = err
		default:
			col.Results = c.engine.Locate(doc)
			for _, r := range col.Results {
				if r.Err == nil {
					log.Printf("Locator %s found %d candidates", r.Name, len(r.Fragments))
				}
			}
		}
	}

	if c.feedParser != nil {
		log.Println("Collecting from feeds...")
		col.Feed = c.feedParser.ParseAll(ctx)
	}

	return col, nil
}
