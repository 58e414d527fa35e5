package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/circolari/internal/config"
	"github.com/TobiSchelling/circolari/internal/database"
	"github.com/TobiSchelling/circolari/internal/extract"
)

const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Istituto Comprensivo</title>
<item>
  <title>Circolare n. 12 - Elezioni rappresentanti</title>
  <link>https://scuola.example/c12</link>
  <pubDate>Mon, 07 Oct 2024 09:00:00 +0000</pubDate>
  <category>Famiglie</category>
  <description><![CDATA[<p>Si comunicano le <b>modalità</b> di voto.</p>]]></description>
  <enclosure url="https://scuola.example/c12.pdf" length="1000" type="application/pdf"/>
</item>
<item>
  <title>   </title>
  <link>https://scuola.example/empty</link>
</item>
<item>
  <title>Avviso senza data</title>
</item>
</channel></rss>`

type fakePortal struct {
	page string
	err  error
}

func (f fakePortal) Fetch(context.Context) (*goquery.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(f.page))
}

func TestItemFragmentLayout(t *testing.T) {
	feed, err := gofeed.NewParser().ParseString(rss)
	require.NoError(t, err)

	frags := feedFragments(feed, "IC Roma", "Circolari")
	require.Len(t, frags, 2)

	f := frags[0]
	require.Equal(t, "Circolare n. 12 - Elezioni rappresentanti\n07/10/2024\nSi comunicano le modalità di voto.", f.Text)
	require.Equal(t, []string{"https://scuola.example/c12", "https://scuola.example/c12.pdf"}, f.Links)
	require.Equal(t, "Famiglie", f.Category)
	require.Equal(t, "IC Roma", f.Source)

	require.Equal(t, "Avviso senza data", frags[1].Text)
	require.Equal(t, "Circolari", frags[1].Category)
}

func TestFeedFragmentsCap(t *testing.T) {
	feed := &gofeed.Feed{}
	for i := 0; i < 30; i++ {
		feed.Items = append(feed.Items, &gofeed.Item{Title: fmt.Sprintf("Avviso %d", i)})
	}
	frags := feedFragments(feed, "x", "")
	require.Len(t, frags, maxPerFeed)
	require.Equal(t, database.DefaultCategory, frags[0].Category)
}

func TestExtractSourceName(t *testing.T) {
	require.Equal(t, "Istruzione", extractSourceName("https://www.istruzione.it/rss/news.xml"))
	require.Equal(t, "Example", extractSourceName("https://feeds.example.org/x"))
}

func TestCollectPortalAndFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.xml" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rss)
	}))
	defer srv.Close()

	cfg := &config.Config{Feeds: []config.Feed{
		{URL: srv.URL + "/broken.xml", Name: "rotto"},
		{URL: srv.URL + "/feed.xml", Name: "scuola"},
	}}
	portal := fakePortal{page: `<table><tr><td>Circolare n. 3 - Orario provvisorio</td><td>16/09/2024</td></tr></table>`}

	c := NewCollector(cfg, portal, extract.NewEngine(extract.Options{}))
	col, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.NoError(t, col.PortalErr)

	cands := col.Candidates()
	require.Len(t, cands, 3)
	require.Equal(t, "Circolare n. 3 - Orario provvisorio\n16/09/2024", cands[0].Text)
	require.Equal(t, "scuola", cands[1].Source)
}

func TestCollectPortalFailure(t *testing.T) {
	portal := fakePortal{err: errors.New("connection refused")}
	engine := extract.NewEngine(extract.Options{})

	_, err := NewCollector(&config.Config{}, portal, engine).Collect(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")

	cfg := &config.Config{Portal: config.Portal{DemoOnFailure: true}}
	col, err := NewCollector(cfg, portal, engine).Collect(context.Background())
	require.NoError(t, err)
	require.Error(t, col.PortalErr)
	require.Empty(t, col.Candidates())
}

func TestCollectWithoutPortal(t *testing.T) {
	col, err := NewCollector(&config.Config{}, nil, extract.NewEngine(extract.Options{})).Collect(context.Background())
	require.NoError(t, err)
	require.Empty(t, col.Candidates())
}
