package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestNodeTextKeepsLines(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div><h3>  Titolo   circolare </h3><p>Riga uno<br>Riga   due</p><script>var x = 1;</script><!-- nota --></div>`))
	require.NoError(t, err)

	got := NodeText(doc.Find("div").Get(0))
	require.Equal(t, "Titolo circolare\nRiga uno\nRiga due", got)
}

func TestNodeTextNil(t *testing.T) {
	require.Equal(t, "", NodeText(nil))
}

func TestAnchorHrefsWithoutBase(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div><a href="#top">top</a><a href="javascript:void(0)">js</a><a href="/doc.pdf">doc</a><a href="https://x.example/b.pdf">b</a></div>`))
	require.NoError(t, err)

	links := anchorHrefs(doc.Find("div"), nil)
	require.Equal(t, []string{"/doc.pdf", "https://x.example/b.pdf"}, links)
}
