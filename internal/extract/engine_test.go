package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	doc.Url, err = url.Parse("https://scuola.example/circolari/")
	require.NoError(t, err)
	return doc
}

const tablePage = `<html><body>
<table>
  <thead><tr><th>Titolo</th><th>Data</th><th>Allegato</th></tr></thead>
  <tbody>
    <tr><td>Circolare n. 101 - Sciopero comparto scuola</td><td>03/04/2024</td><td><a href="/files/c101.pdf">PDF</a></td></tr>
    <tr><td>Circolare n. 102 - Uscita didattica classi terze</td><td>05/04/2024</td><td><a href="c102.PDF">PDF</a></td></tr>
    <tr><td>Menu</td></tr>
  </tbody>
</table>
</body></html>`

func TestExtractTableRows(t *testing.T) {
	e := NewEngine(Options{})
	res := e.Extract(parseDoc(t, tablePage))

	require.False(t, res.Placeholder)
	require.Len(t, res.Fragments, 2)
	require.Equal(t, 1, res.TooShort)

	first := res.Fragments[0]
	require.Equal(t, "Circolare n. 101 - Sciopero comparto scuola\n03/04/2024\nPDF", first.Text)
	require.Equal(t, []string{"https://scuola.example/files/c101.pdf"}, first.Links)
	require.Equal(t, []string{"https://scuola.example/circolari/c102.PDF"}, res.Fragments[1].Links)
	require.False(t, first.Synthetic)
}

func TestExtractContainersInnermost(t *testing.T) {
	page := `<div class="circolari-list">
	  <div class="circolare"><h3>Circolare n. 7 - Ricevimento genitori</h3><p>Pubblicata il 12.02.2024</p></div>
	  <div class="circolare"><h3>Circolare n. 8 - Consiglio di classe</h3><p>Pubblicata il 13.02.2024</p></div>
	</div>`
	e := NewEngine(Options{}, builtin["containers"])
	res := e.Extract(parseDoc(t, page))

	require.Len(t, res.Fragments, 2)
	require.True(t, strings.HasPrefix(res.Fragments[0].Text, "Circolare n. 7"))
	require.True(t, strings.HasPrefix(res.Fragments[1].Text, "Circolare n. 8"))
}

func TestCandidatesKeepHeuristicOrderAndDedupNodes(t *testing.T) {
	page := `<ul>
	  <li class="avviso"><a href="/a.pdf">Avviso importante per le famiglie</a></li>
	  <li><a href="/b.pdf">Seconda comunicazione alle famiglie</a></li>
	</ul>`
	e := NewEngine(Options{}, builtin["containers"], builtin["list_items"])
	results := e.Locate(parseDoc(t, page))
	require.Len(t, results, 2)
	require.Len(t, results[0].Fragments, 1)
	require.Len(t, results[1].Fragments, 2)

	cands := Candidates(results)
	require.Len(t, cands, 2, "an element found by two locators is kept once")
	require.Equal(t, "Avviso importante per le famiglie", cands[0].Text)
	require.Equal(t, "Seconda comunicazione alle famiglie", cands[1].Text)
}

func TestFailingLocatorIsIsolated(t *testing.T) {
	boom := Locator{Name: "boom", Find: func(*goquery.Document) ([]Fragment, error) {
		return nil, errors.New("selector exploded")
	}}
	panicky := Locator{Name: "panicky", Find: func(*goquery.Document) ([]Fragment, error) {
		panic("nil map")
	}}
	e := NewEngine(Options{}, boom, panicky, builtin["table_rows"])

	results := e.Locate(parseDoc(t, tablePage))
	require.Len(t, results, 3)
	require.Error(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.Contains(t, results[1].Err.Error(), "panicked")
	require.NoError(t, results[2].Err)

	res := e.Finalize(Candidates(results))
	require.False(t, res.Placeholder)
	require.Len(t, res.Fragments, 2)
}

func TestAllLocatorsFailFallsBackToPlaceholders(t *testing.T) {
	boom := Locator{Name: "boom", Find: func(*goquery.Document) ([]Fragment, error) {
		return nil, errors.New("nope")
	}}
	res := NewEngine(Options{}, boom).Extract(parseDoc(t, tablePage))
	require.True(t, res.Placeholder)
	require.NotEmpty(t, res.Fragments)
}

func TestNeverEmptyExtraction(t *testing.T) {
	pages := []string{
		"",
		"<html><body></body></html>",
		"<p>short</p>",
		"<table><tr><th>Solo intestazione</th></tr></table>",
		"<ul><li>no links here at all in this item</li></ul>",
	}
	e := NewEngine(Options{})
	for _, page := range pages {
		res := e.Extract(parseDoc(t, page))
		require.True(t, res.Placeholder, "page %q", page)
		require.NotEmpty(t, res.Fragments)
		for _, f := range res.Fragments {
			require.True(t, f.Synthetic)
			require.Equal(t, PlaceholderSource, f.Source)
		}
	}

	res := e.Extract(nil)
	require.True(t, res.Placeholder)
}

func TestPlaceholdersAreDeterministic(t *testing.T) {
	require.Equal(t, Placeholders(), Placeholders())
}

func TestFinalizeCapsBatch(t *testing.T) {
	var cands []Fragment
	for i := 0; i < 12; i++ {
		cands = append(cands, Fragment{Text: fmt.Sprintf("Circolare numero %02d del mese", i)})
	}
	res := NewEngine(Options{MaxBatch: 5}).Finalize(cands)
	require.Len(t, res.Fragments, 5)
	require.Equal(t, 7, res.OverCap)
	require.Equal(t, "Circolare numero 00 del mese", res.Fragments[0].Text)
	require.Equal(t, "Circolare numero 04 del mese", res.Fragments[4].Text)
}

func TestFinalizeMinLengthCountsRunes(t *testing.T) {
	e := NewEngine(Options{MinLength: 5})
	res := e.Finalize([]Fragment{{Text: "  àèìòù  "}, {Text: "abcd"}})
	require.Len(t, res.Fragments, 1)
	require.Equal(t, 1, res.TooShort)
}

func TestLocatorsByName(t *testing.T) {
	ls, err := LocatorsByName([]string{"list_items", "containers"})
	require.NoError(t, err)
	require.Equal(t, "list_items", ls[0].Name)
	require.Equal(t, "containers", ls[1].Name)

	_, err = LocatorsByName([]string{"xpath"})
	require.Error(t, err)

	require.Equal(t, DefaultLocatorNames, NewEngine(Options{}).Locators())
}

func TestReadableLocator(t *testing.T) {
	var body strings.Builder
	body.WriteString(`<html><head><title>Circolari</title></head><body><nav><a href="/">Home</a></nav><article>`)
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&body, "<p>Si comunica alle famiglie che il giorno %02d/05/2024 le lezioni termineranno alle ore 12, "+
			"in occasione dell'assemblea sindacale del personale docente e ATA, come previsto dal contratto.</p>", i+1)
	}
	body.WriteString(`</article></body></html>`)

	frags, err := findReadable(parseDoc(t, body.String()))
	require.NoError(t, err)
	require.NotEmpty(t, frags)
	require.Contains(t, frags[0].Text, "Si comunica alle famiglie")
}
