package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// containerSelector matches elements whose class or id suggests a notice.
const containerSelector = `article, [class*='circolar'], [id*='circolar'], [class*='comunicat'], ` +
	`[class*='avvis'], [class*='notice'], [class*='news-item']`

var builtin = map[string]Locator{
	"containers": {Name: "containers", Find: findContainers},
	"table_rows": {Name: "table_rows", Find: findTableRows},
	"list_items": {Name: "list_items", Find: findListItems},
	"readable":   {Name: "readable", Find: findReadable},
}

// DefaultLocatorNames is the default evaluation order.
var DefaultLocatorNames = []string{"containers", "table_rows", "list_items"}

// DefaultLocators returns the built-in locators in default order.
func DefaultLocators() []Locator {
	ls, _ := LocatorsByName(DefaultLocatorNames)
	return ls
}

// LocatorsByName resolves built-in locator names, keeping the given order.
func LocatorsByName(names []string) ([]Locator, error) {
	out := make([]Locator, 0, len(names))
	for _, name := range names {
		l, ok := builtin[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown locator %q", name)
		}
		out = append(out, l)
	}
	return out, nil
}

// findContainers keeps only the innermost matching containers so a list
// wrapper does not swallow its children. Containers wrapping a table are left
// to findTableRows.
func findContainers(doc *goquery.Document) ([]Fragment, error) {
	var out []Fragment
	doc.Find(containerSelector).
		FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find(containerSelector).Length() == 0 && s.Find("table").Length() == 0
		}).
		Each(func(_ int, s *goquery.Selection) {
			out = append(out, fragmentOf(s, doc.Url))
		})
	return out, nil
}

// findTableRows returns body rows of every table, skipping header rows.
func findTableRows(doc *goquery.Document) ([]Fragment, error) {
	var out []Fragment
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.ParentsFiltered("thead").Length() > 0 {
			return
		}
		if row.ChildrenFiltered("th").Length() > 0 {
			return
		}
		out = append(out, fragmentOf(row, doc.Url))
	})
	return out, nil
}

// findListItems returns list items that link somewhere.
func findListItems(doc *goquery.Document) ([]Fragment, error) {
	var out []Fragment
	doc.Find("li:has(a[href])").Each(func(_ int, li *goquery.Selection) {
		out = append(out, fragmentOf(li, doc.Url))
	})
	return out, nil
}
