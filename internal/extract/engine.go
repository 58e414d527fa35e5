// Package extract finds candidate notice fragments in a rendered portal page.
//
// Locators are evaluated in declaration order and their results are unioned.
// A failing locator contributes nothing; it never aborts extraction. When no
// candidate survives the length filter the engine returns a fixed set of
// synthetic placeholder fragments instead of an empty result.
package extract

import (
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	DefaultMinLength = 20
	DefaultMaxBatch  = 50

	// PlaceholderSource and PlaceholderCategory tag synthetic fragments.
	PlaceholderSource   = "demo"
	PlaceholderCategory = "Demo"
)

// Fragment is a raw candidate notice: text plus the links found inside it.
// Category and Source are explicit metadata; empty means "use the default".
type Fragment struct {
	Text      string
	Links     []string
	Synthetic bool
	Category  string
	Source    string

	node *html.Node
}

// Locator is a named heuristic that finds candidate fragments in a document.
type Locator struct {
	Name string
	Find func(doc *goquery.Document) ([]Fragment, error)
}

// LocatorResult is the tagged outcome of evaluating one locator.
type LocatorResult struct {
	Name      string
	Fragments []Fragment
	Err       error
}

// Options bounds the work done per run.
type Options struct {
	MinLength int
	MaxBatch  int
}

// Result is the output of one extraction.
type Result struct {
	Fragments   []Fragment
	Placeholder bool
	// TooShort counts candidates dropped by the length filter, OverCap those
	// beyond MaxBatch.
	TooShort int
	OverCap  int
}

// Engine applies an ordered list of locators to documents.
type Engine struct {
	locators []Locator
	opts     Options
}

// NewEngine creates an engine. With no locators it uses DefaultLocators.
func NewEngine(opts Options, locators ...Locator) *Engine {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	if len(locators) == 0 {
		locators = DefaultLocators()
	}
	return &Engine{locators: locators, opts: opts}
}

// Locators returns the names of the engine's locators in evaluation order.
func (e *Engine) Locators() []string {
	names := make([]string, len(e.locators))
	for i, l := range e.locators {
		names[i] = l.Name
	}
	return names
}

// Extract runs every locator on doc and finalizes the candidate pool.
func (e *Engine) Extract(doc *goquery.Document) Result {
	return e.Finalize(Candidates(e.Locate(doc)))
}

// Locate evaluates every locator against doc, in order. A nil document
// yields no results.
func (e *Engine) Locate(doc *goquery.Document) []LocatorResult {
	if doc == nil {
		return nil
	}
	results := make([]LocatorResult, 0, len(e.locators))
	for _, l := range e.locators {
		r := evaluate(l, doc)
		if r.Err != nil {
			log.Printf("Locator %s failed: %v", r.Name, r.Err)
		}
		results = append(results, r)
	}
	return results
}

func evaluate(l Locator, doc *goquery.Document) (res LocatorResult) {
	res.Name = l.Name
	defer func() {
		if r := recover(); r != nil {
			res.Fragments = nil
			res.Err = fmt.Errorf("locator %s panicked: %v", l.Name, r)
		}
	}()

	frags, err := l.Find(doc)
	if err != nil {
		res.Err = err
		return res
	}
	res.Fragments = frags
	return res
}

// Candidates unions locator results in locator order, then document order.
// Failed locators are skipped. An element matched by several locators is
// kept once, under the first locator that found it.
func Candidates(results []LocatorResult) []Fragment {
	seen := make(map[*html.Node]struct{})
	var out []Fragment
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		for _, f := range r.Fragments {
			if f.node != nil {
				if _, dup := seen[f.node]; dup {
					continue
				}
				seen[f.node] = struct{}{}
			}
			out = append(out, f)
		}
	}
	return out
}

// Finalize applies the length filter and batch cap, falling back to
// placeholders when nothing qualifies.
func (e *Engine) Finalize(candidates []Fragment) Result {
	var r Result
	for _, f := range candidates {
		if utf8.RuneCountInString(strings.TrimSpace(f.Text)) < e.opts.MinLength {
			r.TooShort++
			continue
		}
		if len(r.Fragments) >= e.opts.MaxBatch {
			r.OverCap++
			continue
		}
		r.Fragments = append(r.Fragments, f)
	}

	if len(r.Fragments) == 0 {
		r.Fragments = Placeholders()
		r.Placeholder = true
	}
	return r
}

var placeholderTexts = []string{
	"[DEMO] Circolare dimostrativa n. 1\nNessuna circolare è stata trovata nel portale durante questa esecuzione.",
	"[DEMO] Circolare dimostrativa n. 2\nAvviso generato automaticamente per registrare l'attività dello scraper.",
	"[DEMO] Circolare dimostrativa n. 3\nVerificare i selettori del portale se questo avviso compare a ogni esecuzione.",
}

// Placeholders returns the fixed synthetic fragment set.
func Placeholders() []Fragment {
	out := make([]Fragment, len(placeholderTexts))
	for i, text := range placeholderTexts {
		out[i] = Fragment{
			Text:      text,
			Synthetic: true,
			Category:  PlaceholderCategory,
			Source:    PlaceholderSource,
		}
	}
	return out
}
