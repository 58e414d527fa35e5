// Package normalize maps raw extracted fragments to canonical notices.
//
// Normalize is total: every input, however malformed, yields a notice with
// defaulted fields. Partial data is kept rather than rejected.
package normalize

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/TobiSchelling/circolari/internal/database"
	"github.com/TobiSchelling/circolari/internal/extract"
)

const (
	DefaultTitleMax = 200
	DefaultBodyMax  = 5000

	// UntitledTitle is used when a fragment has no visible text at all.
	UntitledTitle = "Untitled"
)

// Defaults are the caller-supplied values for fields a fragment does not set.
type Defaults struct {
	Category string
	Source   string
	TitleMax int
	BodyMax  int
}

// DatePattern is one day-month-year layout tried by the normalizer.
type DatePattern struct {
	Name string
	re   *regexp.Regexp
}

// DatePatterns is the fixed precedence list. The first pattern yielding a
// valid date anywhere in the text wins, regardless of position.
var DatePatterns = []DatePattern{
	{Name: "D/M/Y", re: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)},
	{Name: "D-M-Y", re: regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`)},
	{Name: "D.M.Y", re: regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)},
}

// Normalize converts one fragment into a notice. It never fails.
func Normalize(f extract.Fragment, d Defaults, now time.Time) database.Notice {
	d = d.withFallbacks()
	text := strings.TrimSpace(norm.NFC.String(f.Text))

	n := database.Notice{
		Title:          truncate(firstLine(text), d.TitleMax),
		Body:           truncate(text, d.BodyMax),
		AttachmentRefs: pdfLinks(f.Links),
		Category:       pick(f.Category, d.Category),
		Source:         pick(f.Source, d.Source),
	}
	if n.Title == "" {
		n.Title = UntitledTitle
	}

	if date, ok := FindDate(text); ok {
		n.PublicationDate = date
	} else {
		n.PublicationDate = database.TruncateDay(now)
	}
	return n
}

func (d Defaults) withFallbacks() Defaults {
	if strings.TrimSpace(d.Category) == "" {
		d.Category = database.DefaultCategory
	}
	if strings.TrimSpace(d.Source) == "" {
		d.Source = database.DefaultSource
	}
	if d.TitleMax <= 0 {
		d.TitleMax = DefaultTitleMax
	}
	if d.BodyMax <= 0 {
		d.BodyMax = DefaultBodyMax
	}
	return d
}

// FindDate returns the first valid date matched by the earliest pattern in
// DatePatterns. Matches that are not real calendar dates are skipped.
func FindDate(text string) (time.Time, bool) {
	for _, p := range DatePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			if t, ok := toDate(m[1], m[2], m[3]); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func toDate(day, month, year string) (time.Time, bool) {
	d, err1 := strconv.Atoi(day)
	m, err2 := strconv.Atoi(month)
	y, err3 := strconv.Atoi(year)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March.
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			return line
		}
	}
	return ""
}

// pdfLinks keeps links whose path ends in .pdf, in order, duplicates kept.
func pdfLinks(links []string) []string {
	refs := []string{}
	for _, l := range links {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		path := l
		if u, err := url.Parse(l); err == nil {
			path = u.Path
		}
		if strings.HasSuffix(strings.ToLower(path), ".pdf") {
			refs = append(refs, l)
		}
	}
	return refs
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

func pick(explicit, fallback string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	return fallback
}
