// Package extract locates archive links in fetched HTML. All functions are
// pure: they take parsed markup and return page references, performing no I/O.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"paper-archiver/internal/archive"
)

// Selectors for the three page shapes served by the archive.
const (
	yearLinkSelector  = `a[href^="/paper"]`
	paperLinkSelector = `a[href$=".html"]`
	pdfLinkSelector   = `a[href$="-Paper-Conference.pdf"], a[href$="-Paper.pdf"]`
)

// Parse builds a queryable document from raw HTML.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// YearTasks returns the year listing links found on the root page, deduped by
// absolute URL, stable-sorted newest year first, truncated to at most max.
func YearTasks(doc *goquery.Document, base *url.URL, max int) []archive.YearTask {
	seen := make(map[string]struct{})
	var tasks []archive.YearTask
	doc.Find(yearLinkSelector).Each(func(_ int, s *goquery.Selection) {
		abs, ok := resolve(base, s)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		tasks = append(tasks, archive.YearTask{
			Ref:  archive.PageRef{URL: abs, Kind: archive.KindYear},
			Year: YearFromURL(abs),
		})
	})
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Year > tasks[j].Year
	})
	if max > 0 && len(tasks) > max {
		tasks = tasks[:max]
	}
	return tasks
}

// PaperTasks returns the paper detail links found on a year listing page.
func PaperTasks(doc *goquery.Document, base *url.URL) []archive.PaperTask {
	var tasks []archive.PaperTask
	doc.Find(paperLinkSelector).Each(func(_ int, s *goquery.Selection) {
		abs, ok := resolve(base, s)
		if !ok {
			return
		}
		tasks = append(tasks, archive.PaperTask{
			Ref: archive.PageRef{URL: abs, Kind: archive.KindPaper},
		})
	})
	return tasks
}

// PDFRef returns the first PDF link on a paper page. Absence is not an error;
// the caller logs the skip and produces no downstream work.
func PDFRef(doc *goquery.Document, base *url.URL) (archive.PageRef, bool) {
	s := doc.Find(pdfLinkSelector).First()
	if s.Length() == 0 {
		return archive.PageRef{}, false
	}
	abs, ok := resolve(base, s)
	if !ok {
		return archive.PageRef{}, false
	}
	return archive.PageRef{URL: abs, Kind: archive.KindPDF}, true
}

// YearFromURL extracts the integer formed by the URL's digit characters.
// URLs with no digits, or digit runs that do not parse, yield 0 so they sort
// last without raising.
func YearFromURL(raw string) int {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	year, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return year
}

func resolve(base *url.URL, s *goquery.Selection) (string, bool) {
	href, exists := s.Attr("href")
	if !exists || href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base == nil {
		return ref.String(), true
	}
	return base.ResolveReference(ref).String(), true
}
