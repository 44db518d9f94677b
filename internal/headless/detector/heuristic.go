// Package detector decides when a plain HTTP response needs a headless render
// before its text can be trusted.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/phrasewatch/internal/monitor"
)

const defaultMinText = 200

// mountSelector matches the empty root nodes client-side frameworks render into.
const mountSelector = "#__next, #root, #app, [data-reactroot], [ng-app], [data-server-rendered]"

// Heuristic promotes pages that look like JavaScript shells.
type Heuristic struct {
	// MinText is the visible-text length below which a page with scripts is
	// treated as a shell.
	MinText int
}

// NewHeuristic creates a new detector. minText <= 0 selects the default.
func NewHeuristic(minText int) *Heuristic {
	if minText <= 0 {
		minText = defaultMinText
	}
	return &Heuristic{MinText: minText}
}

// ShouldPromote reports whether resp should be re-fetched headlessly.
// Only successful responses are considered.
func (h *Heuristic) ShouldPromote(resp monitor.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return false
	}

	scripts := doc.Find("script").Length()
	emptyMount := false
	doc.Find(mountSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == "" {
			emptyMount = true
			return false
		}
		return true
	})

	doc.Find("script, style, noscript, template").Remove()
	visible := len(strings.Join(strings.Fields(doc.Text()), " "))

	if emptyMount && visible < h.MinText*4 {
		return true
	}
	return scripts > 0 && visible < h.MinText
}
