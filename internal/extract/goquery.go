// Package extract converts fetched HTML into the plain text that gets searched.
package extract

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// hiddenSelector matches elements whose contents are code or inert markup.
// noscript fallbacks are kept as text.
const hiddenSelector = "script, style, template"

// GoQuery extracts visible text using goquery.
type GoQuery struct{}

// New returns a GoQuery extractor.
func New() *GoQuery {
	return &GoQuery{}
}

// Text parses html and returns the concatenated text of all remaining nodes.
func (GoQuery) Text(html []byte) (string, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(hiddenSelector).Remove()
	return doc.Text(), nil
}
