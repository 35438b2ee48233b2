// Package render converts generation results into sanitized HTML plus a
// normalized citation list. The HTML originates from a model and is later
// shown to end users, so everything passes through bluemonday's UGC policy,
// which drops script elements and inline event handlers.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/studyforge/studypack/internal/generate"
	"github.com/studyforge/studypack/internal/model"
)

var (
	markdown = goldmark.New()
	policy   = bluemonday.UGCPolicy()
)

// Rendered is the persistable form of one generation result.
type Rendered struct {
	Markdown  string
	HTML      string
	Citations []model.Citation
}

// Fulltext assembles the section markdown, renders and sanitizes it, and
// collects one citation entry per section.
func Fulltext(r *generate.FulltextResult) (Rendered, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n", strings.TrimSpace(r.Title))
	citations := make([]model.Citation, 0, len(r.Sections))
	for _, sec := range r.Sections {
		fmt.Fprintf(&md, "\n## %s\n\n%s\n", strings.TrimSpace(sec.Title), strings.TrimSpace(sec.ContentMD))
		citations = append(citations, model.Citation{
			Label:    sec.Title,
			ChunkIDs: sec.ChunkIDs,
			Quotes:   sec.QuoteSnippets,
		})
	}
	html, err := toHTML(md.String())
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Markdown: md.String(), HTML: html, Citations: citations}, nil
}

// HighYield assembles the bullet markdown, renders and sanitizes it, and
// labels citations Bullet 1..N.
func HighYield(r *generate.HighYieldResult) (Rendered, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", strings.TrimSpace(r.Title))
	citations := make([]model.Citation, 0, len(r.Bullets))
	for i, b := range r.Bullets {
		fmt.Fprintf(&md, "- %s\n", strings.TrimSpace(b.TextMD))
		citations = append(citations, model.Citation{
			Label:    fmt.Sprintf("Bullet %d", i+1),
			ChunkIDs: b.ChunkIDs,
			Quotes:   b.QuoteSnippets,
		})
	}
	html, err := toHTML(md.String())
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Markdown: md.String(), HTML: html, Citations: citations}, nil
}

func toHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}
