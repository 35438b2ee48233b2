package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studypack/internal/generate"
)

func TestFulltextRendersSanitizedHTML(t *testing.T) {
	result := &generate.FulltextResult{
		Title: "Cell Energy",
		Sections: []generate.Section{
			{
				Title:         "Mitochondria",
				ContentMD:     "They make **ATP**.\n\n<script>alert(1)</script>\n\n<a href=\"#\" onclick=\"steal()\">link</a>",
				ChunkIDs:      []string{"c1"},
				QuoteSnippets: []string{"powerhouse"},
			},
		},
	}
	rendered, err := Fulltext(result)
	require.NoError(t, err)

	assert.Contains(t, rendered.HTML, "<h1")
	assert.Contains(t, rendered.HTML, "<h2")
	assert.Contains(t, rendered.HTML, "<strong>ATP</strong>")
	assert.NotContains(t, rendered.HTML, "<script")
	assert.NotContains(t, rendered.HTML, "onclick")

	require.Len(t, rendered.Citations, 1)
	assert.Equal(t, "Mitochondria", rendered.Citations[0].Label)
	assert.Equal(t, []string{"c1"}, rendered.Citations[0].ChunkIDs)
	assert.Contains(t, rendered.Markdown, "## Mitochondria")
}

func TestHighYieldLabelsBullets(t *testing.T) {
	result := &generate.HighYieldResult{
		Title: "Cell Energy",
		Bullets: []generate.Bullet{
			{TextMD: "ATP is produced in mitochondria.", ChunkIDs: []string{"c1"}, QuoteSnippets: []string{"ATP"}},
			{TextMD: "The proton gradient drives synthesis.", ChunkIDs: []string{"c2"}, QuoteSnippets: []string{"gradient"}},
		},
	}
	rendered, err := HighYield(result)
	require.NoError(t, err)

	assert.Contains(t, rendered.HTML, "<ul>")
	assert.Contains(t, rendered.HTML, "<li>")
	require.Len(t, rendered.Citations, 2)
	assert.Equal(t, "Bullet 1", rendered.Citations[0].Label)
	assert.Equal(t, "Bullet 2", rendered.Citations[1].Label)
	assert.Equal(t, []string{"c2"}, rendered.Citations[1].ChunkIDs)
}
