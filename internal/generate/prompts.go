package generate

import (
	"fmt"
	"strings"

	"github.com/studyforge/studypack/internal/model"
)

const chunkDelimiter = "\n-----\n"

const fulltextSystemPrompt = `You are a study-content writer. You produce structured study notes from source material.

Rules:
- Use ONLY facts present in the supplied chunks. Do not add outside knowledge.
- Every section must cite the chunks it is grounded in.
- Respond with a single JSON object, no prose around it, matching exactly:
{
  "title": string,
  "sections": [
    {
      "title": string,
      "content_md": string (markdown body),
      "chunk_ids": [string, ...] (ids of the chunks this section is grounded in, at least one),
      "quote_snippets": [string, ...] (1-2 short verbatim excerpts from those chunks substantiating the section)
    }
  ]
}`

const highYieldSystemPrompt = `You condense study notes into a high-yield bullet list.

Rules:
- Use ONLY information present in the provided full text and chunks.
- At most 12 bullets.
- Every bullet must cite the chunks it is grounded in.
- Respond with a single JSON object, no prose around it, matching exactly:
{
  "title": string,
  "bullets": [
    {
      "text_md": string (one bullet, markdown),
      "chunk_ids": [string, ...] (at least one),
      "quote_snippets": [string, ...] (1-2 short verbatim excerpts)
    }
  ]
}`

func buildFulltextPrompt(title, focus string, chunks []model.StudyPackChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DOCUMENT TITLE: %s\n\n", title)
	if strings.TrimSpace(focus) != "" {
		fmt.Fprintf(&b, "FOCUS: %s\nOnly cover material relevant to this focus; skip everything else.\n\n", focus)
	}
	b.WriteString("SOURCE CHUNKS:\n\n")
	writeChunks(&b, chunks)
	return b.String()
}

func buildHighYieldPrompt(title, fullMarkdown string, chunks []model.StudyPackChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DOCUMENT TITLE: %s\n\n", title)
	b.WriteString("FULL TEXT (condense this):\n\n")
	b.WriteString(fullMarkdown)
	b.WriteString("\n\nSOURCE CHUNKS (cite these ids):\n\n")
	writeChunks(&b, chunks)
	return b.String()
}

func writeChunks(b *strings.Builder, chunks []model.StudyPackChunk) {
	for i, c := range chunks {
		if i > 0 {
			b.WriteString(chunkDelimiter)
		}
		fmt.Fprintf(b, "CHUNK %s\n%s", c.ID, c.Content)
	}
}
