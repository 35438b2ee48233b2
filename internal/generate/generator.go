// Package generate drives the two-stage grounded generation process. Both
// stages declare a strict JSON schema and require every section or bullet to
// cite source chunks by id and verbatim quote; that citation requirement is
// the anti-hallucination contract the rest of the system depends on.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/studyforge/studypack/internal/llm"
	"github.com/studyforge/studypack/internal/model"
)

// ErrInvalidModelOutput is returned when a model response cannot be parsed
// and validated against the declared schema. Never retried at this layer:
// a schema violation indicates a prompt/contract problem, not transience.
var ErrInvalidModelOutput = errors.New("invalid model output")

// MaxBullets caps the high-yield stage; excess bullets are truncated even if
// the model ignores the instruction.
const MaxBullets = 12

// FulltextResult is the schema of the fulltext stage.
type FulltextResult struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Section is one grounded section of the fulltext output.
type Section struct {
	Title         string   `json:"title"`
	ContentMD     string   `json:"content_md"`
	ChunkIDs      []string `json:"chunk_ids"`
	QuoteSnippets []string `json:"quote_snippets"`
}

// HighYieldResult is the schema of the high-yield stage.
type HighYieldResult struct {
	Title   string   `json:"title"`
	Bullets []Bullet `json:"bullets"`
}

// Bullet is one grounded high-yield bullet.
type Bullet struct {
	TextMD        string   `json:"text_md"`
	ChunkIDs      []string `json:"chunk_ids"`
	QuoteSnippets []string `json:"quote_snippets"`
}

// Generator issues the two generation stages against a chat client.
type Generator struct {
	client         llm.ChatClient
	fulltextModel  string
	highYieldModel string
}

// New constructs a Generator.
func New(client llm.ChatClient, fulltextModel, highYieldModel string) *Generator {
	return &Generator{
		client:         client,
		fulltextModel:  fulltextModel,
		highYieldModel: highYieldModel,
	}
}

// FulltextModel returns the model id recorded on fulltext outputs.
func (g *Generator) FulltextModel() string { return g.fulltextModel }

// HighYieldModel returns the model id recorded on high-yield outputs.
func (g *Generator) HighYieldModel() string { return g.highYieldModel }

// Fulltext runs the first stage: structured, citation-bearing sections built
// strictly from the supplied chunks.
func (g *Generator) Fulltext(ctx context.Context, title, focus string, chunks []model.StudyPackChunk) (*FulltextResult, error) {
	user := buildFulltextPrompt(title, focus, chunks)
	raw, err := g.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: fulltextSystemPrompt},
		{Role: "user", Content: user},
	}, llm.Options{
		Model:       g.fulltextModel,
		MaxTokens:   4096,
		Temperature: 0.2,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext generation: %w", err)
	}

	var result FulltextResult
	if err := parseJSON(raw, &result); err != nil {
		return nil, err
	}
	if len(result.Sections) == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrInvalidModelOutput)
	}
	known := chunkIDSet(chunks)
	for i, sec := range result.Sections {
		if len(sec.ChunkIDs) == 0 {
			return nil, fmt.Errorf("%w: section %d (%q) has no chunk citations", ErrInvalidModelOutput, i, sec.Title)
		}
		for _, id := range sec.ChunkIDs {
			if _, ok := known[id]; !ok {
				return nil, fmt.Errorf("%w: section %d (%q) cites unknown chunk %q", ErrInvalidModelOutput, i, sec.Title, id)
			}
		}
	}
	return &result, nil
}

// HighYield runs the second stage: a condensed bullet list distilled from
// the already-generated full markdown, grounded in the same chunk set.
func (g *Generator) HighYield(ctx context.Context, title, fullMarkdown string, chunks []model.StudyPackChunk) (*HighYieldResult, error) {
	user := buildHighYieldPrompt(title, fullMarkdown, chunks)
	raw, err := g.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: highYieldSystemPrompt},
		{Role: "user", Content: user},
	}, llm.Options{
		Model:       g.highYieldModel,
		MaxTokens:   1024,
		Temperature: 0,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("high-yield generation: %w", err)
	}

	var result HighYieldResult
	if err := parseJSON(raw, &result); err != nil {
		return nil, err
	}
	if len(result.Bullets) == 0 {
		return nil, fmt.Errorf("%w: no bullets", ErrInvalidModelOutput)
	}
	known := chunkIDSet(chunks)
	for i, b := range result.Bullets {
		if len(b.ChunkIDs) == 0 {
			return nil, fmt.Errorf("%w: bullet %d has no chunk citations", ErrInvalidModelOutput, i)
		}
		for _, id := range b.ChunkIDs {
			if _, ok := known[id]; !ok {
				return nil, fmt.Errorf("%w: bullet %d cites unknown chunk %q", ErrInvalidModelOutput, i, id)
			}
		}
	}
	if len(result.Bullets) > MaxBullets {
		result.Bullets = result.Bullets[:MaxBullets]
	}
	return &result, nil
}

// chunkIDSet indexes the supplied chunks so citations can be checked against
// the set the model was actually given. A citation outside that set is a
// fabricated reference and invalidates the whole response.
func chunkIDSet(chunks []model.StudyPackChunk) map[string]struct{} {
	set := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		set[c.ID] = struct{}{}
	}
	return set
}

// parseJSON strips an optional code-fence wrapper, unmarshals, and converts
// any failure into ErrInvalidModelOutput.
func parseJSON(raw string, v any) error {
	cleaned := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
	}
	return nil
}

// stripCodeFence removes a surrounding ``` or ```json fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line ("json", "").
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
