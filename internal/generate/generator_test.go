package generate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studypack/internal/llm"
	"github.com/studyforge/studypack/internal/model"
)

type fakeChat struct {
	response string
	err      error

	lastMessages []llm.Message
	lastOpts     llm.Options
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	f.lastMessages = messages
	f.lastOpts = opts
	return f.response, f.err
}

func testChunks() []model.StudyPackChunk {
	return []model.StudyPackChunk{
		{ID: "chunk-1", Content: "The mitochondrion is the powerhouse of the cell."},
		{ID: "chunk-2", Content: "ATP synthase produces ATP from a proton gradient."},
	}
}

func TestFulltextParsesFencedJSON(t *testing.T) {
	chat := &fakeChat{response: "```json\n" + `{"title":"Cell Energy","sections":[{"title":"Mitochondria","content_md":"They make ATP.","chunk_ids":["chunk-1"],"quote_snippets":["powerhouse of the cell"]}]}` + "\n```"}
	g := New(chat, "model-a", "model-b")

	result, err := g.Fulltext(context.Background(), "Cell Energy", "", testChunks())
	require.NoError(t, err)
	require.Len(t, result.Sections, 1)
	assert.Equal(t, []string{"chunk-1"}, result.Sections[0].ChunkIDs)
}

func TestFulltextPromptCarriesChunksAndFocus(t *testing.T) {
	chat := &fakeChat{response: `{"title":"t","sections":[{"title":"s","content_md":"b","chunk_ids":["chunk-1"],"quote_snippets":["q"]}]}`}
	g := New(chat, "model-a", "model-b")

	_, err := g.Fulltext(context.Background(), "Cell Energy", "atp synthesis", testChunks())
	require.NoError(t, err)

	require.Len(t, chat.lastMessages, 2)
	assert.Equal(t, "system", chat.lastMessages[0].Role)
	user := chat.lastMessages[1].Content
	assert.Contains(t, user, "CHUNK chunk-1")
	assert.Contains(t, user, "CHUNK chunk-2")
	assert.Contains(t, user, "atp synthesis")
	assert.Contains(t, chat.lastMessages[0].Content, "ONLY facts present in the supplied chunks")

	assert.Equal(t, "model-a", chat.lastOpts.Model)
	assert.True(t, chat.lastOpts.JSONOnly)
	assert.InDelta(t, 0.2, chat.lastOpts.Temperature, 1e-9)
}

func TestFulltextInvalidJSON(t *testing.T) {
	chat := &fakeChat{response: "I could not produce JSON, sorry."}
	g := New(chat, "model-a", "model-b")
	_, err := g.Fulltext(context.Background(), "t", "", testChunks())
	assert.ErrorIs(t, err, ErrInvalidModelOutput)
}

func TestFulltextRejectsUncitedSection(t *testing.T) {
	chat := &fakeChat{response: `{"title":"t","sections":[{"title":"s","content_md":"b","chunk_ids":[],"quote_snippets":[]}]}`}
	g := New(chat, "model-a", "model-b")
	_, err := g.Fulltext(context.Background(), "t", "", testChunks())
	assert.ErrorIs(t, err, ErrInvalidModelOutput)
}

func TestFulltextRejectsUnknownChunkCitation(t *testing.T) {
	chat := &fakeChat{response: `{"title":"t","sections":[{"title":"s","content_md":"b","chunk_ids":["chunk-1","invented-chunk"],"quote_snippets":["q"]}]}`}
	g := New(chat, "model-a", "model-b")
	_, err := g.Fulltext(context.Background(), "t", "", testChunks())
	require.ErrorIs(t, err, ErrInvalidModelOutput)
	assert.Contains(t, err.Error(), "invented-chunk")
}

func TestFulltextRejectsEmptySections(t *testing.T) {
	chat := &fakeChat{response: `{"title":"t","sections":[]}`}
	g := New(chat, "model-a", "model-b")
	_, err := g.Fulltext(context.Background(), "t", "", testChunks())
	assert.ErrorIs(t, err, ErrInvalidModelOutput)
}

func TestHighYieldUsesFullMarkdownAndModel(t *testing.T) {
	chat := &fakeChat{response: `{"title":"t","bullets":[{"text_md":"ATP is made in mitochondria.","chunk_ids":["chunk-2"],"quote_snippets":["ATP synthase"]}]}`}
	g := New(chat, "model-a", "model-b")

	result, err := g.HighYield(context.Background(), "t", "# Full\n\ngenerated text", testChunks())
	require.NoError(t, err)
	require.Len(t, result.Bullets, 1)

	user := chat.lastMessages[1].Content
	assert.Contains(t, user, "generated text")
	assert.Contains(t, user, "CHUNK chunk-1")
	assert.Equal(t, "model-b", chat.lastOpts.Model)
	assert.Zero(t, chat.lastOpts.Temperature)
}

func TestHighYieldTruncatesBullets(t *testing.T) {
	var bullets []string
	for i := 0; i < 15; i++ {
		bullets = append(bullets, fmt.Sprintf(`{"text_md":"bullet %d","chunk_ids":["chunk-1"],"quote_snippets":["q"]}`, i))
	}
	chat := &fakeChat{response: `{"title":"t","bullets":[` + strings.Join(bullets, ",") + `]}`}
	g := New(chat, "model-a", "model-b")

	result, err := g.HighYield(context.Background(), "t", "md", testChunks())
	require.NoError(t, err)
	assert.Len(t, result.Bullets, MaxBullets)
}

func TestHighYieldRejectsUncitedBullet(t *testing.T) {
	chat := &fakeChat{response: `{"title":"t","bullets":[{"text_md":"b","chunk_ids":[],"quote_snippets":[]}]}`}
	g := New(chat, "model-a", "model-b")
	_, err := g.HighYield(context.Background(), "t", "md", testChunks())
	assert.ErrorIs(t, err, ErrInvalidModelOutput)
}

func TestHighYieldRejectsUnknownChunkCitation(t *testing.T) {
	chat := &fakeChat{response: `{"title":"t","bullets":[{"text_md":"b","chunk_ids":["not-a-real-chunk"],"quote_snippets":["q"]}]}`}
	g := New(chat, "model-a", "model-b")
	_, err := g.HighYield(context.Background(), "t", "md", testChunks())
	require.ErrorIs(t, err, ErrInvalidModelOutput)
	assert.Contains(t, err.Error(), "not-a-real-chunk")
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}
