// Package model contains the domain types shared across the API, the
// pipeline, and the persistence layers.
package model

import (
	"time"
)

// PackStatus describes the lifecycle of a study pack. Only the pipeline
// orchestrator mutates it.
type PackStatus string

const (
	StatusReceived PackStatus = "received"
	StatusChunked  PackStatus = "chunked"
	StatusReady    PackStatus = "ready"
	StatusError    PackStatus = "error"
)

// OutputMode identifies which generation stage produced an output. At most
// one output exists per (pack, mode).
type OutputMode string

const (
	ModeFulltext  OutputMode = "fulltext"
	ModeHighYield OutputMode = "high_yield"
)

// RunMode selects which outputs a generation run produces. RunHighYield
// implies the fulltext stage as well: the high-yield stage condenses the
// fulltext stage's markdown, so it can never run alone.
type RunMode string

const (
	RunFulltext  RunMode = "fulltext"
	RunHighYield RunMode = "high_yield"
)

// Valid reports whether m is a known run mode.
func (m RunMode) Valid() bool {
	return m == RunFulltext || m == RunHighYield
}

// StudyPack is one uploaded study document and its generation state.
type StudyPack struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Focus        string     `json:"focus,omitempty"`
	Status       PackStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	ModelID      string     `json:"modelId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// StudyPackFile is the single source file behind a pack. Either InlineText
// holds the extracted text already, or ObjectKey points at the stored bytes.
// Immutable after creation.
type StudyPackFile struct {
	ID         string    `json:"id"`
	PackID     string    `json:"packId"`
	ObjectKey  string    `json:"objectKey,omitempty"`
	MediaType  string    `json:"mediaType"`
	InlineText string    `json:"-"`
	SizeBytes  int64     `json:"sizeBytes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StudyPackChunk is one bounded segment of the extracted text. Idx is the
// 0-based original document order, not relevance order. Chunk sets are
// replaced wholesale per run, never partially.
type StudyPackChunk struct {
	ID            string    `json:"id"`
	PackID        string    `json:"packId"`
	Idx           int       `json:"idx"`
	Content       string    `json:"content"`
	Hash          string    `json:"hash"`
	TokenEstimate int       `json:"tokenEstimate"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Citation ties one generated section or bullet back to the chunks that
// ground it. Every persisted output entry must carry at least one chunk id.
type Citation struct {
	Label    string   `json:"label"`
	ChunkIDs []string `json:"chunk_ids"`
	Quotes   []string `json:"quote_snippets"`
}

// StudyPackOutput is one sanitized generation result for a pack.
type StudyPackOutput struct {
	ID          string     `json:"id"`
	PackID      string     `json:"packId"`
	Mode        OutputMode `json:"mode"`
	ContentHTML string     `json:"contentHtml"`
	Citations   []Citation `json:"citations"`
	ModelID     string     `json:"modelId"`
	CreatedAt   time.Time  `json:"createdAt"`
}
