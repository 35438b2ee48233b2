// Package relevance narrows a pack's chunk set to the subset matching an
// optional focus phrase. Scoring is plain term frequency over normalized
// tokens; no embeddings are involved.
package relevance

import (
	"sort"
	"strings"
	"unicode"

	"github.com/studyforge/studypack/internal/model"
)

const minTokenLen = 3

// Select returns the chunks relevant to focus, ordered by descending score,
// capped at maxChunks. With no usable focus (or when filtering would leave
// nothing to ground generation on) the full set is returned in original
// order.
func Select(chunks []model.StudyPackChunk, focus string, maxChunks int) []model.StudyPackChunk {
	focusTokens := tokenSet(focus)
	if len(focusTokens) == 0 {
		return chunks
	}

	type scored struct {
		chunk model.StudyPackChunk
		score int
	}
	var matched []scored
	for _, c := range chunks {
		score := 0
		for _, tok := range tokenize(c.Content) {
			if _, ok := focusTokens[tok]; ok {
				score++
			}
		}
		if score > 0 {
			matched = append(matched, scored{chunk: c, score: score})
		}
	}
	if len(matched) == 0 {
		return chunks
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})
	if maxChunks > 0 && len(matched) > maxChunks {
		matched = matched[:maxChunks]
	}

	selected := make([]model.StudyPackChunk, len(matched))
	for i, m := range matched {
		selected[i] = m.chunk
	}
	return selected
}

// tokenize lowercases text and splits it on anything that is not a letter or
// number in any script, keeping tokens of at least minTokenLen runes.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func tokenSet(text string) map[string]struct{} {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
