package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitJoinsSmallParagraphs(t *testing.T) {
	text := "A is the first paragraph.\n\nB is the second paragraph.\n\nC is the third paragraph."
	chunks := Split(text, Options{TargetChars: 1600})
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitEmptyInput(t *testing.T) {
	assert.Empty(t, Split("", Options{}))
	assert.Empty(t, Split("\n\n  \n\n", Options{}))
}

func TestSplitSizeBound(t *testing.T) {
	para := strings.Repeat("x", 300)
	var paragraphs []string
	for i := 0; i < 50; i++ {
		paragraphs = append(paragraphs, para)
	}
	chunks := Split(strings.Join(paragraphs, "\n\n"), Options{TargetChars: 1600})
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 1600)
	}
}

func TestSplitTargetCountsRunes(t *testing.T) {
	// Two 10-character paragraphs of 2-byte runes: 22 characters joined but
	// 42 bytes. A byte-based target would flush them into separate chunks.
	para := strings.Repeat("ü", 10)
	chunks := Split(para+"\n\n"+para, Options{TargetChars: 25})
	require.Len(t, chunks, 1)
	assert.Equal(t, para+"\n\n"+para, chunks[0])
}

func TestSplitOversizedParagraphEmittedWhole(t *testing.T) {
	long := strings.Repeat("y", 5000)
	text := "short intro\n\n" + long + "\n\nshort outro"
	chunks := Split(text, Options{TargetChars: 1600})
	require.Len(t, chunks, 3)
	assert.Equal(t, long, chunks[1])
}

func TestSplitCountBound(t *testing.T) {
	para := strings.Repeat("z", 1700) // each paragraph exceeds the target on its own
	var paragraphs []string
	for i := 0; i < 250; i++ {
		paragraphs = append(paragraphs, para)
	}
	chunks := Split(strings.Join(paragraphs, "\n\n"), Options{TargetChars: 1600, MaxChunks: 200})
	assert.Len(t, chunks, 200)
}

func TestSplitPreservesOrder(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 40; i++ {
		paragraphs = append(paragraphs, fmt.Sprintf("paragraph %03d %s", i, strings.Repeat("w", 200)))
	}
	normalized := strings.Join(paragraphs, "\n\n")
	chunks := Split(normalized, Options{TargetChars: 1600})
	assert.Equal(t, normalized, strings.Join(chunks, "\n\n"))
}

func TestSplitNormalizesCRLF(t *testing.T) {
	chunks := Split("first\r\n\r\nsecond", Options{TargetChars: 10})
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0])
	assert.Equal(t, "second", chunks[1])
}

func TestFingerprint(t *testing.T) {
	// Known SHA-256 vector.
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Fingerprint("abc"))
	assert.Equal(t, Fingerprint("same text"), Fingerprint("same text"))
	assert.NotEqual(t, Fingerprint("one"), Fingerprint("two"))
}

func TestTokenEstimate(t *testing.T) {
	assert.Equal(t, 0, TokenEstimate(""))
	assert.Equal(t, 1, TokenEstimate("abcd"))
	assert.Equal(t, 2, TokenEstimate("abcde"))
}
