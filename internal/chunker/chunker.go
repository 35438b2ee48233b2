// Package chunker splits extracted text into bounded, paragraph-aligned
// segments and fingerprints each one for change detection.
//
// Splitting strategy: paragraphs (blank-line boundaries) are greedily
// accumulated until the next one would push the buffer past the target size,
// then the buffer is flushed. Size is a soft target: a single paragraph
// longer than the target is emitted whole, never split mid-paragraph.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Options configures the chunking behaviour.
type Options struct {
	// TargetChars is the soft per-chunk size target. Default: 1600.
	TargetChars int
	// MaxChunks caps the number of chunks; excess paragraphs are silently
	// dropped so oversized documents are summarized from a prefix. Default: 200.
	MaxChunks int
}

func (o *Options) defaults() {
	if o.TargetChars <= 0 {
		o.TargetChars = 1600
	}
	if o.MaxChunks <= 0 {
		o.MaxChunks = 200
	}
}

var paragraphSep = regexp.MustCompile(`\n[ \t]*\n`)

// Split divides text into ordered chunk strings. Empty input yields nil.
func Split(text string, opts Options) []string {
	opts.defaults()

	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	for _, para := range paragraphSep.Split(text, -1) {
		if p := strings.TrimSpace(para); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}

	// The target counts characters, not bytes, so multibyte text packs as
	// densely as ASCII.
	var chunks []string
	var current strings.Builder
	currentRunes := 0
	for _, para := range paragraphs {
		paraRunes := utf8.RuneCountInString(para)
		if currentRunes > 0 && currentRunes+2+paraRunes > opts.TargetChars {
			chunks = append(chunks, current.String())
			current.Reset()
			currentRunes = 0
		}
		if currentRunes > 0 {
			current.WriteString("\n\n")
			currentRunes += 2
		}
		current.WriteString(para)
		currentRunes += paraRunes
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	if len(chunks) > opts.MaxChunks {
		chunks = chunks[:opts.MaxChunks]
	}
	return chunks
}

// Fingerprint returns the SHA-256 digest of the chunk text as lowercase hex.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// TokenEstimate approximates the token count of text as ceil(len/4).
func TokenEstimate(text string) int {
	return (len(text) + 3) / 4
}
