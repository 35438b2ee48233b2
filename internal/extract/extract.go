// Package extract turns a stored study file into raw text. It enforces the
// byte ceiling before any decoding work and branches on the declared media
// type; unknown types fall back to a best-effort UTF-8 decode rather than
// failing.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

var (
	// ErrDownloadFailed wraps transport failures from the blob store.
	ErrDownloadFailed = errors.New("download failed")
	// ErrFileTooLarge is returned when the stored file exceeds the byte ceiling.
	ErrFileTooLarge = errors.New("file too large")
)

// BlobStore fetches raw bytes for a stored object.
type BlobStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
}

// Extractor fetches and decodes study files.
type Extractor struct {
	blobs        BlobStore
	maxFileBytes int64
	maxTextChars int
}

// New constructs an Extractor. maxTextChars bounds PDF extraction cost
// per-page; the pipeline applies the same ceiling again after extraction.
func New(blobs BlobStore, maxFileBytes int64, maxTextChars int) *Extractor {
	return &Extractor{blobs: blobs, maxFileBytes: maxFileBytes, maxTextChars: maxTextChars}
}

// Extract downloads the object and returns its decoded text. No retries: a
// failed fetch is surfaced immediately for the orchestrator to handle.
func (e *Extractor) Extract(ctx context.Context, objectKey, mediaType string) (string, error) {
	data, err := e.blobs.Download(ctx, objectKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if int64(len(data)) > e.maxFileBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(data), e.maxFileBytes)
	}

	mt := strings.ToLower(mediaType)
	switch {
	case strings.Contains(mt, "pdf"):
		return e.extractPDF(data)
	case strings.HasPrefix(mt, "text/") || strings.Contains(mt, "markdown"):
		return string(data), nil
	default:
		return strings.ToValidUTF8(string(data), ""), nil
	}
}

// extractPDF pulls plain text page by page, joining pages with newlines and
// stopping early once the accumulated length passes the character ceiling.
func (e *Extractor) extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
		if builder.Len() > e.maxTextChars {
			break
		}
	}
	return builder.String(), nil
}

// Truncate caps text at maxChars without splitting a multi-byte rune.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == maxChars {
			return text[:i]
		}
		count++
	}
	return text
}
