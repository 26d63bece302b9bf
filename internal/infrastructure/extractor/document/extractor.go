package document

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const (
	mimePlain = "text/plain"
	mimeHTML  = "text/html"
	mimePDF   = "application/pdf"
	mimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Extractor turns an uploaded contract into plain text. Plain text, PDF,
// DOCX and HTML uploads are supported.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch kind := detectKind(filename, mimeType, data); kind {
	case mimePlain:
		text, err = extractPlain(data)
	case mimeHTML:
		text, err = extractHTML(data)
	case mimePDF:
		text, err = extractPDF(data)
	case mimeDOCX:
		text, err = extractDOCX(data)
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported document type %q", kind))
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("%s: %w", filename, err))
	}
	return normalizeWhitespace(text), nil
}

func detectKind(filename, mimeType string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".html", ".htm":
		return mimeHTML
	case ".txt", ".md":
		return mimePlain
	}

	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == "" || clean == "application/octet-stream" {
		clean = strings.Split(http.DetectContentType(data), ";")[0]
	}
	switch {
	case clean == mimePDF, clean == mimeDOCX, clean == mimeHTML:
		return clean
	case clean == "application/zip" && isDOCX(data):
		return mimeDOCX
	case strings.HasPrefix(clean, "text/"):
		return mimePlain
	default:
		return clean
	}
}

func extractPlain(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid UTF-8")
	}
	return string(data), nil
}

// normalizeWhitespace trims lines and collapses runs of blank lines.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
