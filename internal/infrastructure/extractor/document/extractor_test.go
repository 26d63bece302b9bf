package document

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractPlainTextNormalizesWhitespace(t *testing.T) {
	e := NewExtractor()

	got, err := e.Extract(context.Background(), "lease.txt", "text/plain", []byte("\xef\xbb\xbf  Lease Agreement \r\n\r\n\r\n 1. Rent  \n"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Lease Agreement\n\n1. Rent" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractDOCXParagraphs(t *testing.T) {
	e := NewExtractor()
	doc := buildDOCX(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:p><w:r><w:t>Supply Agreement</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>The Supplier shall deliver.</w:t></w:r></w:p>`+
		`</w:body></w:document>`)

	got, err := e.Extract(context.Background(), "supply.bin", "application/zip", doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Supply Agreement\nThe Supplier shall deliver." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractHTMLSkipsScripts(t *testing.T) {
	e := NewExtractor()
	page := `<html><head><title>x</title><style>p{}</style></head><body><h1>NDA</h1><script>alert(1)</script><p>Both parties keep secrets.</p></body></html>`

	got, err := e.Extract(context.Background(), "nda.html", "", []byte(page))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "NDA\nBoth parties keep secrets." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractRejectsUnsupportedAndBroken(t *testing.T) {
	e := NewExtractor()
	cases := []struct {
		name     string
		filename string
		mime     string
		data     []byte
	}{
		{name: "image", filename: "scan.png", mime: "image/png", data: []byte("\x89PNG\r\n\x1a\n")},
		{name: "invalid utf8", filename: "a.txt", mime: "text/plain", data: []byte{0xff, 0xfe, 0xfd}},
		{name: "broken pdf", filename: "a.pdf", mime: "application/pdf", data: []byte("not a pdf")},
		{name: "docx without body", filename: "a.docx", mime: "", data: []byte("PK")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Extract(context.Background(), tc.filename, tc.mime, tc.data)
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
