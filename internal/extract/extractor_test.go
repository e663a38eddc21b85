package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// buildDocx assembles a minimal valid .docx: a zip with [Content_Types].xml
// and a word/document.xml whose paragraphs carry the given texts.
func buildDocx(t *testing.T, texts ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	ct, err := zw.Create(contentTypesPath)
	if err != nil {
		t.Fatalf("create content types: %v", err)
	}
	_, _ = ct.Write([]byte(`<?xml version="1.0"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override PartName="/word/document.xml" ContentType="` + docxMainContentType + `"/>
</Types>`))

	doc, err := zw.Create(docxDocumentXMLPath)
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}
	var body strings.Builder
	body.WriteString(`<?xml version="1.0"?><w:document><w:body>`)
	for _, text := range texts {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)
	_, _ = doc.Write([]byte(body.String()))

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor()
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("FIR No.: 123/2024\nDate: 12-05-2024\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got, "FIR No.: 123/2024") {
		t.Errorf("got = %q", got)
	}
}

func TestExtractPlainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte{'o', 'k', 0xff, 0xfe}, ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if !strings.HasPrefix(got, "ok") || strings.Contains(got, "\xff") {
		t.Errorf("invalid bytes not sanitized: %q", got)
	}
}

func TestExtractDocx(t *testing.T) {
	e := NewExtractor()
	content := buildDocx(t, "Crime No. 45/2024", "Statement under section 161 Cr.P.C.")
	got, err := e.ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if !strings.Contains(got, "Crime No. 45/2024") || !strings.Contains(got, "section 161") {
		t.Errorf("got = %q", got)
	}
}

func TestExtractDocxNotAZip(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("this is not a zip"), ".docx"); err == nil {
		t.Fatal("expected error for non-zip docx")
	}
}

func TestExtractPDFInvalid(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("%PDF-nope"), ".pdf"); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}

func TestExtractMissingFile(t *testing.T) {
	e := NewExtractor()
	if _, err := e.Extract(filepath.Join(t.TempDir(), "absent.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
