package pdftext

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractTextMissingFile(t *testing.T) {
	if _, err := ExtractText(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractTextRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a.pdf")
	if err := os.WriteFile(path, []byte("plain text, no pdf header"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := ExtractText(path); err == nil {
		t.Fatal("expected error for a file without a PDF structure")
	}
}
