// Package pdftext reads the embedded text layer of PDF sources. Scanned
// image-only PDFs have no such layer; those need upstream rasterization
// before the pipeline can see them.
package pdftext

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText returns the concatenated plain text of every page. An empty
// result means the PDF carries no text layer.
func ExtractText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Extractor is the stateless form used by the processing pipeline's PDF
// fallback.
type Extractor struct{}

func (Extractor) ExtractText(path string) (string, error) {
	return ExtractText(path)
}
