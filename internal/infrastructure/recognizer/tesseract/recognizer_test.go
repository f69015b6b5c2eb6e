package tesseract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scanwell/digidoc/internal/core/domain"
)

type stubRunner struct {
	stdout string
	stderr string
	err    error
	args   []string
}

func (s *stubRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	s.args = args
	return []byte(s.stdout), []byte(s.stderr), s.err
}

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"

func tsvLine(conf, text string) string {
	return strings.Join([]string{"5", "1", "1", "1", "1", "1", "10", "10", "50", "20", conf, text}, "\t")
}

func region() domain.Raster {
	r := domain.NewRaster(8, 8)
	for i := range r.Pix {
		r.Pix[i] = 255
	}
	return r
}

func TestRecognizeParsesTSVWordsAndConfidence(t *testing.T) {
	runner := &stubRunner{stdout: strings.Join([]string{
		tsvHeader,
		tsvLine("-1", ""), // block row, no word
		tsvLine("96", "Total:"),
		tsvLine("92", "$162.00"),
	}, "\n")}
	r := New(Config{})
	r.runner = runner

	text, conf, err := r.Recognize(context.Background(), region())
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "Total: $162.00" {
		t.Fatalf("unexpected text %q", text)
	}
	// engine mean 0.94 blended 70/30 with the heuristic
	if conf < 0.8 || conf > 1.0 {
		t.Fatalf("unexpected confidence %v", conf)
	}
	if runner.args[len(runner.args)-1] != "tsv" {
		t.Fatalf("expected tsv output mode, args = %v", runner.args)
	}
}

func TestRecognizeEmptyOutputZeroConfidence(t *testing.T) {
	r := New(Config{})
	r.runner = &stubRunner{stdout: tsvHeader + "\n"}

	text, conf, err := r.Recognize(context.Background(), region())
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "" || conf != 0 {
		t.Fatalf("blank region should yield empty zero-confidence result, got %q %v", text, conf)
	}
}

func TestRecognizeSurfacesEngineFailure(t *testing.T) {
	r := New(Config{})
	r.runner = &stubRunner{err: errors.New("exit status 1"), stderr: "could not initialize tesseract"}

	_, _, err := r.Recognize(context.Background(), region())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "could not initialize tesseract") {
		t.Fatalf("stderr should be surfaced, got %v", err)
	}
}

func TestRecognizePassesLanguageAndPSM(t *testing.T) {
	runner := &stubRunner{stdout: tsvHeader}
	r := New(Config{Language: "deu", PSM: 6})
	r.runner = runner

	if _, _, err := r.Recognize(context.Background(), region()); err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	joined := strings.Join(runner.args, " ")
	if !strings.Contains(joined, "-l deu") || !strings.Contains(joined, "--psm 6") {
		t.Fatalf("expected language and psm flags, got %v", runner.args)
	}
}

func TestHeuristicConfidenceRewardsDocumentShapes(t *testing.T) {
	garbled := heuristicConfidence("xq zzv ##@@")
	invoice := heuristicConfidence("Invoice 2024-03-15 Total $1,234.00 USD")
	if invoice <= garbled {
		t.Fatalf("document-shaped text should score higher: %v <= %v", invoice, garbled)
	}
}
