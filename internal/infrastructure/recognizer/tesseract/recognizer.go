// Package tesseract recognizes text in raster regions through the
// tesseract CLI. The binary stays an external dependency so deployments
// can swap engine versions without rebuilding.
package tesseract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/scanwell/digidoc/internal/core/domain"
	"github.com/scanwell/digidoc/internal/infrastructure/imaging"
)

type Config struct {
	Command  string // tesseract binary, default "tesseract"
	Language string // default "eng"
	PSM      int    // page segmentation mode, 0 keeps the engine default
}

type Recognizer struct {
	cfg    Config
	runner Runner
}

func New(cfg Config) *Recognizer {
	if cfg.Command == "" {
		cfg.Command = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Recognizer{cfg: cfg, runner: execRunner{}}
}

// Recognize writes the region to a temp PNG, runs tesseract in TSV mode,
// and blends the engine's mean word confidence with a shape heuristic on
// the recognized text.
func (r *Recognizer) Recognize(ctx context.Context, region domain.Raster) (string, float64, error) {
	data, err := imaging.EncodePNG(region)
	if err != nil {
		return "", 0, fmt.Errorf("encode region: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "digidoc-ocr-*")
	if err != nil {
		return "", 0, err
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "region.png")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", 0, err
	}

	args := []string{path, "stdout", "-l", r.cfg.Language}
	if r.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(r.cfg.PSM))
	}
	args = append(args, "tsv")

	out, errb, err := r.runner.Run(ctx, r.cfg.Command, args...)
	if err != nil {
		return "", 0, fmt.Errorf("tesseract: %w (%s)", err, strings.TrimSpace(string(errb)))
	}

	text, engineConf := parseTSV(string(out))
	return text, blendConfidence(engineConf, text), nil
}

// parseTSV reassembles text from tesseract's TSV output and returns the
// mean word confidence in [0,1]. Rows with conf -1 are structural, not
// words, and are skipped.
func parseTSV(raw string) (string, float64) {
	var words []string
	var sum float64
	var n int

	for i, line := range strings.Split(raw, "\n") {
		if i == 0 || line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		conf, err := strconv.ParseFloat(confStr, 64)
		if err != nil {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		words = append(words, word)
		sum += conf
		n++
	}
	if n == 0 {
		return "", 0
	}
	return strings.Join(words, " "), sum / float64(n) / 100.0
}
