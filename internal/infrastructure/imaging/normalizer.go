package imaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scanwell/digidoc/internal/core/domain"
)

type Options struct {
	TargetDPI            int
	BinarizationMethod   string // "otsu" or "gaussian"
	DenoiseLevel         string // "low", "medium", "high"
	DeskewEnabled        bool
	BorderRemovalEnabled bool
}

func (o Options) normalize() Options {
	out := o
	if out.TargetDPI <= 0 {
		out.TargetDPI = 300
	}
	switch out.BinarizationMethod {
	case "otsu", "gaussian":
	default:
		out.BinarizationMethod = "otsu"
	}
	switch out.DenoiseLevel {
	case "low", "medium", "high":
	default:
		out.DenoiseLevel = "medium"
	}
	return out
}

// Normalizer runs the fixed preprocessing pipeline:
// deskew, denoise, binarize, scale-normalize, border removal.
// The order is a correctness requirement; later steps assume earlier ones
// already ran. Steps that cannot converge log a warning and pass the
// raster through unmodified.
type Normalizer struct {
	opts   Options
	logger *slog.Logger
}

func NewNormalizer(opts Options, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{opts: opts.normalize(), logger: logger}
}

func (n *Normalizer) Normalize(ctx context.Context, raw []byte) (*domain.NormalizedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raster, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if raster.Empty() {
		return nil, fmt.Errorf("decoded raster is empty")
	}

	angle := 0.0
	if n.opts.DeskewEnabled {
		raster, angle = n.deskew(raster)
	}
	raster = n.denoise(raster)
	raster = n.binarize(raster)

	sourceDPI := estimateSourceDPI(raster.Width)
	raster = n.normalizeScale(raster, sourceDPI)

	if n.opts.BorderRemovalEnabled {
		raster = n.removeBorders(raster)
	}

	return &domain.NormalizedImage{
		Raster:          raster,
		SkewAngle:       angle,
		SourceDPI:       sourceDPI,
		ThresholdMethod: n.opts.BinarizationMethod,
	}, nil
}

// estimateSourceDPI assumes letter-width scans and snaps to common scanner
// resolutions. Scans outside the plausible range fall back to 200 DPI, the
// most common document-scanner default.
func estimateSourceDPI(width int) int {
	raw := float64(width) / 8.5
	common := []int{100, 150, 200, 240, 300, 400, 600}
	best, bestDiff := 200, 1e18
	for _, dpi := range common {
		diff := abs64(raw - float64(dpi))
		if diff < bestDiff {
			best, bestDiff = dpi, diff
		}
	}
	if raw < 50 || raw > 900 {
		return 200
	}
	return best
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
