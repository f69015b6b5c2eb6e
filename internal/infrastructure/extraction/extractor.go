// Package extraction pulls field values out of a normalized raster under a
// matched template. The template's zones decide where to look; the
// document's own zones only feed the confidence discount.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scanwell/digidoc/internal/core/domain"
	"github.com/scanwell/digidoc/internal/core/ports"
)

type Extractor struct {
	recognizer ports.TextRecognizer
	logger     *slog.Logger
}

func NewExtractor(recognizer ports.TextRecognizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{recognizer: recognizer, logger: logger}
}

// Extract recognizes every declared field of the template. A field whose
// zone is missing from the template signature, or whose region yields no
// text, still appears in the result with an empty value and zero
// confidence so validation can account for it.
func (e *Extractor) Extract(ctx context.Context, img *domain.NormalizedImage, docSig domain.StructuralSignature, tpl domain.Template) ([]domain.ExtractedField, error) {
	if img == nil || img.Raster.Empty() {
		return nil, fmt.Errorf("extract fields: empty raster")
	}

	fields := make([]domain.ExtractedField, 0, len(tpl.Fields))
	for _, def := range tpl.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		field := domain.ExtractedField{Name: def.Name, Zone: def.Zone}

		zones := tpl.Signature.ZonesOfKind(def.Zone)
		if len(zones) == 0 {
			e.logger.Warn("template declares field in absent zone",
				"template_id", tpl.ID, "field", def.Name, "zone", def.Zone)
			fields = append(fields, field)
			continue
		}
		zone := zones[0]

		region := cropZone(img.Raster, zone)
		if region.Empty() {
			fields = append(fields, field)
			continue
		}

		text, conf, err := e.recognizer.Recognize(ctx, region)
		if err != nil {
			e.logger.Warn("field recognition failed",
				"template_id", tpl.ID, "field", def.Name, "error", err)
			fields = append(fields, field)
			continue
		}

		value, ok := parseValue(def.Type, text)
		if !ok {
			e.logger.Warn("field value failed typed parse",
				"field", def.Name, "type", def.Type, "raw", text)
			field.Value = strings.TrimSpace(text)
			field.Confidence = conf * 0.5 * overlapDiscount(zone, docSig)
			fields = append(fields, field)
			continue
		}

		field.Value = value
		field.Confidence = conf * overlapDiscount(zone, docSig)
		fields = append(fields, field)
	}
	return fields, nil
}

// overlapDiscount maps the best overlap between the template zone and the
// document's observed zones of the same kind into [0.5,1]. A fully aligned
// zone keeps the recognizer confidence; a zone the document never exhibited
// halves it.
func overlapDiscount(zone domain.Zone, docSig domain.StructuralSignature) float64 {
	best := 0.0
	for _, dz := range docSig.ZonesOfKind(zone.Kind) {
		if o := overlapRatio(zone, dz); o > best {
			best = o
		}
	}
	return 0.5 + 0.5*best
}

// overlapRatio is intersection over union of two ratio boxes.
func overlapRatio(a, b domain.Zone) float64 {
	ix := overlap1D(a.X, a.X+a.Width, b.X, b.X+b.Width)
	iy := overlap1D(a.Y, a.Y+a.Height, b.Y, b.Y+b.Height)
	inter := ix * iy
	if inter <= 0 {
		return 0
	}
	union := a.Width*a.Height + b.Width*b.Height - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func overlap1D(a0, a1, b0, b1 float64) float64 {
	lo, hi := a0, a1
	if b0 > lo {
		lo = b0
	}
	if b1 < hi {
		hi = b1
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// cropZone converts a ratio box into pixel coordinates on the raster.
func cropZone(r domain.Raster, z domain.Zone) domain.Raster {
	x0 := int(z.X * float64(r.Width))
	y0 := int(z.Y * float64(r.Height))
	w := int(z.Width*float64(r.Width) + 0.5)
	h := int(z.Height*float64(r.Height) + 0.5)
	return r.Crop(x0, y0, w, h)
}
