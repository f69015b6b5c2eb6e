package signature

import (
	"testing"

	"github.com/scanwell/digidoc/internal/core/domain"
)

func pageRaster(w, h int) domain.Raster {
	r := domain.NewRaster(w, h)
	for i := range r.Pix {
		r.Pix[i] = 255
	}
	return r
}

func fillRect(r domain.Raster, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			r.Set(x, y, 0)
		}
	}
}

// invoiceRaster draws a canonical invoice layout: a wide header strip,
// a square-ish logo block, a large central table and a footer strip.
func invoiceRaster(w, h int) domain.Raster {
	r := pageRaster(w, h)
	fx := func(ratio float64, dim int) int { return int(ratio * float64(dim)) }
	// header: y 0.05, 0.7 wide, 0.1 tall
	fillRect(r, fx(0.1, w), fx(0.05, h), fx(0.8, w), fx(0.15, h))
	// table: y 0.3, 0.8 wide, 0.45 tall
	fillRect(r, fx(0.1, w), fx(0.3, h), fx(0.9, w), fx(0.75, h))
	// footer: y 0.85, 0.6 wide, 0.08 tall
	fillRect(r, fx(0.2, w), fx(0.85, h), fx(0.8, w), fx(0.93, h))
	return r
}

func TestExtractClassifiesInvoiceZones(t *testing.T) {
	e := NewExtractor()
	sig, err := e.Extract(&domain.NormalizedImage{Raster: invoiceRaster(400, 520)})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if sig.ZoneCount() != 3 {
		t.Fatalf("expected 3 zones, got %d: %+v", sig.ZoneCount(), sig.Zones)
	}

	kinds := make([]domain.ZoneKind, 0, 3)
	for _, z := range sig.Zones {
		kinds = append(kinds, z.Kind)
	}
	want := []domain.ZoneKind{domain.ZoneHeader, domain.ZoneTable, domain.ZoneFooter}
	for i, k := range want {
		if kinds[i] != k {
			t.Fatalf("zone %d: expected %s, got %s (all: %v)", i, k, kinds[i], kinds)
		}
	}
	if sig.ContentRatio <= 0 || sig.ContentRatio > 1 {
		t.Fatalf("content ratio out of range: %v", sig.ContentRatio)
	}
}

func TestExtractIsScaleInvariant(t *testing.T) {
	e := NewExtractor()
	small, err := e.Extract(&domain.NormalizedImage{Raster: invoiceRaster(200, 260)})
	if err != nil {
		t.Fatalf("Extract(small) error = %v", err)
	}
	large, err := e.Extract(&domain.NormalizedImage{Raster: invoiceRaster(600, 780)})
	if err != nil {
		t.Fatalf("Extract(large) error = %v", err)
	}

	if small.ZoneCount() != large.ZoneCount() {
		t.Fatalf("zone counts differ across scales: %d != %d", small.ZoneCount(), large.ZoneCount())
	}
	const tol = 0.02
	for i := range small.Zones {
		a, b := small.Zones[i], large.Zones[i]
		if a.Kind != b.Kind {
			t.Fatalf("zone %d kind differs: %s != %s", i, a.Kind, b.Kind)
		}
		for _, d := range []struct {
			name string
			v    float64
		}{
			{"x", a.X - b.X}, {"y", a.Y - b.Y},
			{"width", a.Width - b.Width}, {"height", a.Height - b.Height},
			{"area", a.Area - b.Area},
		} {
			if d.v > tol || d.v < -tol {
				t.Fatalf("zone %d %s ratio drifted across scales by %v", i, d.name, d.v)
			}
		}
	}
	if diff := small.ContentRatio - large.ContentRatio; diff > tol || diff < -tol {
		t.Fatalf("content ratio drifted across scales by %v", diff)
	}
}

func TestExtractFiltersNoiseBlobs(t *testing.T) {
	r := pageRaster(400, 400)
	// a single 4px speck: well under 0.1% of a 160000px page
	fillRect(r, 10, 10, 12, 12)

	sig, err := NewExtractor().Extract(&domain.NormalizedImage{Raster: r})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if sig.ZoneCount() != 0 {
		t.Fatalf("noise speck should be filtered, got zones %+v", sig.Zones)
	}
	if sig.ContentRatio != 0 {
		t.Fatalf("filtered noise should not count as content, got %v", sig.ContentRatio)
	}
}

func TestExtractBlankPageYieldsEmptySignature(t *testing.T) {
	sig, err := NewExtractor().Extract(&domain.NormalizedImage{Raster: pageRaster(100, 100)})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if sig.ZoneCount() != 0 || sig.ContentRatio != 0 {
		t.Fatalf("blank page should yield empty signature, got %+v", sig)
	}
}

func TestExtractRejectsEmptyRaster(t *testing.T) {
	if _, err := NewExtractor().Extract(&domain.NormalizedImage{}); err == nil {
		t.Fatal("expected error for empty raster")
	}
}

func TestClassifyZoneLogo(t *testing.T) {
	z := domain.Zone{X: 0.05, Y: 0.05, Width: 0.12, Height: 0.1, Area: 0.012}
	if got := classifyZone(z); got != domain.ZoneLogo {
		t.Fatalf("expected logo, got %s", got)
	}
}
