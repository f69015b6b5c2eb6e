// Package signature derives scale-invariant structural descriptors from
// normalized document rasters. Zones are stored as ratios of the image
// dimensions so the same layout produces the same signature at any
// scanner resolution.
package signature

import (
	"fmt"
	"sort"

	"github.com/scanwell/digidoc/internal/core/domain"
)

const (
	// components smaller than 0.1% of the image are treated as noise
	minBlobAreaRatio = 0.001
	// binarized rasters hold 0/255, but thresholding here keeps the
	// extractor usable on plain grayscale input too
	contentThreshold = 128
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract detects contiguous content regions, classifies each as a layout
// zone and converts every coordinate to a ratio. Zones come back ordered
// top to bottom. A blank page yields an empty, valid signature.
func (e *Extractor) Extract(img *domain.NormalizedImage) (domain.StructuralSignature, error) {
	if img == nil || img.Raster.Empty() {
		return domain.StructuralSignature{}, fmt.Errorf("extract signature: empty raster")
	}
	r := img.Raster
	w, h := r.Width, r.Height
	imageArea := float64(w * h)
	minArea := imageArea * minBlobAreaRatio

	comps := connectedComponents(r)

	var zones []domain.Zone
	var contentPixels float64
	for _, c := range comps {
		if float64(c.pixels) < minArea {
			continue
		}
		contentPixels += float64(c.pixels)

		zone := domain.Zone{
			X:      float64(c.minX) / float64(w),
			Y:      float64(c.minY) / float64(h),
			Width:  float64(c.maxX-c.minX+1) / float64(w),
			Height: float64(c.maxY-c.minY+1) / float64(h),
			Area:   float64(c.pixels) / imageArea,
		}
		zone.Kind = classifyZone(zone)
		zones = append(zones, zone)
	}

	sort.SliceStable(zones, func(i, j int) bool { return zones[i].Y < zones[j].Y })

	sig := domain.StructuralSignature{
		Zones:        zones,
		ContentRatio: contentPixels / imageArea,
	}
	if err := sig.Validate(); err != nil {
		return domain.StructuralSignature{}, fmt.Errorf("extract signature: %w", err)
	}
	return sig, nil
}

// classifyZone assigns a zone kind from its relative position and shape.
// Rules are ordered; the first match wins.
func classifyZone(z domain.Zone) domain.ZoneKind {
	switch {
	case z.Y < 0.2 && z.Width > 0.5 && z.Height < 0.3:
		return domain.ZoneHeader
	case z.Y > 0.7 && z.Width > 0.5 && z.Height < 0.3:
		return domain.ZoneFooter
	case z.Y >= 0.2 && z.Y <= 0.7 && z.Width > 0.6 && z.Height > 0.3 && z.Area > 0.1:
		return domain.ZoneTable
	case z.Y < 0.3 && z.Area < 0.05 && absDiff(z.Width, z.Height) < 0.1:
		return domain.ZoneLogo
	default:
		return domain.ZoneOther
	}
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

type component struct {
	minX, minY, maxX, maxY int
	pixels                 int
}

// connectedComponents labels 8-connected dark regions with an iterative
// flood fill. The explicit stack keeps large regions from blowing the
// goroutine stack.
func connectedComponents(r domain.Raster) []component {
	w, h := r.Width, r.Height
	visited := make([]bool, w*h)
	var comps []component
	var stack []int

	for start := 0; start < w*h; start++ {
		if visited[start] || r.Pix[start] >= contentThreshold {
			continue
		}
		c := component{minX: w, minY: h, maxX: -1, maxY: -1}
		stack = stack[:0]
		stack = append(stack, start)
		visited[start] = true

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%w, idx/w

			c.pixels++
			if x < c.minX {
				c.minX = x
			}
			if x > c.maxX {
				c.maxX = x
			}
			if y < c.minY {
				c.minY = y
			}
			if y > c.maxY {
				c.maxY = y
			}

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					nidx := ny*w + nx
					if !visited[nidx] && r.Pix[nidx] < contentThreshold {
						visited[nidx] = true
						stack = append(stack, nidx)
					}
				}
			}
		}
		comps = append(comps, c)
	}
	return comps
}
