package imaging

import "github.com/scanwell/digidoc/internal/core/domain"

const (
	borderContentMax = 240  // pixels darker than this count as content
	borderPadRatio   = 0.05 // padding added around the content box
	borderPadMin     = 10   // pixels
)

// removeBorders crops uniform scan margins to the padded bounding box of
// the detected content. When no content is found the raster passes through
// unmodified.
func (n *Normalizer) removeBorders(r domain.Raster) domain.Raster {
	minX, minY := r.Width, r.Height
	maxX, maxY := -1, -1

	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if r.At(x, y) <= borderContentMax {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if maxX < 0 {
		n.logger.Warn("border removal: no content detected, passing image through")
		return r
	}

	w := maxX - minX + 1
	h := maxY - minY + 1
	padX := borderPadMin
	if p := int(float64(w) * borderPadRatio); p > padX {
		padX = p
	}
	padY := borderPadMin
	if p := int(float64(h) * borderPadRatio); p > padY {
		padY = p
	}

	cropped := r.Crop(minX-padX, minY-padY, w+2*padX, h+2*padY)
	if cropped.Empty() {
		return r
	}
	return cropped
}
