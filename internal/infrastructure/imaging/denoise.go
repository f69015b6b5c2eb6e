package imaging

import (
	"math"

	"github.com/scanwell/digidoc/internal/core/domain"
)

const (
	denoisePatchRadius  = 1 // 3x3 patches
	denoiseSearchRadius = 5
)

// filter strength per configured level; higher smooths more aggressively
var denoiseStrength = map[string]float64{
	"low":    3,
	"medium": 5,
	"high":   7,
}

// denoise applies a non-local-means pass tuned for scanner speckle. Unlike
// bilateral filtering it averages over similar patches rather than similar
// pixels, which keeps fine text strokes that deskew and zone detection
// depend on.
func (n *Normalizer) denoise(r domain.Raster) domain.Raster {
	h := denoiseStrength[n.opts.DenoiseLevel]
	if h == 0 {
		h = denoiseStrength["medium"]
	}
	h2 := h * h

	out := domain.NewRaster(r.Width, r.Height)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			out.Set(x, y, nlmPixel(r, x, y, h2))
		}
	}
	return out
}

func nlmPixel(r domain.Raster, x, y int, h2 float64) uint8 {
	var weightSum, valueSum float64
	for sy := y - denoiseSearchRadius; sy <= y+denoiseSearchRadius; sy++ {
		for sx := x - denoiseSearchRadius; sx <= x+denoiseSearchRadius; sx++ {
			d2 := patchDistance(r, x, y, sx, sy)
			w := math.Exp(-d2 / h2)
			weightSum += w
			valueSum += w * float64(clampAt(r, sx, sy))
		}
	}
	if weightSum == 0 {
		return r.At(x, y)
	}
	return clampPixel(valueSum / weightSum)
}

// patchDistance is the mean squared difference between the patches centered
// on the two pixels.
func patchDistance(r domain.Raster, x1, y1, x2, y2 int) float64 {
	var sum float64
	count := 0
	for dy := -denoisePatchRadius; dy <= denoisePatchRadius; dy++ {
		for dx := -denoisePatchRadius; dx <= denoisePatchRadius; dx++ {
			d := float64(clampAt(r, x1+dx, y1+dy)) - float64(clampAt(r, x2+dx, y2+dy))
			sum += d * d
			count++
		}
	}
	return sum / float64(count)
}
