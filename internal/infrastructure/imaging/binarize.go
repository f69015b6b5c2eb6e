package imaging

import (
	"math"

	"github.com/scanwell/digidoc/internal/core/domain"
)

const (
	gaussianRadius = 5
	gaussianSigma  = 2.0
	gaussianC      = 2.0
)

// binarize converts the raster to pure black text on white background using
// the configured thresholding method.
func (n *Normalizer) binarize(r domain.Raster) domain.Raster {
	switch n.opts.BinarizationMethod {
	case "gaussian":
		return binarizeAdaptiveGaussian(r)
	default:
		return binarizeOtsu(r)
	}
}

// binarizeOtsu picks the global threshold maximizing between-class variance.
func binarizeOtsu(r domain.Raster) domain.Raster {
	var hist [256]int
	for _, p := range r.Pix {
		hist[p]++
	}
	total := len(r.Pix)

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}

	var sumB, wB float64
	threshold, bestVar := 0, -1.0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			threshold = t
		}
	}
	return applyThreshold(r, func(x, y int) uint8 { return uint8(threshold) })
}

// binarizeAdaptiveGaussian thresholds each pixel against the
// Gaussian-weighted local mean, adapting to uneven scanner lighting.
func binarizeAdaptiveGaussian(r domain.Raster) domain.Raster {
	blurred := gaussianBlur(r, gaussianRadius, gaussianSigma)
	return applyThreshold(r, func(x, y int) uint8 {
		local := float64(blurred.At(x, y)) - gaussianC
		if local < 0 {
			local = 0
		}
		return uint8(local)
	})
}

func applyThreshold(r domain.Raster, thresholdAt func(x, y int) uint8) domain.Raster {
	out := domain.NewRaster(r.Width, r.Height)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if r.At(x, y) > thresholdAt(x, y) {
				out.Set(x, y, 255)
			}
		}
	}
	return out
}

// gaussianBlur is a separable Gaussian convolution with replicated borders.
func gaussianBlur(r domain.Raster, radius int, sigma float64) domain.Raster {
	kernel := make([]float64, 2*radius+1)
	var norm float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		norm += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= norm
	}

	horiz := domain.NewRaster(r.Width, r.Height)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			var acc float64
			for i, k := range kernel {
				acc += k * float64(clampAt(r, x+i-radius, y))
			}
			horiz.Set(x, y, clampPixel(acc))
		}
	}

	out := domain.NewRaster(r.Width, r.Height)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			var acc float64
			for i, k := range kernel {
				acc += k * float64(clampAt(horiz, x, y+i-radius))
			}
			out.Set(x, y, clampPixel(acc))
		}
	}
	return out
}
