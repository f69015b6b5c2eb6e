package imaging

import (
	"math"

	"github.com/scanwell/digidoc/internal/core/domain"
)

// normalizeScale resamples the raster to the configured target DPI with a
// cubic (Catmull-Rom) kernel, preserving aspect ratio.
func (n *Normalizer) normalizeScale(r domain.Raster, sourceDPI int) domain.Raster {
	if sourceDPI == n.opts.TargetDPI || sourceDPI <= 0 {
		return r
	}
	factor := float64(n.opts.TargetDPI) / float64(sourceDPI)
	newW := int(float64(r.Width)*factor + 0.5)
	newH := int(float64(r.Height)*factor + 0.5)
	if newW < 1 || newH < 1 {
		n.logger.Warn("scale normalization would collapse raster, passing image through",
			"source_dpi", sourceDPI, "target_dpi", n.opts.TargetDPI)
		return r
	}
	return resizeCubic(r, newW, newH)
}

func resizeCubic(r domain.Raster, newW, newH int) domain.Raster {
	out := domain.NewRaster(newW, newH)
	scaleX := float64(r.Width) / float64(newW)
	scaleY := float64(r.Height) / float64(newH)

	for y := 0; y < newH; y++ {
		srcY := (float64(y)+0.5)*scaleY - 0.5
		for x := 0; x < newW; x++ {
			srcX := (float64(x)+0.5)*scaleX - 0.5
			out.Set(x, y, sampleCubic(r, srcX, srcY))
		}
	}
	return out
}

func sampleCubic(r domain.Raster, x, y float64) uint8 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	var rows [4]float64
	for j := 0; j < 4; j++ {
		var cols [4]float64
		for i := 0; i < 4; i++ {
			cols[i] = float64(clampAt(r, x0+i-1, y0+j-1))
		}
		rows[j] = catmullRom(cols, fx)
	}
	return clampPixel(catmullRom(rows, fy))
}

func catmullRom(p [4]float64, t float64) float64 {
	return p[1] + 0.5*t*(p[2]-p[0]+t*(2*p[0]-5*p[1]+4*p[2]-p[3]+t*(3*(p[1]-p[2])+p[3]-p[0])))
}
