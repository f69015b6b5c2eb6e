package imaging

import (
	"math"

	"github.com/scanwell/digidoc/internal/core/domain"
)

const (
	deskewMinAngle   = 0.5  // degrees; smaller corrections are noise
	deskewMaxAngle   = 45.0 // text rotation is normalized into this range
	deskewAngleStep  = 0.25 // accumulator resolution in degrees
	houghVoteFloor   = 100  // minimum votes for a line to count
	edgeGradientMin  = 60   // gradient magnitude for an edge pixel
	maxEdgeSamples   = 20000
)

// deskew detects the dominant text-line angle with a Hough-style vote over
// edge pixels and rotates the raster to correct it. Returns the corrected
// raster and the detected angle in degrees. When no dominant line emerges
// the raster passes through unmodified.
func (n *Normalizer) deskew(r domain.Raster) (domain.Raster, float64) {
	edges := edgePoints(r)
	if len(edges) < houghVoteFloor {
		n.logger.Warn("deskew: too few edge pixels, passing image through", "edges", len(edges))
		return r, 0
	}

	angle, ok := dominantLineAngle(edges, r.Width)
	if !ok {
		n.logger.Warn("deskew: no dominant line angle detected, passing image through")
		return r, 0
	}
	if math.Abs(angle) < deskewMinAngle {
		return r, 0
	}
	return rotate(r, -angle), angle
}

type point struct{ x, y int }

// edgePoints samples pixels with a strong vertical gradient, which trace the
// top and bottom contours of text lines. Sampling is strided so the vote
// stays bounded on large scans but remains deterministic.
func edgePoints(r domain.Raster) []point {
	total := r.Width * r.Height
	stride := 1
	if total > maxEdgeSamples*8 {
		stride = total / (maxEdgeSamples * 8)
		if stride < 1 {
			stride = 1
		}
	}

	var pts []point
	for y := 1; y < r.Height-1; y += stride {
		for x := 1; x < r.Width-1; x++ {
			gy := int(r.At(x, y+1)) - int(r.At(x, y-1))
			if gy < 0 {
				gy = -gy
			}
			if gy >= edgeGradientMin {
				pts = append(pts, point{x, y})
				if len(pts) >= maxEdgeSamples {
					return pts
				}
			}
		}
	}
	return pts
}

// dominantLineAngle votes each edge point's projected offset for every
// candidate angle and picks the angle whose projection is most concentrated.
// This is the projection form of a Hough transform restricted to
// near-horizontal lines.
func dominantLineAngle(pts []point, width int) (float64, bool) {
	steps := int(2*deskewMaxAngle/deskewAngleStep) + 1
	bestAngle, bestScore := 0.0, 0.0

	for i := 0; i < steps; i++ {
		angle := -deskewMaxAngle + float64(i)*deskewAngleStep
		rad := angle * math.Pi / 180
		tan := math.Tan(rad)

		// project each point onto the axis perpendicular to the candidate
		// angle and histogram the offsets
		bins := make(map[int]int)
		for _, p := range pts {
			offset := float64(p.y) - float64(p.x)*tan
			bins[int(offset)]++
		}

		// concentration score: sum of squared bin counts rewards many
		// points collapsing onto few lines
		score := 0.0
		peak := 0
		for _, c := range bins {
			score += float64(c) * float64(c)
			if c > peak {
				peak = c
			}
		}
		if peak < houghVoteFloor/10 {
			continue
		}
		if score > bestScore {
			bestScore = score
			bestAngle = angle
		}
	}

	if bestScore == 0 {
		return 0, false
	}
	return bestAngle, true
}

// rotate applies a rotation about the raster center with bilinear sampling
// and replicated borders.
func rotate(r domain.Raster, degrees float64) domain.Raster {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(r.Width)/2, float64(r.Height)/2

	out := domain.NewRaster(r.Width, r.Height)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			sx := cos*dx + sin*dy + cx
			sy := -sin*dx + cos*dy + cy
			out.Set(x, y, sampleBilinear(r, sx, sy))
		}
	}
	return out
}

func sampleBilinear(r domain.Raster, x, y float64) uint8 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	p00 := float64(clampAt(r, x0, y0))
	p10 := float64(clampAt(r, x0+1, y0))
	p01 := float64(clampAt(r, x0, y0+1))
	p11 := float64(clampAt(r, x0+1, y0+1))

	top := p00*(1-fx) + p10*fx
	bot := p01*(1-fx) + p11*fx
	v := top*(1-fy) + bot*fy
	return clampPixel(v)
}

func clampAt(r domain.Raster, x, y int) uint8 {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= r.Width {
		x = r.Width - 1
	}
	if y >= r.Height {
		y = r.Height - 1
	}
	return r.At(x, y)
}

func clampPixel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
