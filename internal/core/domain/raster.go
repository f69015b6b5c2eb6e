package domain

// Raster is a single-channel 8-bit image buffer. Pixel (x, y) lives at
// Pix[y*Width+x]. It is the only pixel-level representation that crosses
// component boundaries; everything downstream of signature extraction works
// in ratios, never pixels.
type Raster struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewRaster(width, height int) Raster {
	return Raster{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

func (r Raster) At(x, y int) uint8 {
	return r.Pix[y*r.Width+x]
}

func (r Raster) Set(x, y int, v uint8) {
	r.Pix[y*r.Width+x] = v
}

func (r Raster) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

// Crop returns a copy of the rectangle clamped to the raster bounds.
func (r Raster) Crop(x, y, w, h int) Raster {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > r.Width {
		w = r.Width - x
	}
	if y+h > r.Height {
		h = r.Height - y
	}
	if w <= 0 || h <= 0 {
		return Raster{}
	}
	out := NewRaster(w, h)
	for row := 0; row < h; row++ {
		copy(out.Pix[row*w:(row+1)*w], r.Pix[(y+row)*r.Width+x:(y+row)*r.Width+x+w])
	}
	return out
}
