package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/scanwell/digidoc/internal/core/domain"
)

// Decode turns raw scan bytes into a grayscale raster using ITU-R BT.601
// luminance weights.
func Decode(raw []byte) (domain.Raster, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return domain.Raster{}, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	out := domain.NewRaster(bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := (299*r + 587*g + 114*b) / 1000
			out.Set(x-bounds.Min.X, y-bounds.Min.Y, uint8(lum>>8))
		}
	}
	return out, nil
}

// Codec adapts the package encode/decode helpers to the artifact codec
// used by the processing lifecycle.
type Codec struct{}

func (Codec) Encode(r domain.Raster) ([]byte, error) { return EncodePNG(r) }

func (Codec) Decode(data []byte) (domain.Raster, error) { return DecodePNG(data) }

// EncodePNG serializes a raster for artifact storage.
func EncodePNG(r domain.Raster) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	copy(img.Pix, r.Pix)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePNG restores a stored artifact raster.
func DecodePNG(data []byte) (domain.Raster, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.Raster{}, fmt.Errorf("decode artifact png: %w", err)
	}
	if gray, ok := img.(*image.Gray); ok {
		out := domain.NewRaster(gray.Rect.Dx(), gray.Rect.Dy())
		for y := 0; y < out.Height; y++ {
			copy(out.Pix[y*out.Width:(y+1)*out.Width], gray.Pix[y*gray.Stride:y*gray.Stride+out.Width])
		}
		return out, nil
	}
	bounds := img.Bounds()
	out := domain.NewRaster(bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
		}
	}
	return out, nil
}
