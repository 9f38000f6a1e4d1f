// Package imageproc decodes uploaded plate photos and converts them to the
// formats the store and the classifier need.
package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // register PNG decoder for uploads
	"io"

	_ "golang.org/x/image/webp" // register WebP decoder for uploads

	"golang.org/x/image/draw"

	"github.com/baseera/baseera-go/internal/errors"
)

// jpegQuality is used for all persisted images.
const jpegQuality = 90

// Decode parses the raw upload bytes into an image. JPEG, PNG and WebP inputs
// are accepted.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryImageDecode).
			Context("size_bytes", len(data)).
			Build()
	}
	return img, nil
}

// ToRGB flattens any input image to a 3-channel RGBA image with an opaque
// alpha channel. Transparent regions are composited onto white.
func ToRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Over)
	return out
}

// Resize scales img to a square of the given size using Catmull-Rom
// interpolation, the slow but accurate kernel.
func Resize(img image.Image, size int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Over, nil)
	return out
}

// EncodeJPEG writes img to w as a baseline JPEG.
func EncodeJPEG(w io.Writer, img image.Image) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return errors.New(err).
			Category(errors.CategoryImageEncode).
			Build()
	}
	return nil
}

// ToTensor resizes img to size x size and returns a float32 slice laid out in
// NHWC order with shape (1, size, size, 3). Channel values are scaled to the
// 0..1 range.
func ToTensor(img image.Image, size int) []float32 {
	rgb := Resize(ToRGB(img), size)

	out := make([]float32, 1*size*size*3)

	// iterate rows (y) then columns (x) so memory layout matches NHWC
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r32, g32, b32, _ := rgb.At(x, y).RGBA()
			// Convert 16-bit color to 8-bit
			r := float32(r32 >> 8)
			g := float32(g32 >> 8)
			b := float32(b32 >> 8)

			base := ((y * size) + x) * 3
			out[base+0] = r / 255.0
			out[base+1] = g / 255.0
			out[base+2] = b / 255.0
		}
	}

	return out
}
