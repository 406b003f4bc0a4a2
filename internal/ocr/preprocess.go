package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Preprocess converts img to grayscale and, when factor > 1, enlarges it
// with Catmull-Rom resampling. UI labels in screen recordings are small;
// both OCR engines read them more reliably at 2x.
func Preprocess(img image.Image, factor int) *image.Gray {
	b := img.Bounds()
	if factor < 2 {
		gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
		return gray
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.CatmullRom.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	return gray
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame as PNG: %w", err)
	}
	return buf.Bytes(), nil
}
