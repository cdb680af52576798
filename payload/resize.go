package payload

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// jpegQuality is used when a downscaled JPEG is re-encoded.
const jpegQuality = 92

// Downscale shrinks data so its longer side is at most maxDim, preserving
// the aspect ratio with CatmullRom resampling.
//
// Images already within bounds (or maxDim <= 0) are returned unchanged along
// with their inferred format. JPEG input stays JPEG; everything else is
// re-encoded as PNG.
func Downscale(data []byte, maxDim int) ([]byte, Format, error) {
	format := InferFormat(data)
	if maxDim <= 0 {
		return data, format, nil
	}

	width, height, err := DecodeConfig(data)
	if err != nil {
		return nil, format, err
	}
	if width <= maxDim && height <= maxDim {
		return data, format, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("payload: decode image for resize: %w", err)
	}

	newW, newH := fitWithin(width, height, maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if format == FormatJPEG {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	} else {
		format = FormatPNG
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, format, fmt.Errorf("payload: encode resized image: %w", err)
	}
	return buf.Bytes(), format, nil
}

// fitWithin scales (w, h) so the longer side equals maxDim. Neither side drops below 1.
func fitWithin(w, h, maxDim int) (int, int) {
	if w >= h {
		nh := h * maxDim / w
		return maxDim, max(nh, 1)
	}
	nw := w * maxDim / h
	return max(nw, 1), maxDim
}
