package payload

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register decoders for DecodeConfig
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format is an image container format identified from magic bytes.
type Format string

// Known container formats.
const (
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatUnknown Format = "unknown"
)

var (
	pngMagic    = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic   = []byte{0xff, 0xd8, 0xff}
	gif87Magic  = []byte("GIF87a")
	gif89Magic  = []byte("GIF89a")
	riffMagic   = []byte("RIFF")
	webpMagic   = []byte("WEBP")
	bmpMagic    = []byte("BM")
	tiffLEMagic = []byte{'I', 'I', 0x2a, 0x00}
	tiffBEMagic = []byte{'M', 'M', 0x00, 0x2a}
)

// InferFormat identifies the container format from the leading bytes.
// Unrecognized data yields FormatUnknown; it is never rejected.
func InferFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG
	case bytes.HasPrefix(data, gif87Magic), bytes.HasPrefix(data, gif89Magic):
		return FormatGIF
	case len(data) >= 12 && bytes.Equal(data[0:4], riffMagic) && bytes.Equal(data[8:12], webpMagic):
		return FormatWebP
	case bytes.HasPrefix(data, tiffLEMagic), bytes.HasPrefix(data, tiffBEMagic):
		return FormatTIFF
	case bytes.HasPrefix(data, bmpMagic) && len(data) >= 14:
		return FormatBMP
	default:
		return FormatUnknown
	}
}

// OrPNG returns f, or FormatPNG when f is unknown. The service emits PNG
// unless the header says otherwise.
func (f Format) OrPNG() Format {
	if f == FormatUnknown || f == "" {
		return FormatPNG
	}
	return f
}

// MIMEType returns the image/* MIME type for f. Unknown formats map to image/png.
func (f Format) MIMEType() string {
	return "image/" + string(f.OrPNG())
}

// Extension returns the conventional file extension, including the dot.
func (f Format) Extension() string {
	switch f.OrPNG() {
	case FormatJPEG:
		return ".jpg"
	case FormatTIFF:
		return ".tif"
	default:
		return "." + string(f.OrPNG())
	}
}

// FormatFromHint maps a file extension ("jpg", ".PNG") or MIME type
// ("image/webp") onto a Format.
func FormatFromHint(hint string) Format {
	h := strings.ToLower(strings.TrimSpace(hint))
	h = strings.TrimPrefix(h, "image/")
	h = strings.TrimPrefix(h, ".")
	if i := strings.IndexAny(h, ";+"); i >= 0 {
		h = h[:i]
	}

	switch h {
	case "png":
		return FormatPNG
	case "jpg", "jpeg", "jpe":
		return FormatJPEG
	case "gif":
		return FormatGIF
	case "webp":
		return FormatWebP
	case "bmp", "x-ms-bmp":
		return FormatBMP
	case "tif", "tiff":
		return FormatTIFF
	default:
		return FormatUnknown
	}
}

// DecodeConfig returns the pixel dimensions from the container header without
// decoding the full image.
func DecodeConfig(data []byte) (width, height int, err error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("payload: empty image data")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("payload: read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
