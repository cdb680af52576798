package payload

import (
	"encoding/base64"
	"strings"
	"unicode"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
)

// Encoding is the textual representation of image bytes on the wire.
type Encoding string

// Supported encodings.
const (
	EncodingRaw     Encoding = "raw"
	EncodingBase64  Encoding = "base64"
	EncodingDataURI Encoding = "data-uri"
)

// ParseEncoding validates an encoding name from configuration.
// "datauri" and "data_uri" are accepted as aliases.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "base64", "b64":
		return EncodingBase64, nil
	case "data-uri", "datauri", "data_uri":
		return EncodingDataURI, nil
	case "raw":
		return EncodingRaw, nil
	default:
		return "", core.ErrInvalidValue("embed encoding", s, "must be base64 or data-uri")
	}
}

// Encode renders data as base64 or as a data:image/<type>;base64, URI.
// hint is a file extension or MIME type naming the format. When empty, or
// when it names nothing known, the format is inferred from magic bytes with a
// PNG fallback.
func Encode(data []byte, target Encoding, hint string) (string, error) {
	if len(data) == 0 {
		return "", &core.EncodingError{Reason: "image data is empty"}
	}

	switch target {
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(data), nil
	case EncodingDataURI:
		format := FormatFromHint(hint)
		if format == FormatUnknown {
			format = InferFormat(data)
		}
		return "data:" + format.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	default:
		return "", &core.EncodingError{Reason: "unsupported target encoding " + string(target)}
	}
}

// Decode turns base64 or data-URI text back into bytes.
//
// A data-URI style prefix ("<anything>,") is stripped whenever a comma is
// present, so "image/png,<data>" list entries decode too. Embedded whitespace
// and missing padding are tolerated. EncodingRaw returns the text bytes unchanged.
func Decode(text string, declared Encoding) ([]byte, error) {
	if declared == EncodingRaw {
		return []byte(text), nil
	}

	body := strings.TrimSpace(text)
	if i := strings.IndexByte(body, ','); i >= 0 {
		body = body[i+1:]
	} else if declared == EncodingDataURI {
		return nil, &core.DecodingError{Reason: "data URI has no comma separator"}
	}

	body = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, body)
	body = strings.TrimRight(body, "=")
	if body == "" {
		return nil, &core.DecodingError{Reason: "no base64 payload"}
	}

	data, err := base64.RawStdEncoding.DecodeString(body)
	if err != nil {
		// URL-safe alphabet from some storage backends.
		var urlErr error
		data, urlErr = base64.RawURLEncoding.DecodeString(body)
		if urlErr != nil {
			return nil, &core.DecodingError{Reason: "malformed base64", Err: err}
		}
	}
	if len(data) == 0 {
		return nil, &core.DecodingError{Reason: "decoded payload is empty"}
	}
	return data, nil
}

// IsDataURI reports whether s starts with a data: scheme.
func IsDataURI(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}
