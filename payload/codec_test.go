package payload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
)

// pngHeader is the 8-byte PNG signature plus two bytes, the smallest payload
// the service has been seen to return in tests.
var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{0x00},
		{0xff, 0xfe},
		pngHeader,
		[]byte("plain text is just bytes"),
		bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 1000),
	}

	for _, enc := range []Encoding{EncodingBase64, EncodingDataURI} {
		for i, in := range inputs {
			text, err := Encode(in, enc, "")
			if err != nil {
				t.Fatalf("Encode(#%d, %s) error = %v", i, enc, err)
			}
			out, err := Decode(text, enc)
			if err != nil {
				t.Fatalf("Decode(#%d, %s) error = %v", i, enc, err)
			}
			if !bytes.Equal(in, out) {
				t.Errorf("round trip #%d via %s mismatch", i, enc)
			}
		}
	}
}

func TestEncodeDataURIMime(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		hint string
		want string
	}{
		{"png inferred", pngHeader, "", "data:image/png;base64,"},
		{"jpeg inferred", []byte{0xff, 0xd8, 0xff, 0xe0}, "", "data:image/jpeg;base64,"},
		{"unknown falls back to png", []byte("????"), "", "data:image/png;base64,"},
		{"extension hint", []byte("????"), ".jpg", "data:image/jpeg;base64,"},
		{"mime hint", []byte("????"), "image/webp", "data:image/webp;base64,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.data, EncodingDataURI, tt.hint)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("Encode() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	var encErr *core.EncodingError

	if _, err := Encode(nil, EncodingBase64, ""); !errors.As(err, &encErr) {
		t.Errorf("Encode(nil) error = %v, want EncodingError", err)
	}
	if _, err := Encode([]byte{1}, EncodingRaw, ""); !errors.As(err, &encErr) {
		t.Errorf("Encode(raw) error = %v, want EncodingError", err)
	}
}

func TestDecodeTolerance(t *testing.T) {
	want := []byte("hello, try-on")
	std := base64.StdEncoding.EncodeToString(want)

	tests := []struct {
		name     string
		text     string
		declared Encoding
	}{
		{"plain", std, EncodingBase64},
		{"missing padding", strings.TrimRight(std, "="), EncodingBase64},
		{"embedded newlines", std[:4] + "\n" + std[4:8] + "\r\n " + std[8:], EncodingBase64},
		{"surrounding whitespace", "  " + std + "\n", EncodingBase64},
		{"data uri", "data:image/png;base64," + std, EncodingDataURI},
		{"data uri declared base64", "data:image/png;base64," + std, EncodingBase64},
		{"mime comma prefix", "image/png," + std, EncodingBase64},
		{"url-safe alphabet", base64.RawURLEncoding.EncodeToString([]byte{0xfb, 0xff, 0xfe}), EncodingBase64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.text, tt.declared)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if tt.name == "url-safe alphabet" {
				if !bytes.Equal(got, []byte{0xfb, 0xff, 0xfe}) {
					t.Errorf("Decode() = %x", got)
				}
				return
			}
			if !bytes.Equal(got, want) {
				t.Errorf("Decode() = %q, want %q", got, want)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		declared Encoding
	}{
		{"data uri without comma", "data:image/png;base64", EncodingDataURI},
		{"empty", "", EncodingBase64},
		{"only prefix", "data:image/png;base64,", EncodingBase64},
		{"illegal characters", "!!!not base64!!!", EncodingBase64},
		{"truncated quantum", "A", EncodingBase64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.text, tt.declared)
			var decErr *core.DecodingError
			if !errors.As(err, &decErr) {
				t.Errorf("Decode(%q) error = %v, want DecodingError", tt.text, err)
			}
		})
	}
}

func TestDecodeRawPassesThrough(t *testing.T) {
	got, err := Decode("not,base64 at all", EncodingRaw)
	if err != nil {
		t.Fatalf("Decode(raw) error = %v", err)
	}
	if string(got) != "not,base64 at all" {
		t.Errorf("Decode(raw) = %q", got)
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"", EncodingBase64, false},
		{"base64", EncodingBase64, false},
		{"DATA-URI", EncodingDataURI, false},
		{"datauri", EncodingDataURI, false},
		{"hex", "", true},
	}

	for _, tt := range tests {
		got, err := ParseEncoding(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEncoding(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEncoding(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
