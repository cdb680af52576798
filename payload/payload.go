// Package payload implements the binary boundary of the try-on client:
// loading images from disk or the network, encoding them for JSON request
// bodies, decoding results, and sniffing container formats.
package payload

import (
	"net/url"
	"path/filepath"
	"strings"
)

// SourceKind says where an ImagePayload came from.
type SourceKind string

// Source kinds.
const (
	SourceLocalPath   SourceKind = "local-path"
	SourceRemoteURL   SourceKind = "remote-url"
	SourceInline      SourceKind = "inline"
	// SourceUnsupported is a URI whose scheme the client cannot load, such
	// as s3:// or file://.
	SourceUnsupported SourceKind = "unsupported"
)

// ImagePayload is image data (possibly not yet loaded) with its declared
// encoding and exactly one source. Values are immutable; accessors return copies.
type ImagePayload struct {
	data     []byte
	encoding Encoding
	source   SourceKind
	location string // path or URL; empty for inline payloads
}

// FromLocalPath reads path and wraps its bytes.
func FromLocalPath(path string) (ImagePayload, error) {
	data, err := LoadLocal(path)
	if err != nil {
		return ImagePayload{}, err
	}
	return ImagePayload{data: data, encoding: EncodingRaw, source: SourceLocalPath, location: path}, nil
}

// FromRemoteURL references an image by URL. No bytes are fetched.
func FromRemoteURL(rawURL string) ImagePayload {
	return ImagePayload{encoding: EncodingRaw, source: SourceRemoteURL, location: rawURL}
}

// FromBytes wraps raw bytes supplied by the caller.
func FromBytes(data []byte) ImagePayload {
	return ImagePayload{data: clone(data), encoding: EncodingRaw, source: SourceInline}
}

// FromText decodes inline base64 or data-URI text.
func FromText(text string, declared Encoding) (ImagePayload, error) {
	data, err := Decode(text, declared)
	if err != nil {
		return ImagePayload{}, err
	}
	return ImagePayload{data: data, encoding: EncodingRaw, source: SourceInline}, nil
}

// WithData returns a copy carrying data, keeping the original source.
// Used after a remote image has been fetched for embedding.
func (p ImagePayload) WithData(data []byte) ImagePayload {
	p.data = clone(data)
	p.encoding = EncodingRaw
	return p
}

// Bytes returns a copy of the payload bytes, nil when nothing was loaded.
func (p ImagePayload) Bytes() []byte { return clone(p.data) }

// Len returns the number of loaded bytes.
func (p ImagePayload) Len() int { return len(p.data) }

// HasData reports whether bytes are loaded.
func (p ImagePayload) HasData() bool { return len(p.data) > 0 }

// Encoding returns the declared encoding of the held bytes.
func (p ImagePayload) Encoding() Encoding { return p.encoding }

// Source returns where the payload came from.
func (p ImagePayload) Source() SourceKind { return p.source }

// Location returns the path or URL, empty for inline payloads.
func (p ImagePayload) Location() string { return p.location }

// Format infers the container format of the loaded bytes.
func (p ImagePayload) Format() Format { return InferFormat(p.data) }

// Text encodes the payload for a request body. Remote payloads without bytes
// render as their URL.
func (p ImagePayload) Text(target Encoding) (string, error) {
	if p.source == SourceRemoteURL && !p.HasData() {
		return p.location, nil
	}
	// Magic bytes win over the file extension.
	hint := ""
	if p.source == SourceLocalPath && InferFormat(p.data) == FormatUnknown {
		hint = filepath.Ext(p.location)
	}
	return Encode(p.data, target, hint)
}

// IsRemoteURL reports whether s is an absolute http or https URL with a host.
func IsRemoteURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// URIScheme returns the lower-cased scheme of s when s is written as
// "scheme://...", and "" otherwise. Single-letter schemes are Windows drive
// letters and are not reported.
func URIScheme(s string) string {
	s = strings.TrimSpace(s)
	i := strings.Index(s, "://")
	if i < 2 {
		return ""
	}
	for j, r := range s[:i] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case j > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return ""
		}
	}
	return strings.ToLower(s[:i])
}

// Classify reports how a source string would be resolved: a data: URI is
// inline, an http(s) URL with a host is remote, any other scheme:// form is
// unsupported, and anything else is treated as a local path.
func Classify(source string) SourceKind {
	switch {
	case IsDataURI(source):
		return SourceInline
	case IsRemoteURL(source):
		return SourceRemoteURL
	case URIScheme(source) != "":
		return SourceUnsupported
	default:
		return SourceLocalPath
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
