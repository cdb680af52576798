package tryon

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/payload"
)

func newTestBuilder(t *testing.T, cfg BuilderConfig, fetcher RemoteLoader) *Builder {
	t.Helper()
	b, err := NewBuilder(cfg, fetcher, testLogger(t))
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	return b
}

func TestBuilder_EmbeddedFlatBody(t *testing.T) {
	person := writeFile(t, "person.png", pngHeader)
	cloth := writeFile(t, "cloth.png", pngHeader)

	b := newTestBuilder(t, DefaultBuilderConfig(), nil)
	req, err := b.Build(context.Background(), person, cloth, DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.Mode() != ModeEmbedded {
		t.Errorf("Mode() = %q, want embedded", req.Mode())
	}

	raw, err := json.Marshal(req.Body())
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Input map[string]interface{} `json:"input"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatal(err)
	}

	want := base64.StdEncoding.EncodeToString(pngHeader)
	if body.Input["person_image"] != want || body.Input["cloth_image"] != want {
		t.Errorf("images = %v / %v, want %q", body.Input["person_image"], body.Input["cloth_image"], want)
	}
	if body.Input["cloth_type"] != "upper" {
		t.Errorf("cloth_type = %v", body.Input["cloth_type"])
	}
	if body.Input["num_inference_steps"] != float64(50) || body.Input["guidance_scale"] != 2.5 || body.Input["seed"] != float64(42) {
		t.Errorf("parameters = %v", body.Input)
	}
	if len(body.Input) != 6 {
		t.Errorf("input has %d keys, want 6: %v", len(body.Input), body.Input)
	}
}

func TestBuilder_DataURIEncoding(t *testing.T) {
	person := writeFile(t, "person.png", pngHeader)
	cloth := writeFile(t, "cloth.png", pngHeader)

	cfg := DefaultBuilderConfig()
	cfg.Encoding = payload.EncodingDataURI
	req, err := newTestBuilder(t, cfg, nil).Build(context.Background(), person, cloth, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	input := req.Body().Input.(TryOnInput)
	if !strings.HasPrefix(input.PersonImage, "data:image/png;base64,") {
		t.Errorf("PersonImage = %q", input.PersonImage)
	}
}

func TestBuilder_ByReference(t *testing.T) {
	fetcher := &fakeFetcher{}
	b := newTestBuilder(t, DefaultBuilderConfig(), fetcher)

	req, err := b.Build(context.Background(), "https://img.example.com/p.jpg", "https://img.example.com/c.jpg", DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.Mode() != ModeByReference {
		t.Errorf("Mode() = %q, want by-reference", req.Mode())
	}
	input := req.Body().Input.(TryOnInput)
	if input.PersonImage != "https://img.example.com/p.jpg" || input.ClothImage != "https://img.example.com/c.jpg" {
		t.Errorf("input = %+v", input)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times in by-reference mode", fetcher.calls)
	}
}

func TestBuilder_MixedSourcesRejectedBeforeIO(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{"https://img.example.com/c.png": pngHeader}}

	tests := []struct {
		name     string
		cfg      BuilderConfig
		subject  string
		garment  string
		wantCode string
	}{
		{"auto local and url", BuilderConfig{Mode: ModeAuto}, "/nonexistent/person.png", "https://img.example.com/c.png", core.ErrCodeMixedSources},
		{"embedded with url", BuilderConfig{Mode: ModeEmbedded}, "/nonexistent/person.png", "https://img.example.com/c.png", core.ErrCodeMixedSources},
		{"embedded two urls", BuilderConfig{Mode: ModeEmbedded}, "https://img.example.com/p.png", "https://img.example.com/c.png", core.ErrCodeUnsupportedMode},
		{"by-reference with local", BuilderConfig{Mode: ModeByReference}, "/nonexistent/person.png", "https://img.example.com/c.png", core.ErrCodeUnsupportedMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t, tt.cfg, fetcher)
			_, err := b.Build(context.Background(), tt.subject, tt.garment, DefaultOptions())
			if code := core.GetErrorCode(err); code != tt.wantCode {
				t.Errorf("error code = %q, want %q (err: %v)", code, tt.wantCode, err)
			}
		})
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times before validation", fetcher.calls)
	}
}

func TestBuilder_UnsupportedSchemeRejectedBeforeIO(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{}}
	person := writeFile(t, "person.png", pngHeader)

	tests := []struct {
		name    string
		subject string
		garment string
	}{
		{"s3 garment", person, "s3://bucket/cloth.png"},
		{"file subject", "file:///tmp/person.png", person},
		{"ftp garment", person, "ftp://example.com/cloth.png"},
		{"url without host", "https:///person.png", person},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t, BuilderConfig{Mode: ModeAuto, FetchRemote: true}, fetcher)
			_, err := b.Build(context.Background(), tt.subject, tt.garment, DefaultOptions())
			var cfgErr *core.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Build() error = %v, want *core.ConfigError", err)
			}
			if cfgErr.Code != core.ErrCodeUnsupportedURI {
				t.Errorf("error code = %q, want %q", cfgErr.Code, core.ErrCodeUnsupportedURI)
			}
			var nf *core.NotFoundError
			if errors.As(err, &nf) {
				t.Errorf("unsupported scheme reported as not found: %v", err)
			}
		})
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times for unsupported sources", fetcher.calls)
	}
}

func TestBuilder_FetchRemoteEmbedsURLs(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{"https://img.example.com/c.png": pngHeader}}
	person := writeFile(t, "person.png", pngHeader)

	cfg := BuilderConfig{Mode: ModeEmbedded, FetchRemote: true}
	req, err := newTestBuilder(t, cfg, fetcher).Build(context.Background(), person, "https://img.example.com/c.png", DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher calls = %d, want 1", fetcher.calls)
	}
	if got := req.Body().Input.(TryOnInput).ClothImage; got != base64.StdEncoding.EncodeToString(pngHeader) {
		t.Errorf("ClothImage = %q", got)
	}
}

func TestBuilder_InputErrors(t *testing.T) {
	person := writeFile(t, "person.png", pngHeader)
	b := newTestBuilder(t, DefaultBuilderConfig(), nil)

	if _, err := b.Build(context.Background(), "", person, DefaultOptions()); core.GetErrorCode(err) != core.ErrCodeMissingConfig {
		t.Errorf("empty subject error = %v", err)
	}

	opts := DefaultOptions()
	opts.Category = "socks"
	if _, err := b.Build(context.Background(), person, person, opts); core.GetErrorCode(err) != core.ErrCodeInvalidCategory {
		t.Errorf("bad category error = %v", err)
	}

	_, err := b.Build(context.Background(), person, person+".missing", DefaultOptions())
	var notFound *core.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("missing garment error = %v, want *core.NotFoundError", err)
	}
}

func TestBuilder_Workflow(t *testing.T) {
	person := writeFile(t, "person.png", pngHeader)
	cloth := writeFile(t, "cloth.png", pngHeader)
	wf, err := ParseWorkflow([]byte(sampleWorkflowJSON))
	if err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.Workflow = wf
	req, err := newTestBuilder(t, DefaultBuilderConfig(), nil).Build(context.Background(), person, cloth, opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	raw, err := json.Marshal(req.Body())
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Input struct {
			Workflow map[string]json.RawMessage `json:"workflow"`
			Images   []WorkflowImage            `json:"images"`
		} `json:"input"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Input.Workflow) != 3 {
		t.Errorf("workflow nodes = %d, want 3", len(body.Input.Workflow))
	}
	if len(body.Input.Images) != 2 || body.Input.Images[0].Name != "person.png" || body.Input.Images[1].Name != "cloth.png" {
		t.Fatalf("images = %+v", body.Input.Images)
	}
	if body.Input.Images[0].Image != base64.StdEncoding.EncodeToString(pngHeader) {
		t.Errorf("person image = %q", body.Input.Images[0].Image)
	}

	cfg := DefaultBuilderConfig()
	cfg.Mode = ModeByReference
	_, err = newTestBuilder(t, cfg, nil).Build(context.Background(), person, cloth, opts)
	if code := core.GetErrorCode(err); code != core.ErrCodeUnsupportedMode {
		t.Errorf("workflow by reference error code = %q", code)
	}
}

func TestBuilder_Downscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for x := 0; x < 64; x++ {
		img.Set(x, x%32, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	person := writeFile(t, "person.png", buf.Bytes())
	cloth := writeFile(t, "cloth.png", pngHeader)

	opts := DefaultOptions()
	opts.MaxDimension = 16
	req, err := newTestBuilder(t, DefaultBuilderConfig(), nil).Build(context.Background(), person, cloth, opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	w, h, err := payload.DecodeConfig(req.Subject().Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if w != 16 || h != 8 {
		t.Errorf("subject = %dx%d, want 16x8", w, h)
	}
	if !bytes.Equal(req.Garment().Bytes(), pngHeader) {
		t.Error("undecodable garment header was modified")
	}
}

func TestNewBuilder_Validation(t *testing.T) {
	if _, err := NewBuilder(BuilderConfig{FetchRemote: true}, nil, nil); err == nil {
		t.Error("expected error for FetchRemote without fetcher")
	}
	if _, err := NewBuilder(BuilderConfig{Mode: "sideways"}, nil, nil); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := NewBuilder(BuilderConfig{Encoding: payload.EncodingRaw}, nil, nil); err == nil {
		t.Error("expected error for raw encoding")
	}
}
