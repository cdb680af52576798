package tryon

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/payload"
)

func TestExtractor_Shapes(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(pngHeader)
	fetcher := &fakeFetcher{data: map[string][]byte{
		"https://cdn.example.com/out.png": pngHeader,
	}}

	tests := []struct {
		name   string
		output string
		index  int
	}{
		{"result_image", `{"result_image":"` + b64 + `"}`, 0},
		{"result_image data uri", `{"result_image":"data:image/png;base64,` + b64 + `"}`, 0},
		{"nested output", `{"output":{"result_image":"` + b64 + `"}}`, 0},
		{"images list of objects", `{"images":[{"image":"` + b64 + `"}]}`, 0},
		{"images list data key", `{"images":[{"data":"` + b64 + `"}]}`, 0},
		{"images list of strings", `{"images":["image/png,` + b64 + `"]}`, 0},
		{"images second entry", `{"images":[{"image":"AAAA"},{"image":"` + b64 + `"}]}`, 1},
		{"bare url", `"https://cdn.example.com/out.png"`, 0},
		{"result_url", `{"result_url":"https://cdn.example.com/out.png"}`, 0},
		{"message url", `{"status":"success","message":"https://cdn.example.com/out.png"}`, 0},
		{"message base64", `{"status":"success","message":"` + b64 + `"}`, 0},
		{"result_image wins over images", `{"result_image":"` + b64 + `","images":[{"image":"AAAA"}]}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(ExtractorConfig{ImageIndex: tt.index}, fetcher, testLogger(t))
			img, err := e.Extract(context.Background(), JobStatus{
				JobID: "job-1", State: StateCompleted, RawState: "COMPLETED", Output: json.RawMessage(tt.output),
			})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if !bytes.Equal(img.Bytes(), pngHeader) {
				t.Errorf("Bytes() = %v, want %v", img.Bytes(), pngHeader)
			}
			if img.Format() != payload.FormatPNG {
				t.Errorf("Format() = %q, want png", img.Format())
			}
		})
	}
}

func TestExtractor_Failures(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantShape bool
		wantJob   string
	}{
		{"empty output", ``, true, ""},
		{"null output", `null`, true, ""},
		{"number", `42`, true, ""},
		{"string not url", `"hello"`, true, ""},
		{"no known field", `{"foo":"bar"}`, true, ""},
		{"index out of range", `{"images":[]}`, true, ""},
		{"handler error", `{"error":"CUDA out of memory"}`, false, "CUDA out of memory"},
		{"worker failure message", `{"status":"error","message":"missing node 12"}`, false, "missing node 12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(ExtractorConfig{}, nil, testLogger(t))
			_, err := e.Extract(context.Background(), JobStatus{
				JobID: "job-1", State: StateCompleted, RawState: "COMPLETED", Output: json.RawMessage(tt.output),
			})
			if err == nil {
				t.Fatal("expected error")
			}

			var shapeErr *core.UnexpectedResultShapeError
			if got := errors.As(err, &shapeErr); got != tt.wantShape {
				t.Errorf("UnexpectedResultShapeError = %v, want %v (err: %v)", got, tt.wantShape, err)
			}
			if tt.wantJob != "" {
				var jobErr *core.JobError
				if !errors.As(err, &jobErr) {
					t.Fatalf("error = %v, want *core.JobError", err)
				}
				if jobErr.Detail != tt.wantJob {
					t.Errorf("Detail = %q, want %q", jobErr.Detail, tt.wantJob)
				}
			}
		})
	}
}

func TestExtractor_ImagesIndexOutOfRange(t *testing.T) {
	e := NewExtractor(ExtractorConfig{ImageIndex: 3}, nil, testLogger(t))
	_, err := e.Extract(context.Background(), JobStatus{
		JobID: "job-1", State: StateCompleted, Output: json.RawMessage(`{"images":[{"image":"AAAA"}]}`),
	})
	var shapeErr *core.UnexpectedResultShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("error = %v, want *core.UnexpectedResultShapeError", err)
	}
}

func TestExtractor_MalformedBase64(t *testing.T) {
	e := NewExtractor(ExtractorConfig{}, nil, testLogger(t))
	_, err := e.Extract(context.Background(), JobStatus{
		JobID: "job-1", State: StateCompleted, Output: json.RawMessage(`{"result_image":"not*base64!"}`),
	})
	var decErr *core.DecodingError
	if !errors.As(err, &decErr) {
		t.Fatalf("error = %v, want *core.DecodingError", err)
	}
}

func TestExtractor_URLWithoutFetcher(t *testing.T) {
	e := NewExtractor(ExtractorConfig{}, nil, testLogger(t))
	_, err := e.Extract(context.Background(), JobStatus{
		JobID: "job-1", State: StateCompleted, Output: json.RawMessage(`{"image_url":"https://cdn.example.com/x.png"}`),
	})
	var fetchErr *core.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *core.FetchError", err)
	}
}

func TestExtractor_RejectsNonCompleted(t *testing.T) {
	e := NewExtractor(ExtractorConfig{}, nil, testLogger(t))
	_, err := e.Extract(context.Background(), JobStatus{JobID: "job-1", State: StateRunning, RawState: "IN_PROGRESS"})
	if code := core.GetErrorCode(err); code != core.ErrCodeInvalidStatus {
		t.Errorf("error code = %q, want %q", code, core.ErrCodeInvalidStatus)
	}
}
