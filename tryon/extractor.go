package tryon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/logging"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/payload"
	"go.uber.org/zap"
)

// ExtractorConfig configures an Extractor.
type ExtractorConfig struct {
	// ImageIndex selects the entry of an "images" list. Default: 0.
	ImageIndex int

	// FetchTimeout bounds the download of URL-shaped results. Default: 10s.
	FetchTimeout time.Duration
}

// urlKeys are the output fields that may carry a result URL, in lookup order.
var urlKeys = []string{"result_url", "image_url", "url", "message"}

// Extractor turns a completed status into a ResultImage.
//
// Worker variants disagree on the result shape, so shapes are tried in order:
//  1. a base64 field: output.result_image, then output.output.result_image
//  2. an image list: output.images[i].image (or .data)
//  3. a URL: output itself, or output.result_url/image_url/url/message
//  4. output.message as base64 when output.status is "success"
//
// An output carrying only an error string yields *core.JobError; anything
// else is *core.UnexpectedResultShapeError.
type Extractor struct {
	cfg     ExtractorConfig
	fetcher RemoteLoader
	logger  *logging.Logger
}

// NewExtractor creates an Extractor. fetcher may be nil, in which case
// URL-shaped results fail with a *core.FetchError.
func NewExtractor(cfg ExtractorConfig, fetcher RemoteLoader, logger *logging.Logger) *Extractor {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = core.DefaultFetchTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{cfg: cfg, fetcher: fetcher, logger: logger.Named("extractor")}
}

// Extract decodes the result image of a Completed status.
func (e *Extractor) Extract(ctx context.Context, status JobStatus) (*ResultImage, error) {
	if status.State != StateCompleted {
		return nil, &core.ConfigError{
			Code:    core.ErrCodeInvalidStatus,
			Message: fmt.Sprintf("Cannot extract a result from job %s in state %s", status.JobID, status.Label()),
		}
	}
	if len(status.Output) == 0 || string(status.Output) == "null" {
		return nil, e.unexpected(status, "completed job has no output")
	}

	var output interface{}
	if err := json.Unmarshal(status.Output, &output); err != nil {
		return nil, e.unexpected(status, "output is not valid JSON")
	}

	switch out := output.(type) {
	case string:
		if payload.IsRemoteURL(out) {
			return e.fetch(ctx, status, "output", out)
		}
		return nil, e.unexpected(status, "output is a string but not a URL")
	case map[string]interface{}:
		return e.fromObject(ctx, status, out)
	default:
		return nil, e.unexpected(status, fmt.Sprintf("output is a %T", output))
	}
}

func (e *Extractor) fromObject(ctx context.Context, status JobStatus, out map[string]interface{}) (*ResultImage, error) {
	// (1) direct base64 field, including the doubly nested drift.
	if text, ok := nonEmptyString(out, "result_image"); ok {
		return e.decode(status, "result_image", text)
	}
	if nested, ok := out["output"].(map[string]interface{}); ok {
		if text, ok := nonEmptyString(nested, "result_image"); ok {
			return e.decode(status, "output.result_image", text)
		}
	}

	// (2) image list.
	if list, ok := out["images"].([]interface{}); ok && len(list) > 0 {
		idx := e.cfg.ImageIndex
		if idx < 0 || idx >= len(list) {
			return nil, e.unexpected(status, fmt.Sprintf("image index %d out of range (%d images)", idx, len(list)))
		}
		field := fmt.Sprintf("images[%d]", idx)
		switch item := list[idx].(type) {
		case string:
			if item != "" {
				return e.decode(status, field, item)
			}
		case map[string]interface{}:
			for _, key := range []string{"image", "data"} {
				if text, ok := nonEmptyString(item, key); ok {
					return e.decode(status, field+"."+key, text)
				}
			}
		}
		return nil, e.unexpected(status, field+" has no image data")
	}

	// (3) URL fields.
	for _, key := range urlKeys {
		if text, ok := nonEmptyString(out, key); ok && payload.IsRemoteURL(text) {
			return e.fetch(ctx, status, key, text)
		}
	}

	// (4) base64 in message on success.
	workerStatus, _ := nonEmptyString(out, "status")
	message, hasMessage := nonEmptyString(out, "message")
	if hasMessage && strings.EqualFold(workerStatus, "success") {
		return e.decode(status, "message", message)
	}

	// Handler-reported failure inside a COMPLETED job.
	if detail, ok := nonEmptyString(out, "error"); ok {
		return nil, &core.JobError{JobID: status.JobID, State: status.Label(), Detail: detail}
	}
	if hasMessage && workerStatus != "" {
		return nil, &core.JobError{JobID: status.JobID, State: status.Label(), Detail: message}
	}

	return nil, e.unexpected(status, "no result_image, images or URL field")
}

func (e *Extractor) decode(status JobStatus, field, text string) (*ResultImage, error) {
	data, err := payload.Decode(text, payload.EncodingBase64)
	if err != nil {
		return nil, fmt.Errorf("extract: %s of job %s: %w", field, status.JobID, err)
	}
	img := NewResultImage(data)
	e.logger.Debug("result decoded",
		zap.String(logging.KeyJobID, status.JobID),
		zap.String("field", field),
		zap.Int("bytes", img.Len()),
		zap.String("format", string(img.Format())))
	return img, nil
}

func (e *Extractor) fetch(ctx context.Context, status JobStatus, field, url string) (*ResultImage, error) {
	if e.fetcher == nil {
		return nil, &core.FetchError{URL: url, Err: fmt.Errorf("no fetcher configured")}
	}
	data, err := e.fetcher.LoadRemote(ctx, url, e.cfg.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("extract: %s of job %s: %w", field, status.JobID, err)
	}
	img := NewResultImage(data)
	e.logger.Debug("result fetched",
		zap.String(logging.KeyJobID, status.JobID),
		zap.String("field", field),
		zap.Int("bytes", img.Len()))
	return img, nil
}

func (e *Extractor) unexpected(status JobStatus, reason string) error {
	return &core.UnexpectedResultShapeError{
		Payload: append([]byte(nil), status.Output...),
		Reason:  reason,
	}
}

func nonEmptyString(m map[string]interface{}, key string) (string, bool) {
	s, ok := m[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
