package tryon

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/logging"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/payload"
	"go.uber.org/zap"
)

// RemoteLoader downloads an image. *payload.Fetcher implements it.
type RemoteLoader interface {
	LoadRemote(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// Builder turns caller input into a JobRequest.
//
// All validation (options, source kinds, mode compatibility) happens before
// any file is read or any URL is fetched.
type Builder struct {
	cfg     BuilderConfig
	fetcher RemoteLoader
	logger  *logging.Logger
}

// NewBuilder creates a Builder. fetcher may be nil when FetchRemote is off.
func NewBuilder(cfg BuilderConfig, fetcher RemoteLoader, logger *logging.Logger) (*Builder, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.Encoding == "" {
		cfg.Encoding = payload.EncodingBase64
	}
	if cfg.Encoding != payload.EncodingBase64 && cfg.Encoding != payload.EncodingDataURI {
		return nil, core.ErrInvalidValue("embed encoding", cfg.Encoding, "must be base64 or data-uri")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = core.DefaultFetchTimeout
	}
	if cfg.FetchRemote && fetcher == nil {
		return nil, fmt.Errorf("tryon: remote fetching enabled without a fetcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Builder{cfg: cfg, fetcher: fetcher, logger: logger.Named("builder")}, nil
}

// Build validates opts, resolves both sources and encodes the request body.
//
// Sources are classified as a data: URI (inline), an http(s) URL (remote) or a
// filesystem path (local). Any other scheme:// form is rejected before any I/O
// with a *core.ConfigError. Mixing kinds the configured mode cannot carry is a
// *core.ConfigError.
func (b *Builder) Build(ctx context.Context, subjectSource, garmentSource string, opts Options) (*JobRequest, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	category, _ := ParseCategory(string(opts.Category))

	subjectSource = strings.TrimSpace(subjectSource)
	garmentSource = strings.TrimSpace(garmentSource)
	if subjectSource == "" {
		return nil, core.ErrMissingConfig("subject image (-person)")
	}
	if garmentSource == "" {
		return nil, core.ErrMissingConfig("garment image (-garment)")
	}

	subjectKind := payload.Classify(subjectSource)
	garmentKind := payload.Classify(garmentSource)
	if subjectKind == payload.SourceUnsupported {
		return nil, core.ErrUnsupportedURI("subject image", subjectSource, payload.URIScheme(subjectSource))
	}
	if garmentKind == payload.SourceUnsupported {
		return nil, core.ErrUnsupportedURI("garment image", garmentSource, payload.URIScheme(garmentSource))
	}

	mode, err := b.resolveMode(subjectKind, garmentKind, opts.Workflow != nil)
	if err != nil {
		return nil, err
	}

	subject, err := b.resolve(ctx, subjectSource, subjectKind, mode)
	if err != nil {
		return nil, fmt.Errorf("builder: subject image: %w", err)
	}
	garment, err := b.resolve(ctx, garmentSource, garmentKind, mode)
	if err != nil {
		return nil, fmt.Errorf("builder: garment image: %w", err)
	}

	if mode == ModeEmbedded && opts.MaxDimension > 0 {
		if subject, err = b.downscale(subject, opts.MaxDimension); err != nil {
			return nil, fmt.Errorf("builder: subject image: %w", err)
		}
		if garment, err = b.downscale(garment, opts.MaxDimension); err != nil {
			return nil, fmt.Errorf("builder: garment image: %w", err)
		}
	}

	subjectText, err := subject.Text(b.cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("builder: subject image: %w", err)
	}
	garmentText, err := garment.Text(b.cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("builder: garment image: %w", err)
	}

	req := &JobRequest{
		subject:     subject,
		garment:     garment,
		subjectText: subjectText,
		garmentText: garmentText,
		category:    category,
		steps:       opts.Steps,
		guidance:    opts.Guidance,
		seed:        opts.Seed,
		timeout:     opts.Timeout,
		workflow:    opts.Workflow,
		mode:        mode,
	}

	b.logger.Debug("request built",
		zap.String("mode", string(mode)),
		zap.String("category", string(category)),
		zap.Int("subject_bytes", subject.Len()),
		zap.Int("garment_bytes", garment.Len()),
		zap.Bool("workflow", opts.Workflow != nil))

	return req, nil
}

// resolveMode applies the mode rules to the two source kinds.
func (b *Builder) resolveMode(subject, garment payload.SourceKind, hasWorkflow bool) (Mode, error) {
	mode := b.cfg.Mode
	subjectRemote := subject == payload.SourceRemoteURL
	garmentRemote := garment == payload.SourceRemoteURL

	if hasWorkflow {
		if mode == ModeByReference {
			return "", &core.ConfigError{
				Code:    core.ErrCodeUnsupportedMode,
				Message: "Workflow templates cannot be submitted by reference",
				Action:  "Use embedded or auto mode with a workflow",
			}
		}
		mode = ModeEmbedded
	}

	if mode == ModeAuto {
		switch {
		case !subjectRemote && !garmentRemote:
			return ModeEmbedded, nil
		case subjectRemote && garmentRemote:
			return ModeByReference, nil
		default:
			return "", core.ErrMixedSources(string(ModeAuto), string(subject), string(garment))
		}
	}

	switch mode {
	case ModeEmbedded:
		if (subjectRemote || garmentRemote) && !b.cfg.FetchRemote {
			if subjectRemote && garmentRemote {
				return "", &core.ConfigError{
					Code:    core.ErrCodeUnsupportedMode,
					Message: "Embedded mode cannot carry URL sources without fetching them",
					Action:  "Enable fetch_remote (TRYON_FETCH_REMOTE=true) or use by-reference mode",
				}
			}
			return "", core.ErrMixedSources(string(ModeEmbedded), string(subject), string(garment))
		}
	case ModeByReference:
		if !subjectRemote || !garmentRemote {
			return "", &core.ConfigError{
				Code:    core.ErrCodeUnsupportedMode,
				Message: fmt.Sprintf("By-reference mode needs two URLs (subject is %s, garment is %s)", subject, garment),
				Action:  "Host the images and pass their URLs, or use embedded mode",
			}
		}
	}
	return mode, nil
}

func (b *Builder) resolve(ctx context.Context, source string, kind payload.SourceKind, mode Mode) (payload.ImagePayload, error) {
	switch kind {
	case payload.SourceInline:
		return payload.FromText(source, payload.EncodingDataURI)
	case payload.SourceRemoteURL:
		p := payload.FromRemoteURL(source)
		if mode == ModeByReference {
			return p, nil
		}
		data, err := b.fetcher.LoadRemote(ctx, source, b.cfg.FetchTimeout)
		if err != nil {
			return payload.ImagePayload{}, err
		}
		return p.WithData(data), nil
	default:
		return payload.FromLocalPath(source)
	}
}

func (b *Builder) downscale(p payload.ImagePayload, maxDim int) (payload.ImagePayload, error) {
	data := p.Bytes()
	// Containers the image decoders cannot read pass through untouched.
	if _, _, err := payload.DecodeConfig(data); err != nil {
		b.logger.Debug("image not resizable, sending as is",
			zap.String("source", string(p.Source())),
			zap.Error(err))
		return p, nil
	}
	resized, _, err := payload.Downscale(data, maxDim)
	if err != nil {
		return payload.ImagePayload{}, err
	}
	if bytes.Equal(resized, data) {
		return p, nil
	}
	b.logger.Debug("image downscaled",
		zap.String("source", string(p.Source())),
		zap.Int("before_bytes", len(data)),
		zap.Int("after_bytes", len(resized)))
	return p.WithData(resized), nil
}
