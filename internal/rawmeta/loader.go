package rawmeta

import (
	"context"
	"fmt"
	"time"

	"metapick/internal/filesystem"
	"metapick/internal/logging"
	"metapick/internal/mediatypes"
	"metapick/internal/metrics"
)

// DefaultToolTimeout bounds each external webpmux call.
const DefaultToolTimeout = 10 * time.Second

// DefaultMaxFileSize is the largest file Extract will read.
const DefaultMaxFileSize = 512 << 20

// Options configures a Loader.
type Options struct {
	// WebPMux is an explicit path to the webpmux binary. When empty the
	// binary is looked up on PATH using WebPMuxCandidates.
	WebPMux           string
	WebPMuxCandidates []string
	// ToolTimeout bounds each webpmux invocation.
	ToolTimeout time.Duration
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64
	Retry       filesystem.RetryConfig
}

// DefaultOptions returns the loader defaults.
func DefaultOptions() Options {
	return Options{
		WebPMuxCandidates: DefaultWebPMuxCandidates,
		ToolTimeout:       DefaultToolTimeout,
		MaxFileSize:       DefaultMaxFileSize,
		Retry:             filesystem.DefaultRetryConfig(),
	}
}

// Loader reads raw metadata from image files. It is safe for concurrent use.
type Loader struct {
	opts Options
	webp *webpTool
}

// New creates a Loader. Zero-valued options fall back to DefaultOptions.
func New(opts Options) *Loader {
	def := DefaultOptions()
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = def.ToolTimeout
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = def.MaxFileSize
	}
	if len(opts.WebPMuxCandidates) == 0 {
		opts.WebPMuxCandidates = def.WebPMuxCandidates
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialBackoff == 0 {
		opts.Retry = def.Retry
	}
	return &Loader{
		opts: opts,
		webp: &webpTool{configured: opts.WebPMux, candidates: opts.WebPMuxCandidates},
	}
}

// Extract reads the metadata of the file at path. It never fails: read or
// decode errors are logged and yield an empty map. Unsupported extensions
// yield an empty map without touching the file.
func (l *Loader) Extract(ctx context.Context, path string) RawMetadata {
	container := mediatypes.ContainerFor(path)
	if container == mediatypes.ContainerUnknown {
		return RawMetadata{}
	}

	start := time.Now()
	out, err := l.extract(ctx, container, path)
	metrics.ExtractionDuration.WithLabelValues(container.String()).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		logging.Warn("Failed to extract metadata from %s: %v", path, err)
		metrics.ExtractionsTotal.WithLabelValues(container.String(), "error").Inc()
		return RawMetadata{}
	case len(out) == 0:
		metrics.ExtractionsTotal.WithLabelValues(container.String(), "empty").Inc()
	default:
		metrics.ExtractionsTotal.WithLabelValues(container.String(), "success").Inc()
	}
	return out
}

func (l *Loader) extract(ctx context.Context, container mediatypes.Container, path string) (out RawMetadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic while reading %s metadata: %v", container, r)
		}
	}()

	info, err := filesystem.StatWithRetry(path, l.opts.Retry)
	if err != nil {
		return nil, err
	}
	if info.Size() > l.opts.MaxFileSize {
		return nil, fmt.Errorf("file size %d exceeds limit %d", info.Size(), l.opts.MaxFileSize)
	}

	data, err := filesystem.ReadFileWithRetry(path, l.opts.Retry)
	if err != nil {
		return nil, err
	}

	return l.ExtractBytes(ctx, container, path, data)
}

// ExtractBytes parses already loaded file contents. path is only used for
// the external WebP tool and for log messages.
func (l *Loader) ExtractBytes(ctx context.Context, container mediatypes.Container, path string, data []byte) (RawMetadata, error) {
	var (
		out RawMetadata
		err error
	)

	switch container {
	case mediatypes.ContainerPNG:
		out, err = parsePNG(data)
	case mediatypes.ContainerJPEG:
		out, err = decodeEXIF(data, exifKeepComments)
		if err != nil {
			// A JPEG without EXIF still has dimensions worth reporting
			logging.Debug("No usable EXIF in %s: %v", path, err)
			out, err = make(RawMetadata), nil
		}
	case mediatypes.ContainerTIFF:
		out, err = decodeEXIF(data, exifKeepAll)
	case mediatypes.ContainerWebP:
		out, err = l.extractWebP(ctx, path, data)
	default:
		return RawMetadata{}, nil
	}
	if err != nil {
		return nil, err
	}

	addDimensions(out, container, data)
	return out, nil
}
