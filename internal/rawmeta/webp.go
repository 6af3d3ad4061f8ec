package rawmeta

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"metapick/internal/logging"
	"metapick/internal/metrics"
)

// webpChunks are the chunk selectors passed to "webpmux -get", in order.
var webpChunks = []string{"exif", "iccp", "xmp"}

var errNotWebP = errors.New("not a WebP file")

// DefaultWebPMuxCandidates are tried, in order, when no explicit webpmux
// path is configured.
var DefaultWebPMuxCandidates = []string{"webpmux", "webpmux.exe"}

// webpTool locates the webpmux binary once per Loader.
type webpTool struct {
	configured string
	candidates []string

	once sync.Once
	path string
}

func (t *webpTool) resolve() string {
	t.once.Do(func() {
		if t.configured != "" {
			if info, err := os.Stat(t.configured); err == nil && !info.IsDir() {
				t.path = t.configured
				return
			}
			logging.Warn("webpmux binary not found at %s, using built-in WebP reader", t.configured)
			return
		}
		for _, c := range t.candidates {
			if p, err := exec.LookPath(c); err == nil {
				t.path = p
				return
			}
		}
		logging.Debug("webpmux binary not found, using built-in WebP reader")
	})
	return t.path
}

// extractWebP returns the exif, iccp and xmp chunks of a WebP file, using
// webpmux when available and the built-in RIFF reader otherwise. EXIF
// comment fields are decoded and merged.
func (l *Loader) extractWebP(ctx context.Context, path string, data []byte) (RawMetadata, error) {
	chunks, err := l.webpChunksViaTool(ctx, path)
	if err != nil || len(chunks) == 0 {
		if err != nil && !errors.Is(err, errNoTool) {
			logging.Debug("webpmux failed for %s: %v", path, err)
		}
		metrics.WebPToolInvocations.WithLabelValues("fallback").Inc()
		chunks, err = readRIFFChunks(data)
		if err != nil {
			return nil, err
		}
	}

	out := make(RawMetadata)
	for _, name := range webpChunks {
		payload, ok := chunks[name]
		if !ok || len(payload) == 0 {
			continue
		}
		out.Set(name, BytesValue(payload))
	}

	if payload := chunks["exif"]; len(payload) > 0 {
		if fields, err := decodeEXIF(payload, exifKeepComments); err == nil {
			out.merge(fields)
		} else {
			logging.Debug("failed to decode WebP EXIF for %s: %v", path, err)
		}
	}
	return out, nil
}

var errNoTool = errors.New("webpmux not available")

// webpChunksViaTool runs "webpmux -get <chunk> <file> -o <tmp>" for each
// chunk under the loader's tool timeout.
func (l *Loader) webpChunksViaTool(ctx context.Context, path string) (map[string][]byte, error) {
	bin := l.webp.resolve()
	if bin == "" {
		return nil, errNoTool
	}

	tmpDir, err := os.MkdirTemp("", "metapick-webp-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	out := make(map[string][]byte)
	for _, chunk := range webpChunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outPath := filepath.Join(tmpDir, chunk+".bin")
		callCtx, cancel := context.WithTimeout(ctx, l.opts.ToolTimeout)
		cmd := exec.CommandContext(callCtx, bin, "-get", chunk, path, "-o", outPath)
		runErr := cmd.Run()
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		cancel()

		if timedOut {
			metrics.WebPToolInvocations.WithLabelValues("timeout").Inc()
			return nil, fmt.Errorf("webpmux timed out after %v", l.opts.ToolTimeout)
		}
		if runErr != nil {
			// A missing chunk exits non-zero; that is not a tool failure.
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				metrics.WebPToolInvocations.WithLabelValues("success").Inc()
				continue
			}
			metrics.WebPToolInvocations.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to run webpmux: %w", runErr)
		}
		metrics.WebPToolInvocations.WithLabelValues("success").Inc()

		payload, err := os.ReadFile(outPath)
		if err == nil && len(payload) > 0 {
			out[chunk] = payload
		}
	}
	return out, nil
}

// readRIFFChunks walks a RIFF/WEBP container and returns the EXIF, ICCP and
// XMP chunk payloads keyed like the webpmux selectors.
func readRIFFChunks(data []byte) (map[string][]byte, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WEBP")) {
		return nil, errNotWebP
	}

	out := make(map[string][]byte)
	pos := 12
	for pos+8 <= len(data) {
		fourCC := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + 8
		end := start + size
		if size < 0 || end > len(data) || end < start {
			break
		}

		switch fourCC {
		case "EXIF":
			out["exif"] = data[start:end]
		case "ICCP":
			out["iccp"] = data[start:end]
		case "XMP ":
			out["xmp"] = data[start:end]
		}

		pos = end + size%2 // chunks are padded to even length
	}
	return out, nil
}
