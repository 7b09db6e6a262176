package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audiomanifest/model"

	"github.com/cockroachdb/errors"
)

// ErrEmptyFile is returned for zero-length inputs.
var ErrEmptyFile = errors.New("empty file")

// Prober reports the frame count of one audio file.
type Prober interface {
	Probe(ctx context.Context, path string) (model.FileRecord, error)
}

// ProbeError 表示单个文件探测失败；不影响其他文件，只会被记录并从清单中剔除。
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

func probeError(path string, err error) *ProbeError {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProbeError{Path: path, Err: err}
}

// openNonEmpty opens path for reading and rejects zero-length files.
// The caller owns the returned handle.
func openNonEmpty(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		f.Close()
		return nil, ErrEmptyFile
	}
	return f, nil
}

// Registry dispatches to a Prober by file extension.
// Extensions without a registered prober go to the fallback.
type Registry struct {
	probers  map[string]Prober
	fallback Prober
}

// NewRegistry creates an empty Registry; fallback may be nil.
func NewRegistry(fallback Prober) *Registry {
	return &Registry{
		probers:  make(map[string]Prober),
		fallback: fallback,
	}
}

// NewDefaultRegistry wires the native FLAC and WAV probers and uses ffprobe for everything else.
func NewDefaultRegistry(ffprobePath string) *Registry {
	r := NewRegistry(NewFFprobeProber(ffprobePath))
	r.Register("flac", FLACProber{})
	r.Register("wav", WAVProber{})
	r.Register("wave", WAVProber{})
	return r
}

// Register binds ext (with or without leading dot, any case) to p.
func (r *Registry) Register(ext string, p Prober) {
	r.probers[normalizeExt(ext)] = p
}

// Lookup returns the prober for path, or false when neither a registered prober nor a fallback exists.
func (r *Registry) Lookup(path string) (Prober, bool) {
	if p, ok := r.probers[normalizeExt(filepath.Ext(path))]; ok {
		return p, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Probe implements Prober.
func (r *Registry) Probe(ctx context.Context, path string) (model.FileRecord, error) {
	p, ok := r.Lookup(path)
	if !ok {
		return model.FileRecord{}, &ProbeError{Path: path, Err: errors.Newf("unsupported format %q", filepath.Ext(path))}
	}
	rec, err := p.Probe(ctx, path)
	if err != nil {
		return model.FileRecord{}, probeError(path, err)
	}
	return rec, nil
}

// WithTimeout wraps p so that every call gets its own deadline. d <= 0 returns p unchanged.
func WithTimeout(p Prober, d time.Duration) Prober {
	if d <= 0 {
		return p
	}
	return timeoutProber{inner: p, timeout: d}
}

type timeoutProber struct {
	inner   Prober
	timeout time.Duration
}

func (t timeoutProber) Probe(ctx context.Context, path string) (model.FileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Probe(ctx, path)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
