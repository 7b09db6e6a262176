package audio

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"audiomanifest/internal/testaudio"
	"audiomanifest/model"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/gomega"
)

func TestFLACProberReportsFramesNotSamples(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	mono := filepath.Join(dir, "mono.flac")
	stereo := filepath.Join(dir, "stereo.flac")
	testaudio.WriteFLAC(t, mono, 1, 48000)
	testaudio.WriteFLAC(t, stereo, 2, 22050)

	rec, err := FLACProber{}.Probe(context.Background(), mono)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rec).To(Equal(model.FileRecord{Path: mono, FrameCount: 48000}))

	rec, err = FLACProber{}.Probe(context.Background(), stereo)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rec.FrameCount).To(Equal(int64(22050)))
}

func TestFLACProberFailures(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.flac")
	corrupt := filepath.Join(dir, "corrupt.flac")
	testaudio.WriteBytes(t, empty, nil)
	testaudio.WriteBytes(t, corrupt, []byte("this is not a flac stream at all"))

	cases := map[string]string{
		"missing": filepath.Join(dir, "missing.flac"),
		"empty":   empty,
		"corrupt": corrupt,
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			g := NewWithT(t)
			_, err := FLACProber{}.Probe(context.Background(), path)
			g.Expect(err).To(HaveOccurred())

			var pe *ProbeError
			g.Expect(errors.As(err, &pe)).To(BeTrue())
			g.Expect(pe.Path).To(Equal(path))
		})
	}

	g := NewWithT(t)
	_, err := FLACProber{}.Probe(context.Background(), empty)
	g.Expect(errors.Is(err, ErrEmptyFile)).To(BeTrue())
	_, err = FLACProber{}.Probe(context.Background(), filepath.Join(dir, "missing.flac"))
	g.Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
}

func TestWAVProber(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	stereo := filepath.Join(dir, "stereo.wav")
	testaudio.WriteWAV(t, stereo, 16000, 2, 1234)

	rec, err := WAVProber{}.Probe(context.Background(), stereo)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rec.FrameCount).To(Equal(int64(1234)))

	bogus := filepath.Join(dir, "bogus.wav")
	testaudio.WriteBytes(t, bogus, []byte("RIFX garbage"))
	_, err = WAVProber{}.Probe(context.Background(), bogus)
	var pe *ProbeError
	g.Expect(errors.As(err, &pe)).To(BeTrue())
}

type stubProber struct {
	frames int64
	err    error

	mu    sync.Mutex
	calls int
}

func (s *stubProber) Probe(ctx context.Context, path string) (model.FileRecord, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return model.FileRecord{}, s.err
	}
	return model.FileRecord{Path: path, FrameCount: s.frames}, nil
}

func TestRegistryDispatchesByExtension(t *testing.T) {
	g := NewWithT(t)
	flacStub := &stubProber{frames: 1}
	fallback := &stubProber{frames: 2}
	r := NewRegistry(fallback)
	r.Register(".flac", flacStub)

	rec, err := r.Probe(context.Background(), "/a/B.FLAC")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rec.FrameCount).To(Equal(int64(1)))

	rec, err = r.Probe(context.Background(), "/a/b.mp3")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rec.FrameCount).To(Equal(int64(2)))
}

func TestRegistryWithoutFallback(t *testing.T) {
	g := NewWithT(t)
	r := NewRegistry(nil)

	_, err := r.Probe(context.Background(), "/a/b.ogg")
	var pe *ProbeError
	g.Expect(errors.As(err, &pe)).To(BeTrue())
	g.Expect(pe.Path).To(Equal("/a/b.ogg"))
}

func TestRegistryWrapsPlainErrors(t *testing.T) {
	g := NewWithT(t)
	r := NewRegistry(&stubProber{err: errors.New("boom")})

	_, err := r.Probe(context.Background(), "/x.ogg")
	var pe *ProbeError
	g.Expect(errors.As(err, &pe)).To(BeTrue())
	g.Expect(pe.Error()).To(ContainSubstring("boom"))
}

func TestDefaultRegistryProbesNativeFormats(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	f := filepath.Join(dir, "a.flac")
	w := filepath.Join(dir, "b.wav")
	testaudio.WriteFLAC(t, f, 2, 777)
	testaudio.WriteWAV(t, w, 8000, 1, 333)

	r := NewDefaultRegistry("ffprobe")
	rec, err := r.Probe(context.Background(), f)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rec.FrameCount).To(Equal(int64(777)))

	rec, err = r.Probe(context.Background(), w)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rec.FrameCount).To(Equal(int64(333)))
}

type blockingProber struct{}

func (blockingProber) Probe(ctx context.Context, path string) (model.FileRecord, error) {
	<-ctx.Done()
	return model.FileRecord{}, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	g := NewWithT(t)
	p := WithTimeout(blockingProber{}, 10*time.Millisecond)

	_, err := p.Probe(context.Background(), "/slow.flac")
	g.Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())

	inner := &stubProber{}
	g.Expect(WithTimeout(inner, 0)).To(BeIdenticalTo(inner))
}
