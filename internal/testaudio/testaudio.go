// Package testaudio writes small audio fixtures for tests.
package testaudio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// FLACHeader returns a FLAC stream consisting of the signature and a single STREAMINFO block.
// No audio frames follow; the total sample count lives in the header.
func FLACHeader(sampleRate uint32, channels, bitsPerSample uint8, nsamples uint64) []byte {
	b := make([]byte, 0, 42)
	b = append(b, "fLaC"...)
	// last-metadata-block flag set, type 0 (STREAMINFO), length 34
	b = append(b, 0x80, 0x00, 0x00, 34)
	b = binary.BigEndian.AppendUint16(b, 4096) // min block size
	b = binary.BigEndian.AppendUint16(b, 4096) // max block size
	b = append(b, 0, 0, 0, 0, 0, 0)            // min/max frame size unknown
	packed := uint64(sampleRate)<<44 |
		uint64(channels-1)<<41 |
		uint64(bitsPerSample-1)<<36 |
		nsamples&(1<<36-1)
	b = binary.BigEndian.AppendUint64(b, packed)
	b = append(b, make([]byte, 16)...) // MD5
	return b
}

// WriteFLAC writes a FLAC header-only file with the given frame count.
func WriteFLAC(t testing.TB, path string, channels uint8, frames uint64) {
	t.Helper()
	WriteBytes(t, path, FLACHeader(16000, channels, 16, frames))
}

// WriteWAV writes a 16-bit PCM WAV file of silence.
func WriteWAV(t testing.TB, path string, sampleRate, channels, frames int) {
	t.Helper()
	mkdir(t, path)
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer out.Close()

	enc := wav.NewEncoder(out, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, frames*channels),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder %s: %v", path, err)
	}
}

// WriteBytes writes raw content, creating parent directories.
func WriteBytes(t testing.TB, path string, content []byte) {
	t.Helper()
	mkdir(t, path)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mkdir(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
}
