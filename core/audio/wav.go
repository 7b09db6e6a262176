package audio

import (
	"context"

	"audiomanifest/model"

	"github.com/cockroachdb/errors"
	"github.com/go-audio/wav"
)

// WAVProber derives the frame count from the size of the PCM data chunk.
type WAVProber struct{}

// Probe implements Prober.
func (WAVProber) Probe(ctx context.Context, path string) (model.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.FileRecord{}, &ProbeError{Path: path, Err: err}
	}

	f, err := openNonEmpty(path)
	if err != nil {
		return model.FileRecord{}, &ProbeError{Path: path, Err: err}
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return model.FileRecord{}, &ProbeError{Path: path, Err: errors.New("not a valid wav file")}
	}
	if err := d.FwdToPCM(); err != nil {
		return model.FileRecord{}, &ProbeError{Path: path, Err: errors.Wrap(err, "locate pcm chunk")}
	}

	bytesPerFrame := int64(d.NumChans) * int64((d.BitDepth+7)/8)
	if bytesPerFrame == 0 {
		return model.FileRecord{}, &ProbeError{Path: path, Err: errors.Newf("invalid format: %d channels, %d bits", d.NumChans, d.BitDepth)}
	}

	return model.FileRecord{Path: path, FrameCount: d.PCMLen() / bytesPerFrame}, nil
}
