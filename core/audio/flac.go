package audio

import (
	"context"
	"io"

	"audiomanifest/model"

	"github.com/cockroachdb/errors"
	"github.com/mewkiz/flac"
)

// FLACProber reads the frame count from the STREAMINFO block.
type FLACProber struct{}

// Probe implements Prober.
func (FLACProber) Probe(ctx context.Context, path string) (model.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.FileRecord{}, &ProbeError{Path: path, Err: err}
	}

	f, err := openNonEmpty(path)
	if err != nil {
		return model.FileRecord{}, &ProbeError{Path: path, Err: err}
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		return model.FileRecord{}, &ProbeError{Path: path, Err: errors.Wrap(err, "parse flac header")}
	}

	// NSamples 为每声道采样数；0 表示编码器没有写入总数，只能逐帧累加
	frames := stream.Info.NSamples
	if frames == 0 {
		frames, err = countFLACFrames(ctx, stream)
		if err != nil {
			return model.FileRecord{}, &ProbeError{Path: path, Err: err}
		}
	}

	return model.FileRecord{Path: path, FrameCount: int64(frames)}, nil
}

func countFLACFrames(ctx context.Context, stream *flac.Stream) (uint64, error) {
	var n uint64
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return 0, errors.Wrap(err, "parse flac frame")
		}
		n += uint64(frame.BlockSize)
	}
}
