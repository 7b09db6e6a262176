package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"audiomanifest/model"

	"github.com/cockroachdb/errors"
)

// FFprobeProber shells out to ffprobe for formats without a native prober.
type FFprobeProber struct {
	ffprobePath string
}

// NewFFprobeProber creates a new FFprobeProber. An empty path means "ffprobe" from PATH.
func NewFFprobeProber(ffprobePath string) *FFprobeProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobeProber{ffprobePath: ffprobePath}
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	SampleRate string `json:"sample_rate"`
	TimeBase   string `json:"time_base"`
	DurationTS *int64 `json:"duration_ts"`
	Duration   string `json:"duration"`
}

// Probe implements Prober. The context bounds the ffprobe process lifetime.
func (p *FFprobeProber) Probe(ctx context.Context, path string) (model.FileRecord, error) {
	f, err := openNonEmpty(path)
	if err != nil {
		return model.FileRecord{}, &ProbeError{Path: path, Err: err}
	}
	f.Close()

	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,time_base,duration_ts,duration",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return model.FileRecord{}, &ProbeError{Path: path, Err: errors.Wrapf(err, "ffprobe: %s", strings.TrimSpace(stderr.String()))}
	}

	frames, err := parseFFprobeFrames(out.Bytes())
	if err != nil {
		return model.FileRecord{}, &ProbeError{Path: path, Err: err}
	}
	return model.FileRecord{Path: path, FrameCount: frames}, nil
}

// parseFFprobeFrames converts the first audio stream's duration into sample frames.
// duration_ts (in time_base units) is preferred; duration in seconds is the fallback.
func parseFFprobeFrames(raw []byte) (int64, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(raw, &probeData); err != nil {
		return 0, errors.Wrap(err, "unmarshal ffprobe output")
	}
	if len(probeData.Streams) == 0 {
		return 0, errors.New("no audio streams found in file")
	}
	s := probeData.Streams[0]

	sampleRate, err := strconv.ParseFloat(s.SampleRate, 64)
	if err != nil || sampleRate <= 0 {
		return 0, errors.Newf("invalid sample_rate %q", s.SampleRate)
	}

	var seconds float64
	if s.DurationTS != nil {
		num, den, err := parseRational(s.TimeBase)
		if err != nil {
			return 0, err
		}
		seconds = float64(*s.DurationTS) * num / den
	} else {
		seconds, err = strconv.ParseFloat(s.Duration, 64)
		if err != nil {
			return 0, errors.Newf("duration not found in ffprobe output (%q)", s.Duration)
		}
	}
	if seconds < 0 {
		return 0, errors.Newf("negative duration %v", seconds)
	}
	return int64(math.Round(seconds * sampleRate)), nil
}

func parseRational(s string) (float64, float64, error) {
	numStr, denStr, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, errors.Newf("invalid time_base %q", s)
	}
	num, err1 := strconv.ParseFloat(numStr, 64)
	den, err2 := strconv.ParseFloat(denStr, 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0, 0, errors.Newf("invalid time_base %q", s)
	}
	return num, den, nil
}
