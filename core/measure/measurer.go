package measure

import (
	"context"
	"sync"
	"time"

	"audiomanifest/core/audio"
	"audiomanifest/logger"
	"audiomanifest/model"

	"github.com/cockroachdb/errors"
)

// Observer receives progress events. All calls come from the single
// collector goroutine, never concurrently.
type Observer interface {
	OnStart(total int)
	OnProbeDone(done, total int, path string, err error)
	OnFinish(res Result)
}

// Result is the outcome of one Measure call.
type Result struct {
	// Records holds one entry per successful probe, in input order.
	Records []model.FileRecord
	// Failures holds one entry per failed probe, in input order.
	Failures []*audio.ProbeError
	// Total is the number of paths dispatched (after truncation).
	Total int
	// Truncated is the number of input paths dropped by MaxFiles.
	Truncated int
	Elapsed   time.Duration
}

// Measurer probes files on a bounded worker pool.
type Measurer struct {
	Prober   audio.Prober
	Workers  int
	MaxFiles int // <= 0 means no cap
	Observer Observer
}

type job struct {
	idx  int
	path string
}

type outcome struct {
	idx int
	rec model.FileRecord
	err error
}

// Measure 并发探测 paths 中前 MaxFiles 个文件。
//
// 单个文件失败只记录在 Result.Failures 中，不影响其他文件。结果按输入顺序返回
// （而不是完成顺序），这样后续按种子打乱时可复现。
func (m *Measurer) Measure(ctx context.Context, paths []string) Result {
	started := time.Now()

	res := Result{}
	if m.MaxFiles > 0 && len(paths) > m.MaxFiles {
		res.Truncated = len(paths) - m.MaxFiles
		paths = paths[:m.MaxFiles]
		logger.Info("file list truncated",
			logger.Int("maxFiles", m.MaxFiles),
			logger.Int("dropped", res.Truncated))
	}
	res.Total = len(paths)

	workers := m.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}

	if m.Observer != nil {
		m.Observer.OnStart(res.Total)
	}

	jobs := make(chan job)
	outcomes := make(chan outcome, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				rec, err := m.Prober.Probe(ctx, j.path)
				if err == nil && rec.FrameCount < 0 {
					err = errors.Newf("negative frame count %d", rec.FrameCount)
				}
				outcomes <- outcome{idx: j.idx, rec: rec, err: err}
			}
		}()
	}

	go func() {
		for i, p := range paths {
			jobs <- job{idx: i, path: p}
		}
		close(jobs)
		wg.Wait()
		close(outcomes)
	}()

	// 单一汇聚点：只有这个 goroutine 写结果槽位
	slots := make([]outcome, len(paths))
	done := 0
	for o := range outcomes {
		done++
		slots[o.idx] = o
		if o.err != nil {
			logger.Warn("probe failed, skipping file",
				logger.String("path", paths[o.idx]),
				logger.ErrorField(o.err))
		}
		if m.Observer != nil {
			m.Observer.OnProbeDone(done, res.Total, paths[o.idx], o.err)
		}
	}

	res.Records = make([]model.FileRecord, 0, len(paths))
	for i, o := range slots {
		if o.err != nil {
			res.Failures = append(res.Failures, asProbeError(paths[i], o.err))
			continue
		}
		res.Records = append(res.Records, o.rec)
	}
	res.Elapsed = time.Since(started)

	if m.Observer != nil {
		m.Observer.OnFinish(res)
	}
	return res
}

func asProbeError(path string, err error) *audio.ProbeError {
	var pe *audio.ProbeError
	if errors.As(err, &pe) {
		return pe
	}
	return &audio.ProbeError{Path: path, Err: err}
}
