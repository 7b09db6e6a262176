package pipeline

import (
	"context"
	"strconv"
	"time"

	"audiomanifest/config"
	"audiomanifest/core/audio"
	"audiomanifest/core/discovery"
	"audiomanifest/core/manifest"
	"audiomanifest/core/measure"
	"audiomanifest/core/split"
	"audiomanifest/logger"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Uploader publishes a written manifest file and returns its object key.
type Uploader interface {
	Upload(ctx context.Context, localPath string, metadata map[string]string) (string, error)
}

// Deps are the collaborators of one run.
type Deps struct {
	Prober   audio.Prober
	Observer measure.Observer // optional
	Uploader Uploader         // optional; nil disables publishing
	RunID    string           // optional; generated when empty
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Discovered int
	Measured   int
	Failed     int
	Truncated  int
	Valid      int
	Train      int
	Paths      manifest.Paths
	Uploaded   []string
	Failures   []*audio.ProbeError
	Elapsed    time.Duration
}

// Run 执行一次完整流程：校验配置 → 扫描 → 并发测量 → 划分 → 写清单 →（可选）上传。
//
// 单个文件探测失败不会中断流程；其余任何阶段出错都直接返回，由调用方决定退出码。
func Run(ctx context.Context, cfg *config.Config, deps Deps) (Summary, error) {
	started := time.Now()

	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}

	sum := Summary{RunID: deps.RunID}
	if sum.RunID == "" {
		sum.RunID = uuid.NewString()
	}

	logger.Info("manifest run started",
		logger.String("root", cfg.Root),
		logger.String("dest", cfg.Dest),
		logger.String("ext", cfg.Ext),
		logger.Float64("validFraction", cfg.ValidFraction),
		logger.Int64("seed", cfg.Seed),
		logger.Int("workers", cfg.Workers),
		logger.Int("maxFiles", cfg.MaxFiles))

	paths, err := discovery.Discover(cfg.Root, cfg.Ext, cfg.PathMustContain)
	if err != nil {
		return sum, err
	}
	sum.Discovered = len(paths)
	logger.Info("discovery finished", logger.Int("files", len(paths)))

	m := &measure.Measurer{
		Prober:   audio.WithTimeout(deps.Prober, cfg.ProbeTimeout),
		Workers:  cfg.Workers,
		MaxFiles: cfg.MaxFiles,
		Observer: deps.Observer,
	}
	res := m.Measure(ctx, paths)
	// 被中断时的结果不完整，不能覆盖已有清单
	if err := ctx.Err(); err != nil {
		logger.Warn("measurement interrupted, manifests left untouched",
			logger.Int("measured", len(res.Records)),
			logger.Int("total", res.Total))
		return sum, errors.Wrap(err, "measurement interrupted")
	}
	sum.Measured = len(res.Records)
	sum.Failed = len(res.Failures)
	sum.Truncated = res.Truncated
	sum.Failures = res.Failures
	logger.Info("measurement finished",
		logger.Int("measured", sum.Measured),
		logger.Int("failed", sum.Failed),
		logger.Duration("elapsed", res.Elapsed))

	sp, err := split.New(cfg.Seed).Split(res.Records, cfg.ValidFraction)
	if err != nil {
		return sum, err
	}
	sum.Valid = len(sp.Validation)
	sum.Train = len(sp.Training)

	out, err := manifest.Write(sp, cfg.Dest, cfg.WriteValid())
	if err != nil {
		return sum, err
	}
	sum.Paths = out

	if deps.Uploader != nil {
		meta := map[string]string{
			"run-id":         sum.RunID,
			"seed":           strconv.FormatInt(cfg.Seed, 10),
			"valid-fraction": strconv.FormatFloat(cfg.ValidFraction, 'g', -1, 64),
		}
		for _, p := range []string{out.Valid, out.Train} {
			if p == "" {
				continue
			}
			key, err := deps.Uploader.Upload(ctx, p, meta)
			if err != nil {
				return sum, err
			}
			sum.Uploaded = append(sum.Uploaded, key)
		}
	}

	sum.Elapsed = time.Since(started)
	logger.Info("manifest run finished",
		logger.Int("discovered", sum.Discovered),
		logger.Int("measured", sum.Measured),
		logger.Int("failed", sum.Failed),
		logger.Int("truncated", sum.Truncated),
		logger.Int("valid", sum.Valid),
		logger.Int("train", sum.Train),
		logger.Duration("elapsed", sum.Elapsed))
	return sum, nil
}
