package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audiomanifest/cache"
	"audiomanifest/config"
	"audiomanifest/core/audio"
	"audiomanifest/core/pipeline"
	"audiomanifest/logger"
	"audiomanifest/storage"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
)

// newRootCmd 构建根命令：audiomanifest <root>
// 参数优先级：默认值 < 环境变量（含 .env）< 命令行参数
func newRootCmd() *cobra.Command {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "audiomanifest <root>",
		Short: "Build train/valid TSV manifests for an audio dataset.",
		Long: `Recursively collects audio files under <root>, measures each file's frame count
in parallel, splits the results into a training and a validation subset with a
seeded shuffle, and writes train.tsv / valid.tsv (one "<absolute path>\t<frames>"
row per file) into --dest.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &config.Error{Field: "root", Value: args, Err: errors.Newf("expected exactly 1 argument, got %d", len(args))}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Root = args[0]
			return runManifest(cmd, cfg)
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &config.Error{Field: "flags", Value: cmd.Name(), Err: err}
	})

	f := rootCmd.Flags()
	f.Float64Var(&cfg.ValidFraction, "valid-percent", cfg.ValidFraction, "fraction of files (0..1) put into valid.tsv")
	f.StringVar(&cfg.Dest, "dest", cfg.Dest, "output directory for train.tsv/valid.tsv")
	f.StringVar(&cfg.Ext, "ext", cfg.Ext, "audio file extension to collect, without the dot")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for the train/valid split")
	f.StringVar(&cfg.PathMustContain, "path-must-contain", cfg.PathMustContain, "only keep files whose path contains this substring")
	f.IntVar(&cfg.MaxFiles, "max-files", cfg.MaxFiles, "measure at most this many discovered files")
	f.BoolVar(&cfg.Upload, "upload", cfg.Upload, "publish the manifests to the MinIO bucket (MINIO_* env)")
	f.BoolVar(&cfg.Cache, "cache", cfg.Cache, "cache frame counts in Redis (REDIS_* env)")

	pf := rootCmd.PersistentFlags()
	pf.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of parallel probe workers")
	pf.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "per-file probe timeout, 0 disables it")
	pf.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "ffprobe binary used for formats without a native decoder")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pf.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write JSON logs to this rotated file")

	rootCmd.AddCommand(newProbeCmd(cfg), newCacheCmd(cfg), newBucketCmd(cfg))
	return rootCmd
}

func initLogger(cfg *config.Config) error {
	err := logger.InitLogger(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Console:    isTTY(os.Stderr),
		OutputPath: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
	return errors.Wrap(err, "init logger")
}

func runManifest(cmd *cobra.Command, cfg *config.Config) error {
	// 参数错误必须在任何文件系统操作之前报告
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return err
	}
	defer logger.Sync()

	runID := uuid.NewString()
	logger.With(logger.String("runId", runID))

	ctx := cmd.Context()
	var prober audio.Prober = audio.NewDefaultRegistry(cfg.FFprobePath)

	if cfg.Cache {
		fc, err := cache.ConnectFrameCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer fc.Close()
		prober = &audio.CachedProber{Prober: prober, Cache: fc}
	}

	deps := pipeline.Deps{Prober: prober, RunID: runID}

	if cfg.Upload {
		up, err := storage.NewManifestUploader(cfg)
		if err != nil {
			return err
		}
		if err := up.EnsureBucket(ctx); err != nil {
			return err
		}
		deps.Uploader = up
	}

	if w, ok := pickProgressWriter(); ok {
		deps.Observer = newProgressObserver(w)
	}

	sum, err := pipeline.Run(ctx, cfg, deps)
	if err != nil {
		return err
	}
	printSummary(cmd.ErrOrStderr(), sum)
	return nil
}

func printSummary(w io.Writer, sum pipeline.Summary) {
	fmt.Fprintf(w, "run %s: %d discovered, %d measured, %d failed", sum.RunID, sum.Discovered, sum.Measured, sum.Failed)
	if sum.Truncated > 0 {
		fmt.Fprintf(w, ", %d skipped by --max-files", sum.Truncated)
	}
	fmt.Fprintf(w, " (%s)\n", sum.Elapsed.Round(time.Millisecond))
	if sum.Paths.Valid != "" {
		fmt.Fprintf(w, "  valid: %s (%d rows)\n", sum.Paths.Valid, sum.Valid)
	}
	fmt.Fprintf(w, "  train: %s (%d rows)\n", sum.Paths.Train, sum.Train)
	for _, key := range sum.Uploaded {
		fmt.Fprintf(w, "  uploaded: %s\n", key)
	}
}

// exitCode 把错误映射为进程退出码：参数错误为 2，其余致命错误为 1
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case config.IsConfigError(err):
		return exitConfigError
	default:
		return exitFailure
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logger.Error("run failed", logger.ErrorField(err))
		fmt.Fprintln(stderr, "Error:", err)
		if config.IsConfigError(err) {
			fmt.Fprintln(stderr, "Run 'audiomanifest --help' for usage.")
		}
	}
	return exitCode(err)
}

// Execute executes the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
