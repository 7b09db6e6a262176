package cmd

import (
	"path/filepath"

	"audiomanifest/config"
	"audiomanifest/core/audio"
	"audiomanifest/core/manifest"
	"audiomanifest/core/measure"
	"audiomanifest/logger"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newProbeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>...",
		Short: "Print the frame count of individual audio files",
		Long: `Measures each file with the same decoders the manifest run uses and prints
"<absolute path>\t<frames>" rows to stdout in argument order. Exits non-zero
if any file could not be measured.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return &config.Error{Field: "file", Value: args, Err: errors.New("at least one file is required")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Workers < 1 {
				return &config.Error{Field: "workers", Value: cfg.Workers, Err: errors.New("must be at least 1")}
			}
			if err := initLogger(cfg); err != nil {
				return err
			}
			defer logger.Sync()

			paths := make([]string, 0, len(args))
			for _, a := range args {
				abs, err := filepath.Abs(a)
				if err != nil {
					return errors.Wrapf(err, "resolve %s", a)
				}
				paths = append(paths, abs)
			}

			m := &measure.Measurer{
				Prober:  audio.WithTimeout(audio.NewDefaultRegistry(cfg.FFprobePath), cfg.ProbeTimeout),
				Workers: cfg.Workers,
			}
			res := m.Measure(cmd.Context(), paths)
			if err := manifest.WriteRows(cmd.OutOrStdout(), res.Records); err != nil {
				return err
			}
			if n := len(res.Failures); n > 0 {
				for _, f := range res.Failures {
					cmd.PrintErrln(f.Error())
				}
				return errors.Newf("%d of %d files could not be measured", n, len(paths))
			}
			return nil
		},
	}
}
