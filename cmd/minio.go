package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"audiomanifest/config"
	"audiomanifest/logger"
	"audiomanifest/storage"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newBucketCmd(cfg *config.Config) *cobra.Command {
	var prefix string

	bucketCmd := &cobra.Command{
		Use:   "bucket",
		Short: "列出已上传到 MinIO 的清单",
		Long:  `列出 --upload 发布到 MinIO 存储桶中的 train.tsv/valid.tsv，连接参数来自 MINIO_* 环境变量。`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.MinioEndpoint == "" {
				return &config.Error{Field: "bucket", Value: cfg.MinioBucket, Err: errors.New("MINIO_ENDPOINT is not set")}
			}
			if cmd.Flags().Changed("prefix") {
				cfg.MinioPrefix = prefix
			}
			if err := initLogger(cfg); err != nil {
				return err
			}
			defer logger.Sync()

			up, err := storage.NewManifestUploader(cfg)
			if err != nil {
				return err
			}
			objects, err := up.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			var total int64
			for _, obj := range objects {
				total += obj.Size
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					obj.LastModified.Format(time.DateTime), storage.FormatSize(obj.Size), obj.RunID, obj.Key)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d objects, %s\n", len(objects), storage.FormatSize(total))
			return nil
		},
	}

	bucketCmd.Flags().StringVarP(&prefix, "prefix", "p", "", "按前缀过滤（默认使用 MINIO_PREFIX）")
	bucketCmd.Example = `  # 列出默认前缀下的清单
  audiomanifest bucket

  # 指定前缀
  audiomanifest bucket -p datasets/librispeech`
	return bucketCmd
}
