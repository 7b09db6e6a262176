package cmd

import (
	"fmt"

	"audiomanifest/cache"
	"audiomanifest/config"
	"audiomanifest/logger"

	"github.com/spf13/cobra"
)

func newCacheCmd(cfg *config.Config) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Redis 帧数缓存管理",
		Long:  `查看或清空 --cache 使用的 Redis 帧数缓存（连接参数来自 REDIS_* 环境变量）。`,
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "测试Redis连接并统计缓存条目",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogger(cfg); err != nil {
				return err
			}
			defer logger.Sync()

			fc, err := cache.ConnectFrameCache(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer fc.Close()

			n, err := fc.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "redis %s db %d: %d cached frame counts\n", cfg.RedisAddr(), cfg.RedisDB, n)
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "删除所有缓存的帧数",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogger(cfg); err != nil {
				return err
			}
			defer logger.Sync()

			fc, err := cache.ConnectFrameCache(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer fc.Close()

			n, err := fc.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached frame counts\n", n)
			return nil
		},
	})

	return cacheCmd
}
