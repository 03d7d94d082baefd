package cmd

import (
	"context"
	"fmt"
	"time"

	"TrackPulse/cache"
	"TrackPulse/config"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并对序列锁做一次加锁/释放往返。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("开始测试Redis连接...")

		cfg := config.Load()
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := cache.ConnectRedis(cfg); err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer cache.CloseRedis()
		fmt.Println("Redis连接成功！")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cache.CheckSeriesLock(ctx, cfg.SeriesLockTTL); err != nil {
			return fmt.Errorf("序列锁测试失败: %w", err)
		}
		fmt.Println("序列锁测试成功！")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
