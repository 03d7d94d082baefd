package cmd

import (
	"context"
	"fmt"
	"time"

	"TrackPulse/config"
	"TrackPulse/storage"

	"github.com/spf13/cobra"
)

var (
	artifactsPrefix string
	artifactsStats  bool
	artifactsDelete bool
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "附件存储管理",
	Long:  `查看附件存储（本地目录或MinIO存储桶）中的图表和CSV文件，支持统计信息和按前缀删除（仅MinIO）。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := initLogger(cfg); err != nil {
			return err
		}
		fmt.Printf("附件存储: %s\n", cfg.ArtifactBackend)

		store, err := openArtifactStore(cfg)
		if err != nil {
			return fmt.Errorf("无法打开附件存储: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if artifactsDelete {
			ms, ok := store.(*storage.MinioStore)
			if !ok {
				return fmt.Errorf("删除操作只支持 minio 后端")
			}
			if artifactsPrefix == "" {
				return fmt.Errorf("删除操作需要指定前缀")
			}
			n, err := ms.DeletePrefix(ctx, artifactsPrefix)
			fmt.Printf("已删除 %d 个对象\n", n)
			return err
		}

		objects, stats, err := store.List(ctx, artifactsPrefix)
		if err != nil {
			return err
		}

		fmt.Printf("对象数量: %d\n", stats.TotalObjects)
		fmt.Printf("总大小: %.2f MB\n", float64(stats.TotalSize)/1024/1024)
		if !stats.LastModified.IsZero() {
			fmt.Printf("最后修改时间: %s\n", stats.LastModified.Format(time.RFC3339))
		}
		if artifactsStats {
			return nil
		}

		fmt.Println("\n文件列表:")
		for _, obj := range objects {
			fmt.Printf("%-60s %10.1f KB  %s  %s\n",
				obj.Key, float64(obj.Size)/1024, obj.LastModified.Format(time.RFC3339), obj.ContentType)
		}
		return nil
	},
}

func init() {
	artifactsCmd.Flags().StringVarP(&artifactsPrefix, "prefix", "p", "", "对象前缀")
	artifactsCmd.Flags().BoolVarP(&artifactsStats, "stats", "s", false, "只显示统计信息")
	artifactsCmd.Flags().BoolVarP(&artifactsDelete, "delete", "d", false, "删除前缀下的所有对象（仅MinIO）")
	rootCmd.AddCommand(artifactsCmd)
}
