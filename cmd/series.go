package cmd

import (
	"context"
	"fmt"
	"time"

	"TrackPulse/config"
	"TrackPulse/model"

	"github.com/spf13/cobra"
)

var (
	seriesSong     string
	seriesArtist   string
	seriesPlatform string
	seriesLimit    int
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "查看一首歌的历史序列",
	Long: `从 SERIES_BACKEND 指定的存储读取一首歌在各平台的历史序列，只读不加锁。
不指定 --platform 时列出所有平台，--limit 控制每个平台显示的最新点数（0 为全部）。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := model.NewTrackKey(seriesSong, seriesArtist, "")
		if key.IsZero() {
			return fmt.Errorf("--song and --artist are required")
		}

		platforms := model.Platforms
		if seriesPlatform != "" {
			p, ok := model.ParsePlatform(seriesPlatform)
			if !ok {
				return fmt.Errorf("%w: %s", model.ErrUnknownPlatform, seriesPlatform)
			}
			platforms = []model.Platform{p}
		}

		cfg := config.Load()
		if err := initLogger(cfg); err != nil {
			return err
		}
		store, closer, err := openSeriesStore(cfg)
		if err != nil {
			return fmt.Errorf("无法打开序列存储: %w", err)
		}
		if closer != nil {
			defer closer()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		fmt.Printf("序列存储: %s, 歌曲: %s\n", cfg.SeriesBackend, key.ID())
		for _, p := range platforms {
			series, err := store.Series(ctx, key, p)
			if err != nil {
				return fmt.Errorf("读取 %s 序列失败: %w", p, err)
			}
			fmt.Printf("\n[%s] %d 个点\n", p, len(series))
			if seriesLimit > 0 && len(series) > seriesLimit {
				series = series[len(series)-seriesLimit:]
			}
			for _, pt := range series {
				fmt.Printf("  %s  %.0f\n", pt.At.Format(time.RFC3339), pt.Value)
			}
		}
		return nil
	},
}

func init() {
	seriesCmd.Flags().StringVar(&seriesSong, "song", "", "歌曲名")
	seriesCmd.Flags().StringVar(&seriesArtist, "artist", "", "艺人")
	seriesCmd.Flags().StringVarP(&seriesPlatform, "platform", "p", "", "平台，为空时列出全部")
	seriesCmd.Flags().IntVarP(&seriesLimit, "limit", "n", 20, "每个平台显示的最新点数")
	rootCmd.AddCommand(seriesCmd)
}
