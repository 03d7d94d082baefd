package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trackpulse",
	Short: "TrackPulse aggregates streaming metrics for a song across platforms.",
	Long: `TrackPulse 接收歌曲+艺人的聚合请求，调用抓取服务获取各平台数据，
计算与上一次检查的差值和日/周均值，附上图表和 TikTok CSV 后发送报告。
不带子命令时启动 HTTP 服务。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
