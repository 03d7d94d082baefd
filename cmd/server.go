package cmd

import (
	"TrackPulse/logger"
	"TrackPulse/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动TrackPulse服务器",
	Long:  `启动HTTP服务器，提供 /scrape 触发、同步聚合、报告转发和文件下载接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	api := server.NewAPIHandler(a.pipeline, a.aggregator, a.notifier, a.store, a.cfg.PipelineTimeout)
	router := server.NewRouter(api, server.NewFileHandler(a.store))

	logger.Info("Starting TrackPulse server...", logger.String("port", a.cfg.Port))
	return server.Start(a.cfg.Port, router, a.pipeline, a.cfg.PipelineTimeout)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
