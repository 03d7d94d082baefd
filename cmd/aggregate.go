package cmd

import (
	"context"
	"fmt"
	"os"

	"TrackPulse/core/notifier"
	"TrackPulse/core/scraper"
	"TrackPulse/model"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	aggSong       string
	aggArtist     string
	aggDiacritics string
	aggRawFile    string
	aggDeliver    bool
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "对一首歌执行一次聚合",
	Long: `同步执行一次聚合并把报告以 JSON 输出到标准输出。
指定 --raw 时从文件读取抓取结果，不调用抓取服务；--deliver 时同时发送通知。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := model.TriggerRequest{SongName: aggSong, SongNameDiacritics: aggDiacritics, Artist: aggArtist}
		if req.Key().IsZero() {
			return fmt.Errorf("--song and --artist are required")
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.PipelineTimeout)
		defer cancel()

		var (
			report *model.Report
			diags  []model.Diagnostic
		)
		if aggRawFile != "" {
			data, err := os.ReadFile(aggRawFile)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", aggRawFile, err)
			}
			raw, err := scraper.ParseResult(data)
			if err != nil {
				return err
			}
			report, diags, err = a.aggregator.Aggregate(ctx, req.Key(), raw)
			if err != nil {
				printDiagnostics(diags)
				return err
			}
		} else {
			report, diags, err = a.aggregator.Run(ctx, req)
			if err != nil {
				printDiagnostics(diags)
				return err
			}
		}
		printDiagnostics(diags)

		payload := notifier.Compose(report)
		out := json.NewEncoder(os.Stdout)
		out.SetIndent("", "  ")
		if err := out.Encode(map[string]interface{}{"report": report, "payload": payload}); err != nil {
			return err
		}

		if aggDeliver {
			if err := a.notifier.Deliver(ctx, payload); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "报告已发送")
		}
		return nil
	},
}

func printDiagnostics(diags []model.Diagnostic) {
	for _, d := range diags {
		target := string(d.Platform)
		if d.Artifact != "" {
			target = d.Artifact
		}
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", d.Kind, target, d.Message)
	}
}

func init() {
	aggregateCmd.Flags().StringVar(&aggSong, "song", "", "歌曲名")
	aggregateCmd.Flags().StringVar(&aggArtist, "artist", "", "艺人")
	aggregateCmd.Flags().StringVar(&aggDiacritics, "diacritics", "", "带变音符号的歌曲名")
	aggregateCmd.Flags().StringVar(&aggRawFile, "raw", "", "抓取结果 JSON 文件")
	aggregateCmd.Flags().BoolVar(&aggDeliver, "deliver", false, "聚合后发送通知")
	rootCmd.AddCommand(aggregateCmd)
}
