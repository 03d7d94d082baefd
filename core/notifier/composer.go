package notifier

import (
	"math"
	"strconv"

	"TrackPulse/model"
)

// Compose 把报告展开成通知渠道的扁平字段
// 报告中缺失的字段一律填 "-"，附件填 base64（没有内容时为空串）
func Compose(report *model.Report) model.NotificationPayload {
	spotify := metricFields(report, model.PlatformSpotify)
	shazam := metricFields(report, model.PlatformShazam)
	youtube := metricFields(report, model.PlatformYoutube)

	chartexStats := model.Placeholder
	if m, ok := report.Platform(model.PlatformChartex); ok {
		chartexStats = text(m.Stats)
	}

	return model.NotificationPayload{
		SongName: orPlaceholder(report.Key.Song),
		Artist:   orPlaceholder(report.Key.Artist),

		SpotifyTitle:     spotify.title,
		SpotifyStreams:   spotify.current,
		SpotifyDiff:      spotify.diff,
		SpotifyDailyAvg:  spotify.daily,
		SpotifyWeeklyAvg: spotify.weekly,

		ShazamTitle:     shazam.title,
		ShazamCount:     shazam.current,
		ShazamDiff:      shazam.diff,
		ShazamDailyAvg:  shazam.daily,
		ShazamWeeklyAvg: shazam.weekly,

		YoutubeTitle:     youtube.title,
		YoutubeViews:     youtube.current,
		YoutubeDiff:      youtube.diff,
		YoutubeDailyAvg:  youtube.daily,
		YoutubeWeeklyAvg: youtube.weekly,

		ChartexStats: chartexStats,

		SpotontrackImageBase64: report.Artifacts[model.ArtifactSpotontrackImage].Encoded(),
		MediaforestImageBase64: report.Artifacts[model.ArtifactMediaforestImage].Encoded(),
		TiktokCSVBase64:        report.Artifacts[model.ArtifactTiktokCSV].Encoded(),
	}
}

type fields struct {
	title, current, diff, daily, weekly string
}

func metricFields(report *model.Report, p model.Platform) fields {
	m, ok := report.Platform(p)
	if !ok {
		return fields{model.Placeholder, model.Placeholder, model.Placeholder, model.Placeholder, model.Placeholder}
	}
	return fields{
		title:   text(m.Title),
		current: number(m.CurrentValue),
		diff:    number(m.DeltaSinceLastCheck),
		daily:   number(m.DailyAverage),
		weekly:  number(m.WeeklyAverage),
	}
}

func text(s *string) string {
	if s == nil {
		return model.Placeholder
	}
	return orPlaceholder(*s)
}

func orPlaceholder(s string) string {
	if s == "" {
		return model.Placeholder
	}
	return s
}

// number 整数不带小数，其余保留两位
func number(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return model.Placeholder
	}
	if *v == math.Trunc(*v) && math.Abs(*v) < 1e15 {
		return strconv.FormatFloat(*v, 'f', 0, 64)
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
