package model

// Placeholder 文本渠道中缺失字段的显示值
const Placeholder = "-"

// NotificationPayload 通知渠道接收的扁平字段
type NotificationPayload struct {
	SongName               string `json:"song_name"`
	Artist                 string `json:"artist"`
	SpotifyTitle           string `json:"spotify_title"`
	SpotifyStreams         string `json:"spotify_streams"`
	SpotifyDiff            string `json:"spotify_diff"`
	SpotifyDailyAvg        string `json:"spotify_daily_avg"`
	SpotifyWeeklyAvg       string `json:"spotify_weekly_avg"`
	ShazamTitle            string `json:"shazam_title"`
	ShazamCount            string `json:"shazam_count"`
	ShazamDiff             string `json:"shazam_diff"`
	ShazamDailyAvg         string `json:"shazam_daily_avg"`
	ShazamWeeklyAvg        string `json:"shazam_weekly_avg"`
	YoutubeTitle           string `json:"youtube_title"`
	YoutubeViews           string `json:"youtube_views"`
	YoutubeDiff            string `json:"youtube_diff"`
	YoutubeDailyAvg        string `json:"youtube_daily_avg"`
	YoutubeWeeklyAvg       string `json:"youtube_weekly_avg"`
	ChartexStats           string `json:"chartex_stats"`
	SpotontrackImageBase64 string `json:"spotontrack_image_base64"`
	MediaforestImageBase64 string `json:"mediaforest_image_base64"`
	TiktokCSVBase64        string `json:"tiktok_csv_base64"`
}
