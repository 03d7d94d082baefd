package normalizer

import "TrackPulse/model"

// rawPayload 每个平台的原始载荷
type rawPayload interface {
	toMetric() model.PlatformMetric
}

type YoutubeRaw struct {
	Title     flexString `json:"title"`
	Views     flexNumber `json:"views"`
	ViewCount flexNumber `json:"view_count"`
}

func (r *YoutubeRaw) toMetric() model.PlatformMetric {
	return model.PlatformMetric{
		Title:        r.Title.value,
		CurrentValue: firstNumber(r.Views, r.ViewCount),
	}
}

type SpotifyRaw struct {
	Title     flexString `json:"title"`
	Streams   flexNumber `json:"streams"`
	Playcount flexNumber `json:"playcount"`
}

func (r *SpotifyRaw) toMetric() model.PlatformMetric {
	return model.PlatformMetric{
		Title:        r.Title.value,
		CurrentValue: firstNumber(r.Streams, r.Playcount),
	}
}

type ShazamRaw struct {
	Title   flexString `json:"title"`
	Count   flexNumber `json:"count"`
	Shazams flexNumber `json:"shazams"`
}

func (r *ShazamRaw) toMetric() model.PlatformMetric {
	return model.PlatformMetric{
		Title:        r.Title.value,
		CurrentValue: firstNumber(r.Count, r.Shazams),
	}
}

// ChartexRaw TikTok 数据，附带 CSV 导出
type ChartexRaw struct {
	Title        flexString `json:"title"`
	Videos       flexNumber `json:"videos"`
	TiktokVideos flexNumber `json:"tiktok_videos"`
	Stats        flexText   `json:"stats"`
	CSV          flexString `json:"csv"`
	CSVURL       flexString `json:"csv_url"`
}

func (r *ChartexRaw) toMetric() model.PlatformMetric {
	m := model.PlatformMetric{
		Title:        r.Title.value,
		CurrentValue: firstNumber(r.Videos, r.TiktokVideos),
		Stats:        r.Stats.value,
	}
	if ref := firstString(r.CSV, r.CSVURL); ref != nil {
		m.ArtifactRefs = map[string]string{model.ArtifactTiktokCSV: *ref}
	}
	return m
}

// MediaforestRaw 电台播放统计，附带图表
type MediaforestRaw struct {
	Title      flexString `json:"title"`
	Spins      flexNumber `json:"spins"`
	Plays      flexNumber `json:"plays"`
	Image      flexString `json:"image"`
	ImageURL   flexString `json:"image_url"`
	ChartImage flexString `json:"chart_image"`
}

func (r *MediaforestRaw) toMetric() model.PlatformMetric {
	m := model.PlatformMetric{
		Title:        r.Title.value,
		CurrentValue: firstNumber(r.Spins, r.Plays),
	}
	if ref := firstString(r.Image, r.ImageURL, r.ChartImage); ref != nil {
		m.ArtifactRefs = map[string]string{model.ArtifactMediaforestImage: *ref}
	}
	return m
}

type SpotontrackRaw struct {
	Title      flexString `json:"title"`
	Streams    flexNumber `json:"streams"`
	Playlists  flexNumber `json:"playlists"`
	Image      flexString `json:"image"`
	ImageURL   flexString `json:"image_url"`
	ChartImage flexString `json:"chart_image"`
}

func (r *SpotontrackRaw) toMetric() model.PlatformMetric {
	m := model.PlatformMetric{
		Title:        r.Title.value,
		CurrentValue: firstNumber(r.Streams, r.Playlists),
	}
	if ref := firstString(r.Image, r.ImageURL, r.ChartImage); ref != nil {
		m.ArtifactRefs = map[string]string{model.ArtifactSpotontrackImage: *ref}
	}
	return m
}

func newRaw(platform model.Platform) rawPayload {
	switch platform {
	case model.PlatformYoutube:
		return &YoutubeRaw{}
	case model.PlatformSpotify:
		return &SpotifyRaw{}
	case model.PlatformShazam:
		return &ShazamRaw{}
	case model.PlatformChartex:
		return &ChartexRaw{}
	case model.PlatformMediaforest:
		return &MediaforestRaw{}
	case model.PlatformSpotontrack:
		return &SpotontrackRaw{}
	default:
		return nil
	}
}
