package model

import "time"

// Platform 外部数据来源
type Platform string

const (
	PlatformYoutube     Platform = "youtube"
	PlatformSpotify     Platform = "spotify"
	PlatformShazam      Platform = "shazam"
	PlatformChartex     Platform = "chartex"
	PlatformMediaforest Platform = "mediaforest"
	PlatformSpotontrack Platform = "spotontrack"
)

// Platforms 所有已知平台
var Platforms = []Platform{
	PlatformYoutube,
	PlatformSpotify,
	PlatformShazam,
	PlatformChartex,
	PlatformMediaforest,
	PlatformSpotontrack,
}

// ParsePlatform 解析平台名称
func ParsePlatform(name string) (Platform, bool) {
	for _, p := range Platforms {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// Point 时间序列中的一次观测
type Point struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// PlatformMetric 单个平台归一化后的指标
// 指针字段为 nil 表示缺失，绝不用零值填充
type PlatformMetric struct {
	Title               *string  `json:"title,omitempty"`
	CurrentValue        *float64 `json:"currentValue,omitempty"`
	PreviousValue       *float64 `json:"previousValue,omitempty"`
	DeltaSinceLastCheck *float64 `json:"deltaSinceLastCheck,omitempty"`
	DailyAverage        *float64 `json:"dailyAverage,omitempty"`
	WeeklyAverage       *float64 `json:"weeklyAverage,omitempty"`
	TimeSeries          []Point  `json:"timeSeries"`
	ChartAvailable      bool     `json:"chartAvailable"`

	// Stats chartex 返回的文本统计
	Stats *string `json:"stats,omitempty"`

	// ArtifactRefs 载荷中引用的图表/CSV，artifact 名 -> 原始引用
	ArtifactRefs map[string]string `json:"-"`
}

// Float 返回 v 的指针
func Float(v float64) *float64 {
	return &v
}

// String 返回 s 的指针
func String(s string) *string {
	return &s
}
