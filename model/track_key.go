package model

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// TrackKey 标识一个被统计的 (歌曲, 艺人) 组合
// SongDiacritics 只是展示/查询提示，不参与身份比较
type TrackKey struct {
	Song           string `json:"song"`
	Artist         string `json:"artist"`
	SongDiacritics string `json:"songDiacritics,omitempty"`
}

// NewTrackKey 创建 TrackKey，去除首尾空白
func NewTrackKey(song, artist, diacritics string) TrackKey {
	return TrackKey{
		Song:           strings.TrimSpace(song),
		Artist:         strings.TrimSpace(artist),
		SongDiacritics: strings.TrimSpace(diacritics),
	}
}

// canonicalText 统一空白、Unicode 组合形式和大小写
func canonicalText(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, " ")
	// cases.Caser 有状态，不能在 goroutine 之间共享
	return cases.Fold().String(s)
}

// Equal 歌名和艺人在空白归一化后大小写不敏感地相等
func (k TrackKey) Equal(other TrackKey) bool {
	return canonicalText(k.Song) == canonicalText(other.Song) &&
		canonicalText(k.Artist) == canonicalText(other.Artist)
}

// ID 返回用于存储键的规范身份字符串
func (k TrackKey) ID() string {
	return fmt.Sprintf("%s::%s", canonicalText(k.Song), canonicalText(k.Artist))
}

// IsZero 歌名或艺人为空
func (k TrackKey) IsZero() bool {
	return strings.TrimSpace(k.Song) == "" || strings.TrimSpace(k.Artist) == ""
}

// DisplaySong 优先返回带变音符号的歌名
func (k TrackKey) DisplaySong() string {
	if k.SongDiacritics != "" {
		return k.SongDiacritics
	}
	return k.Song
}

func (k TrackKey) String() string {
	return fmt.Sprintf("%s - %s", k.Artist, k.Song)
}

// TriggerRequest 聚合触发请求
type TriggerRequest struct {
	SongName           string `json:"song_name"`
	SongNameDiacritics string `json:"song_name_diacritics,omitempty"`
	Artist             string `json:"artist"`
}

// Key 转换为 TrackKey
func (r TriggerRequest) Key() TrackKey {
	return NewTrackKey(r.SongName, r.Artist, r.SongNameDiacritics)
}
