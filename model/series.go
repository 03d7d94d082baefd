package model

import (
	"database/sql/driver"
	"time"

	json "github.com/goccy/go-json"
)

// PointList 时间序列，以 JSON 存在一列里
type PointList []Point

// Scan 实现 sql.Scanner 接口
func (s *PointList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = nil
		return nil
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*s = nil
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// Value 实现 driver.Valuer 接口
func (s PointList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// SeriesRecord 一个 (TrackKey, 平台) 的历史序列
// Version 用于乐观并发控制，每次写入加一
type SeriesRecord struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	TrackID   string    `gorm:"size:512;not null;uniqueIndex:idx_series_track_platform"`
	Platform  Platform  `gorm:"size:32;not null;uniqueIndex:idx_series_track_platform"`
	Song      string    `gorm:"size:255"`
	Artist    string    `gorm:"size:255"`
	Points    PointList `gorm:"type:longtext"`
	Version   int64     `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (SeriesRecord) TableName() string {
	return "track_series"
}
