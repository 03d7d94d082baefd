package storage

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// BucketStats 存储统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// ArtifactStore 抓取服务落盘的附件（图表截图、CSV 导出）
// 找不到对象时 Get 返回 model.ErrNotFound
type ArtifactStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error)
}

// 空白和路径分隔符都折叠成下划线，保证生成的名字不会落到别的目录
var fileTokenSeparators = regexp.MustCompile(`[\s/\\]+`)

func fileToken(s string) string {
	return fileTokenSeparators.ReplaceAllString(strings.TrimSpace(s), "_")
}

// CSVFileName TikTok 导出文件名：{song}_{artist}_tiktok.csv
func CSVFileName(song, artist string) string {
	return fileToken(song) + "_" + fileToken(artist) + "_tiktok.csv"
}

// ContentTypeFor 根据扩展名推断类型，未知时按二进制处理
func ContentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".png"):
		return "image/png"
	case strings.HasSuffix(strings.ToLower(name), ".jpg"), strings.HasSuffix(strings.ToLower(name), ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(strings.ToLower(name), ".csv"):
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
