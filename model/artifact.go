package model

import "encoding/base64"

// ArtifactKind 附件类型
type ArtifactKind string

const (
	ArtifactImage ArtifactKind = "image"
	ArtifactCSV   ArtifactKind = "csv"
)

// 报告中的附件名
const (
	ArtifactSpotontrackImage = "spotontrack_image"
	ArtifactMediaforestImage = "mediaforest_image"
	ArtifactTiktokCSV        = "tiktok_csv"
)

// ArtifactRef 待解析的附件引用
// Exact 为 true 时只按 Ref 原样到存储里查找，不做按文件名的退回
type ArtifactRef struct {
	Name  string
	Kind  ArtifactKind
	Ref   string
	Exact bool
}

// Artifact 解析后的附件，Data 与 URL 至多一个有值
type Artifact struct {
	Name      string       `json:"name"`
	Kind      ArtifactKind `json:"kind"`
	SourceRef string       `json:"sourceRef"`
	Data      []byte       `json:"data,omitempty"`
	URL       string       `json:"url,omitempty"`
}

// Empty 没有可用内容
func (a Artifact) Empty() bool {
	return len(a.Data) == 0 && a.URL == ""
}

// Encoded 返回 base64 内容、外部 URL 或空串
func (a Artifact) Encoded() string {
	if len(a.Data) > 0 {
		return base64.StdEncoding.EncodeToString(a.Data)
	}
	return a.URL
}
