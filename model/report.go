package model

import "time"

// Report 一次聚合请求的完整结果，组装完成后不再修改
type Report struct {
	ID          string                      `json:"id"`
	Key         TrackKey                    `json:"key"`
	Platforms   map[Platform]PlatformMetric `json:"platforms"`
	Artifacts   map[string]Artifact         `json:"artifacts"`
	GeneratedAt time.Time                   `json:"generatedAt"`
}

// Platform 返回指定平台的指标
func (r *Report) Platform(p Platform) (PlatformMetric, bool) {
	m, ok := r.Platforms[p]
	return m, ok
}

// DiagnosticKind 诊断类型
type DiagnosticKind string

const (
	DiagMalformedPayload    DiagnosticKind = "MalformedPayload"
	DiagArtifactUnavailable DiagnosticKind = "ArtifactUnavailable"
	DiagHistoryUnavailable  DiagnosticKind = "HistoryUnavailable"
)

// Diagnostic 被局部吸收的单平台/单附件失败
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Platform Platform       `json:"platform,omitempty"`
	Artifact string         `json:"artifact,omitempty"`
	Message  string         `json:"message"`
}
