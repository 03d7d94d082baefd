package model

import "errors"

var (
	// ErrMalformedPayload 单个平台的原始数据不是结构化对象
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnknownPlatform 平台名不在已知列表中
	ErrUnknownPlatform = errors.New("unknown platform")
	// ErrArtifactUnavailable 附件获取失败或超时
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	// ErrAggregationFailed 整个聚合请求失败
	ErrAggregationFailed = errors.New("aggregation failed")
	// ErrDeliveryFailed 通知渠道拒绝或不可达
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrNotFound 存储中不存在该对象
	ErrNotFound = errors.New("not found")
)
