// Package normalizer 把各平台的原始 JSON 转成统一的 PlatformMetric
package normalizer

import (
	"bytes"
	"fmt"

	"TrackPulse/model"

	json "github.com/goccy/go-json"
)

// Normalize 尽力提取字段，缺失字段保持缺失
// 只有原始数据根本不是 JSON 对象时才返回 ErrMalformedPayload
func Normalize(platform model.Platform, raw []byte) (model.PlatformMetric, error) {
	target := newRaw(platform)
	if target == nil {
		return model.PlatformMetric{}, fmt.Errorf("%w: %q", model.ErrUnknownPlatform, platform)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return model.PlatformMetric{}, fmt.Errorf("%w: %s payload is not an object", model.ErrMalformedPayload, platform)
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return model.PlatformMetric{}, fmt.Errorf("%w: %s: %v", model.ErrMalformedPayload, platform, err)
	}
	return target.toMetric(), nil
}

// NormalizeNamed 按平台名称归一化
func NormalizeNamed(name string, raw []byte) (model.PlatformMetric, error) {
	platform, ok := model.ParsePlatform(name)
	if !ok {
		return model.PlatformMetric{}, fmt.Errorf("%w: %q", model.ErrUnknownPlatform, name)
	}
	return Normalize(platform, raw)
}
