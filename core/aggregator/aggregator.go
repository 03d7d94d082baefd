// Package aggregator 把一次抓取结果合并成报告：
// 各平台归一化并计算趋势，全部完成后再统一解析附件
package aggregator

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"TrackPulse/core/normalizer"
	"TrackPulse/core/scraper"
	"TrackPulse/core/trend"
	"TrackPulse/logger"
	"TrackPulse/metrics"
	"TrackPulse/model"
	"TrackPulse/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 每个序列最多保留的点数，保留最新的
const maxSeriesPoints = 2000

// SeriesStore 按 (TrackKey, 平台) 保存历史序列
// Update 必须对同一个键串行执行读改写；fn 可能被重试调用，不能有副作用
type SeriesStore interface {
	Update(ctx context.Context, key model.TrackKey, platform model.Platform, fn func([]model.Point) ([]model.Point, error)) error
}

// Scraper 拉取一首歌在所有平台上的原始数据
type Scraper interface {
	Scrape(ctx context.Context, req model.TriggerRequest) (scraper.RawResult, error)
}

// Resolver 并发解析附件，失败只产生诊断
type Resolver interface {
	ResolveAll(ctx context.Context, refs []model.ArtifactRef) (map[string]model.Artifact, []model.Diagnostic)
}

// Aggregator 聚合编排器
type Aggregator struct {
	store    SeriesStore
	resolver Resolver
	scraper  Scraper
	now      func() time.Time
	log      *zap.Logger
}

// Option 可选配置
type Option func(*Aggregator)

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New 创建编排器，scraper 为 nil 时只能调用 Aggregate
func New(store SeriesStore, resolver Resolver, scraper Scraper, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:    store,
		resolver: resolver,
		scraper:  scraper,
		now:      time.Now,
		log:      logger.Named("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run 调用抓取服务，再聚合结果
func (a *Aggregator) Run(ctx context.Context, req model.TriggerRequest) (*model.Report, []model.Diagnostic, error) {
	key := req.Key()
	if key.IsZero() {
		return nil, nil, fmt.Errorf("%w: song name and artist are required", model.ErrAggregationFailed)
	}
	if a.scraper == nil {
		return nil, nil, fmt.Errorf("%w: no scraper configured", model.ErrAggregationFailed)
	}

	raw, err := a.scraper.Scrape(ctx, req)
	if err != nil {
		metrics.AggregationsTotal.WithLabelValues("failed").Inc()
		return nil, nil, fmt.Errorf("%w: fetch raw result for %s: %v", model.ErrAggregationFailed, key, err)
	}
	return a.Aggregate(ctx, key, raw)
}

type platformResult struct {
	platform model.Platform
	metric   model.PlatformMetric
	ok       bool
	diag     *model.Diagnostic
}

// Aggregate 合并一次抓取结果
// 缺失或为 null 的平台不出现在报告中；未知平台忽略；
// 没有任何平台归一化成功时返回 ErrAggregationFailed
func (a *Aggregator) Aggregate(ctx context.Context, key model.TrackKey, raw scraper.RawResult) (*model.Report, []model.Diagnostic, error) {
	start := time.Now()
	defer func() { metrics.AggregationDuration.Observe(metrics.Since(start)) }()

	if key.IsZero() {
		metrics.AggregationsTotal.WithLabelValues("failed").Inc()
		return nil, nil, fmt.Errorf("%w: empty track key", model.ErrAggregationFailed)
	}

	now := a.now()
	log := a.log.With(zap.String("track", key.String()))

	results := make(chan platformResult, len(model.Platforms))
	var wg sync.WaitGroup
	for name, payload := range raw {
		platform, known := model.ParsePlatform(name)
		if !known {
			log.Debug("忽略未知平台", zap.String("platform", name))
			continue
		}
		if isAbsent(payload) {
			metrics.PlatformResults.WithLabelValues(string(platform), "absent").Inc()
			continue
		}

		wg.Add(1)
		go func(platform model.Platform, payload []byte) {
			defer wg.Done()
			results <- a.processPlatform(ctx, key, platform, payload, now)
		}(platform, payload)
	}
	wg.Wait()
	close(results)

	report := &model.Report{
		ID:          uuid.NewString(),
		Key:         key,
		Platforms:   make(map[model.Platform]model.PlatformMetric),
		GeneratedAt: now,
	}
	var diags []model.Diagnostic
	for res := range results {
		if res.diag != nil {
			diags = append(diags, *res.diag)
		}
		if res.ok {
			report.Platforms[res.platform] = res.metric
		}
	}

	if len(report.Platforms) == 0 {
		metrics.AggregationsTotal.WithLabelValues("failed").Inc()
		sortDiagnostics(diags)
		return nil, diags, fmt.Errorf("%w: no platform data for %s", model.ErrAggregationFailed, key)
	}

	// 所有指标计算完毕后才开始解析附件
	artifacts, artifactDiags := a.resolver.ResolveAll(ctx, collectArtifactRefs(key, report.Platforms))
	report.Artifacts = artifacts
	diags = append(diags, artifactDiags...)
	sortDiagnostics(diags)

	metrics.AggregationsTotal.WithLabelValues("success").Inc()
	log.Info("聚合完成",
		zap.String("report", report.ID),
		zap.Int("platforms", len(report.Platforms)),
		zap.Int("diagnostics", len(diags)),
		zap.Duration("elapsed", time.Since(start)))
	return report, diags, nil
}

func (a *Aggregator) processPlatform(ctx context.Context, key model.TrackKey, platform model.Platform, payload []byte, now time.Time) platformResult {
	res := platformResult{platform: platform}

	metric, err := normalizer.Normalize(platform, payload)
	if err != nil {
		metrics.PlatformResults.WithLabelValues(string(platform), "malformed").Inc()
		a.log.Warn("平台数据格式错误", zap.String("track", key.String()), zap.String("platform", string(platform)), zap.Error(err))
		res.diag = &model.Diagnostic{Kind: model.DiagMalformedPayload, Platform: platform, Message: err.Error()}
		return res
	}
	metrics.PlatformResults.WithLabelValues(string(platform), "ok").Inc()

	var computed model.PlatformMetric
	err = a.store.Update(ctx, key, platform, func(series []model.Point) ([]model.Point, error) {
		m, updated := trend.Apply(metric, series, now)
		if len(updated) > maxSeriesPoints {
			updated = updated[len(updated)-maxSeriesPoints:]
		}
		// 报告里的序列与写回的保持一致
		m.TimeSeries = updated
		computed = m
		return updated, nil
	})
	if err != nil {
		// 历史不可用时仍然报告当前值，只是没有趋势字段
		metrics.HistoryErrors.WithLabelValues(string(platform)).Inc()
		a.log.Warn("历史序列不可用", zap.String("track", key.String()), zap.String("platform", string(platform)), zap.Error(err))
		res.diag = &model.Diagnostic{Kind: model.DiagHistoryUnavailable, Platform: platform, Message: err.Error()}
		res.metric, res.ok = metric, true
		return res
	}

	res.metric, res.ok = computed, true
	return res
}

func isAbsent(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// collectArtifactRefs 汇总各平台引用的附件；TikTok CSV 没有随载荷给出时按文件名到存储里找
func collectArtifactRefs(key model.TrackKey, platforms map[model.Platform]model.PlatformMetric) []model.ArtifactRef {
	byName := make(map[string]model.ArtifactRef)
	for _, p := range model.Platforms {
		m, ok := platforms[p]
		if !ok {
			continue
		}
		for name, ref := range m.ArtifactRefs {
			if _, seen := byName[name]; !seen && strings.TrimSpace(ref) != "" {
				byName[name] = model.ArtifactRef{Name: name, Kind: artifactKind(name), Ref: ref}
			}
		}
	}
	// 按歌曲生成的文件名必须精确命中，否则可能拿到别的歌曲的导出
	if _, ok := byName[model.ArtifactTiktokCSV]; !ok {
		byName[model.ArtifactTiktokCSV] = model.ArtifactRef{
			Name:  model.ArtifactTiktokCSV,
			Kind:  model.ArtifactCSV,
			Ref:   storage.CSVFileName(key.Song, key.Artist),
			Exact: true,
		}
	}

	refs := make([]model.ArtifactRef, 0, len(byName))
	for _, ref := range byName {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs
}

func artifactKind(name string) model.ArtifactKind {
	if strings.HasSuffix(name, "_csv") {
		return model.ArtifactCSV
	}
	return model.ArtifactImage
}

func sortDiagnostics(diags []model.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Kind != diags[j].Kind {
			return diags[i].Kind < diags[j].Kind
		}
		if diags[i].Platform != diags[j].Platform {
			return diags[i].Platform < diags[j].Platform
		}
		return diags[i].Artifact < diags[j].Artifact
	})
}
