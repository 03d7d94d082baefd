// Package pipeline 串起一次完整的触发流程：抓取、聚合、组装、发送
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"TrackPulse/core/notifier"
	"TrackPulse/logger"
	"TrackPulse/metrics"
	"TrackPulse/model"

	"github.com/google/uuid"
)

// Aggregator 抓取并聚合
type Aggregator interface {
	Run(ctx context.Context, req model.TriggerRequest) (*model.Report, []model.Diagnostic, error)
}

// Deliverer 发送通知
type Deliverer interface {
	Deliver(ctx context.Context, payload model.NotificationPayload) error
}

// Pipeline 触发流程
type Pipeline struct {
	agg      Aggregator
	notifier Deliverer
	timeout  time.Duration

	wg sync.WaitGroup
}

// New 创建流程，timeout 是单次后台运行的总时长上限
func New(agg Aggregator, notifier Deliverer, timeout time.Duration) *Pipeline {
	return &Pipeline{agg: agg, notifier: notifier, timeout: timeout}
}

// Execute 同步执行一次完整流程
// 发送失败时仍返回已经生成的报告，调用方可以展示或重新发送
func (p *Pipeline) Execute(ctx context.Context, req model.TriggerRequest) (*model.Report, []model.Diagnostic, error) {
	start := time.Now()

	report, diags, err := p.agg.Run(ctx, req)
	if err != nil {
		metrics.PipelineDuration.WithLabelValues(outcome(err)).Observe(metrics.Since(start))
		return nil, diags, err
	}

	err = p.notifier.Deliver(ctx, notifier.Compose(report))
	metrics.PipelineDuration.WithLabelValues(outcome(err)).Observe(metrics.Since(start))
	return report, diags, err
}

// Trigger 在后台执行流程后立即返回
// 失败只记录日志和指标，不会反馈给触发方
func (p *Pipeline) Trigger(req model.TriggerRequest) string {
	runID := uuid.NewString()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		fields := []logger.Field{
			logger.String("run", runID),
			logger.String("song", req.SongName),
			logger.String("artist", req.Artist),
		}
		logger.Info("开始后台聚合", fields...)

		report, diags, err := p.Execute(ctx, req)
		for _, d := range diags {
			logger.Warn("聚合诊断", append(fields,
				logger.String("kind", string(d.Kind)),
				logger.String("platform", string(d.Platform)),
				logger.String("artifact", d.Artifact),
				logger.String("message", d.Message))...)
		}
		if err != nil {
			logger.Error("后台聚合失败", append(fields, logger.ErrorField(err))...)
			return
		}
		logger.Info("后台聚合完成", append(fields, logger.String("report", report.ID))...)
	}()
	return runID
}

// Wait 等待所有后台运行结束，或 ctx 到期
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "delivered"
	case errors.Is(err, model.ErrDeliveryFailed):
		return "delivery_failed"
	case errors.Is(err, model.ErrAggregationFailed):
		return "aggregate_failed"
	default:
		return "error"
	}
}
