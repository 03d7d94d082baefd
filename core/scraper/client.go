// Package scraper 调用外部抓取服务，拿到各平台的原始数据
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"TrackPulse/config"
	"TrackPulse/logger"
	"TrackPulse/metrics"
	"TrackPulse/model"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const breakerName = "scraper"

// 单次响应上限，抓取结果里可能带内联图片
const maxResponseBytes = 64 << 20

// RawResult 平台名 -> 原始载荷
type RawResult map[string]json.RawMessage

// Client 抓取服务客户端
// 调用经过限速器和熔断器：抓取服务挂掉时快速失败，不堆积请求
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[RawResult]
}

// NewClient 根据配置创建客户端
func NewClient(cfg *config.Config) *Client {
	perMinute := cfg.ScraperRatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[RawResult](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// 调用方取消不算抓取服务的故障
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("抓取服务熔断器状态变化",
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{
		baseURL:    cfg.ScraperURL,
		httpClient: &http.Client{Timeout: cfg.ScraperTimeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst(perMinute)),
		cb:         cb,
	}
}

func burst(perMinute int) int {
	if b := perMinute / 10; b > 1 {
		return b
	}
	return 1
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Scrape 请求抓取服务抓取一首歌
func (c *Client) Scrape(ctx context.Context, req model.TriggerRequest) (RawResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ScraperRequests.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("scraper rate limit: %w", err)
	}

	start := time.Now()
	result, err := c.cb.Execute(func() (RawResult, error) {
		return c.do(ctx, req)
	})
	metrics.ScraperDuration.Observe(metrics.Since(start))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.ScraperRequests.WithLabelValues("rejected").Inc()
		} else {
			metrics.ScraperRequests.WithLabelValues("failure").Inc()
		}
		return nil, err
	}
	metrics.ScraperRequests.WithLabelValues("success").Inc()
	return result, nil
}

func (c *Client) do(ctx context.Context, req model.TriggerRequest) (RawResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scrape request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build scrape request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("scrape request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read scrape response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scraper returned status %d", resp.StatusCode)
	}

	return ParseResult(data)
}

// ParseResult 解析抓取结果，顶层必须是对象
func ParseResult(data []byte) (RawResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("scrape result is not an object: %w", model.ErrMalformedPayload)
	}
	var result RawResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, fmt.Errorf("failed to decode scrape result: %w: %v", model.ErrMalformedPayload, err)
	}
	return result, nil
}
