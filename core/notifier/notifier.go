// Package notifier 组装通知内容并交给外部渠道发送
package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"TrackPulse/logger"
	"TrackPulse/metrics"
	"TrackPulse/model"

	json "github.com/goccy/go-json"
)

// Channel 外部通知渠道
type Channel interface {
	Name() string
	Send(ctx context.Context, payload model.NotificationPayload) error
}

// Notifier 发送通知，不重试，结果原样返回给调用方
type Notifier struct {
	channel Channel
}

// New 创建 Notifier
func New(channel Channel) *Notifier {
	return &Notifier{channel: channel}
}

// Deliver 发送一条通知，渠道失败时返回 ErrDeliveryFailed
func (n *Notifier) Deliver(ctx context.Context, payload model.NotificationPayload) error {
	start := time.Now()
	if err := n.channel.Send(ctx, payload); err != nil {
		metrics.Deliveries.WithLabelValues(n.channel.Name(), "failure").Inc()
		logger.Error("通知发送失败",
			logger.String("channel", n.channel.Name()),
			logger.String("song", payload.SongName),
			logger.String("artist", payload.Artist),
			logger.ErrorField(err))
		return fmt.Errorf("%w: %s: %v", model.ErrDeliveryFailed, n.channel.Name(), err)
	}

	metrics.Deliveries.WithLabelValues(n.channel.Name(), "success").Inc()
	logger.Info("通知已发送",
		logger.String("channel", n.channel.Name()),
		logger.String("song", payload.SongName),
		logger.String("artist", payload.Artist),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// HTTPChannel 以 JSON POST 发送到 webhook（例如邮件服务的 /send-report）
type HTTPChannel struct {
	url    string
	client *http.Client
}

// NewHTTPChannel 创建 HTTP 渠道
func NewHTTPChannel(url string, timeout time.Duration) *HTTPChannel {
	return &HTTPChannel{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPChannel) Name() string {
	return "http"
}

func (c *HTTPChannel) Send(ctx context.Context, payload model.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("channel returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
