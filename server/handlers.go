package server

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"TrackPulse/core/notifier"
	"TrackPulse/logger"
	"TrackPulse/model"
	"TrackPulse/storage"

	json "github.com/goccy/go-json"
)

// 请求体上限，/send-report 可能带内联图片
const maxBodyBytes = 32 << 20

// Trigger 后台执行完整流程
type Trigger interface {
	Trigger(req model.TriggerRequest) string
}

// Runner 同步抓取并聚合
type Runner interface {
	Run(ctx context.Context, req model.TriggerRequest) (*model.Report, []model.Diagnostic, error)
}

// Deliverer 发送通知
type Deliverer interface {
	Deliver(ctx context.Context, payload model.NotificationPayload) error
}

// APIHandler 聚合相关接口
type APIHandler struct {
	trigger  Trigger
	runner   Runner
	notifier Deliverer
	store    storage.ArtifactStore
	timeout  time.Duration
}

// NewAPIHandler 创建 APIHandler，timeout 用于同步接口
func NewAPIHandler(trigger Trigger, runner Runner, notifier Deliverer, store storage.ArtifactStore, timeout time.Duration) *APIHandler {
	return &APIHandler{
		trigger:  trigger,
		runner:   runner,
		notifier: notifier,
		store:    store,
		timeout:  timeout,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

// decodeTrigger 同时接受 JSON 和表单提交
func decodeTrigger(r *http.Request) (model.TriggerRequest, error) {
	var req model.TriggerRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, err
		}
		req.SongName = r.FormValue("song_name")
		req.SongNameDiacritics = r.FormValue("song_name_diacritics")
		req.Artist = r.FormValue("artist")
	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return req, err
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return req, err
			}
		}
	}

	req.SongName = strings.TrimSpace(req.SongName)
	req.SongNameDiacritics = strings.TrimSpace(req.SongNameDiacritics)
	req.Artist = strings.TrimSpace(req.Artist)
	return req, nil
}

// ScrapeHandler 触发一次后台聚合并立即确认
// 后台失败只体现在日志和指标里，调用方总是收到同样的确认
func (h *APIHandler) ScrapeHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTrigger(r)
	if err != nil || req.SongName == "" || req.Artist == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "Song name and artist are required",
		})
		return
	}

	runID := h.trigger.Trigger(req)
	logger.Info("收到聚合请求",
		logger.String("run", runID),
		logger.String("song", req.SongName),
		logger.String("artist", req.Artist))

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Scraping started successfully",
		"song":    req.SongName,
		"artist":  req.Artist,
	})
}

type aggregateResponse struct {
	Report      *model.Report              `json:"report"`
	Diagnostics []model.Diagnostic         `json:"diagnostics"`
	Payload     *model.NotificationPayload `json:"payload,omitempty"`
	Delivered   *bool                      `json:"delivered,omitempty"`
	Error       string                     `json:"error,omitempty"`
}

// AggregateHandler 同步聚合并返回报告；?deliver=true 时同时发送通知
func (h *APIHandler) AggregateHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTrigger(r)
	if err != nil || req.SongName == "" || req.Artist == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "Song name and artist are required",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, diags, err := h.runner.Run(ctx, req)
	if diags == nil {
		diags = []model.Diagnostic{}
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrAggregationFailed) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, aggregateResponse{Diagnostics: diags, Error: err.Error()})
		return
	}

	payload := notifier.Compose(report)
	resp := aggregateResponse{Report: report, Diagnostics: diags, Payload: &payload}

	if r.URL.Query().Get("deliver") == "true" {
		delivered := true
		if err := h.notifier.Deliver(ctx, payload); err != nil {
			// 报告已经生成，发送失败不影响返回
			delivered = false
			resp.Error = err.Error()
		}
		resp.Delivered = &delivered
	}
	writeJSON(w, http.StatusOK, resp)
}

// SendReportHandler 转发一份已经组装好的通知
// tiktok_csv_base64 为空时按歌名和艺人到附件存储里补齐
func (h *APIHandler) SendReportHandler(w http.ResponseWriter, r *http.Request) {
	var payload model.NotificationPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		http.Error(w, "Fail", http.StatusBadRequest)
		return
	}

	if payload.TiktokCSVBase64 == "" && payload.SongName != "" && payload.Artist != "" && h.store != nil {
		name := storage.CSVFileName(payload.SongName, payload.Artist)
		data, err := h.store.Get(r.Context(), name)
		switch {
		case err == nil:
			payload.TiktokCSVBase64 = base64.StdEncoding.EncodeToString(data)
		case errors.Is(err, model.ErrNotFound):
		default:
			logger.Warn("读取 TikTok CSV 失败", logger.String("file", name), logger.ErrorField(err))
		}
	}

	if err := h.notifier.Deliver(r.Context(), payload); err != nil {
		http.Error(w, "Fail", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthHandler 存活检查
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
