package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"TrackPulse/logger"
	"TrackPulse/model"
	"TrackPulse/storage"

	"github.com/gorilla/mux"
)

// FileHandler 提供抓取服务落盘的 CSV 和图表截图
type FileHandler struct {
	store storage.ArtifactStore
}

// NewFileHandler 创建 FileHandler 实例
func NewFileHandler(store storage.ArtifactStore) *FileHandler {
	return &FileHandler{store: store}
}

func (h *FileHandler) read(r *http.Request, name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	return h.store.Get(ctx, name)
}

// CSVHandler GET /files/csv?song=&artist=
// 文件不存在时返回 204 空响应
func (h *FileHandler) CSVHandler(w http.ResponseWriter, r *http.Request) {
	song := strings.TrimSpace(r.URL.Query().Get("song"))
	artist := strings.TrimSpace(r.URL.Query().Get("artist"))
	if song == "" || artist == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Song name and artist are required"})
		return
	}

	name := storage.CSVFileName(song, artist)
	data, err := h.read(r, name)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			logger.Warn("读取 CSV 失败", logger.String("file", name), logger.ErrorField(err))
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := w.Write(data); err != nil {
		logger.Error("Error serving csv", logger.String("file", name), logger.ErrorField(err))
	}
}

// ImageHandler GET /files/images/{name}
func (h *FileHandler) ImageHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	data, err := h.read(r, name)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			logger.Warn("读取图片失败", logger.String("file", name), logger.ErrorField(err))
		}
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	contentType := storage.ContentTypeFor(name)
	if contentType == "application/octet-stream" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if _, err := w.Write(data); err != nil {
		logger.Error("Error serving image", logger.String("file", name), logger.ErrorField(err))
	}
}
