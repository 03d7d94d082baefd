package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"TrackPulse/logger"
	"TrackPulse/metrics"

	"github.com/gorilla/mux"
)

// corsMiddleware 允许前端页面跨域提交
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware 按路由模板统计请求数和耗时
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route, r.Method).Observe(metrics.Since(start))
	})
}

// NewRouter 注册所有路由
func NewRouter(api *APIHandler, files *FileHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(metricsMiddleware)

	router.HandleFunc("/scrape", api.ScrapeHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/aggregate", api.AggregateHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/send-report", api.SendReportHandler).Methods(http.MethodPost, http.MethodOptions)

	router.HandleFunc("/files/csv", files.CSVHandler).Methods(http.MethodGet)
	router.HandleFunc("/files/images/{name}", files.ImageHandler).Methods(http.MethodGet)

	router.HandleFunc("/healthz", api.HealthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return router
}

// Drainer 关闭时等待后台任务
type Drainer interface {
	Wait(ctx context.Context) error
}

// Start 启动 HTTP 服务，收到 SIGINT/SIGTERM 后优雅关闭
func Start(port string, handler http.Handler, drain Drainer, drainTimeout time.Duration) error {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // /api/aggregate 会等待整次抓取
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	// 已确认的后台聚合尽量跑完
	if drain != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
		defer drainCancel()
		if err := drain.Wait(drainCtx); err != nil {
			logger.Warn("后台任务未在超时内结束", logger.ErrorField(err))
		}
	}

	logger.Info("Server stopped")
	return nil
}
