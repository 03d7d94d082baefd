package cmd

import (
	"context"
	"fmt"

	"TrackPulse/cache"
	"TrackPulse/config"
	"TrackPulse/core/aggregator"
	"TrackPulse/core/artifact"
	"TrackPulse/core/notifier"
	"TrackPulse/core/pipeline"
	"TrackPulse/core/scraper"
	"TrackPulse/db"
	"TrackPulse/logger"
	"TrackPulse/model"
	"TrackPulse/repository"
	"TrackPulse/storage"
)

// app 组装好的运行时组件
type app struct {
	cfg        *config.Config
	store      storage.ArtifactStore
	aggregator *aggregator.Aggregator
	notifier   *notifier.Notifier
	pipeline   *pipeline.Pipeline
	closers    []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("关闭资源失败", logger.ErrorField(err))
		}
	}
	logger.Sync()
}

// initLogger 按配置初始化全局日志
func initLogger(cfg *config.Config) error {
	return logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   true,
	})
}

// openArtifactStore 根据 ARTIFACT_BACKEND 选择附件存储
func openArtifactStore(cfg *config.Config) (storage.ArtifactStore, error) {
	switch cfg.ArtifactBackend {
	case "minio":
		return storage.NewMinioStore(cfg)
	default:
		return storage.NewDirStore(cfg.ArtifactDir)
	}
}

// seriesStore 聚合用的读改写，外加查看序列
type seriesStore interface {
	aggregator.SeriesStore
	Series(ctx context.Context, key model.TrackKey, platform model.Platform) ([]model.Point, error)
}

// openSeriesStore 根据 SERIES_BACKEND 选择历史序列存储
func openSeriesStore(cfg *config.Config) (seriesStore, func() error, error) {
	switch cfg.SeriesBackend {
	case "memory":
		logger.Warn("使用内存序列存储，重启后历史数据会丢失")
		return cache.NewMemorySeriesStore(), nil, nil
	case "mysql":
		if err := db.ConnectGormDB(cfg); err != nil {
			return nil, nil, err
		}
		return repository.NewGormSeriesRepository(db.GormDB), db.CloseGormDB, nil
	default:
		if err := cache.ConnectRedis(cfg); err != nil {
			return nil, nil, err
		}
		logger.Info("Successfully connected to Redis",
			logger.String("host", cfg.RedisHost), logger.Int("db", cfg.RedisDB))
		return cache.NewRedisSeriesStore(cfg.SeriesLockTTL), cache.CloseRedis, nil
	}
}

// buildApp 加载配置并连接所有依赖
func buildApp() (*app, error) {
	cfg := config.Load()
	if err := initLogger(cfg); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	a := &app{cfg: cfg}

	store, err := openArtifactStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	series, closer, err := openSeriesStore(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	resolver := artifact.NewResolver(cfg, store)
	a.aggregator = aggregator.New(series, resolver, scraper.NewClient(cfg))
	a.notifier = notifier.New(notifier.NewHTTPChannel(cfg.NotifierURL, cfg.NotifierTimeout))
	a.pipeline = pipeline.New(a.aggregator, a.notifier, cfg.PipelineTimeout)

	logger.Info("组件初始化完成",
		logger.String("artifactBackend", cfg.ArtifactBackend),
		logger.String("seriesBackend", cfg.SeriesBackend),
		logger.String("scraper", cfg.ScraperURL),
		logger.String("notifier", cfg.NotifierURL))
	return a, nil
}
