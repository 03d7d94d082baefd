package cache

import (
	"context"
	"fmt"
	"time"

	"TrackPulse/logger"
	"TrackPulse/model"

	"github.com/go-redis/redis/v8"
	json "github.com/goccy/go-json"
)

const (
	seriesKey     = "series:%s:%s"      // Sorted Set: score = 毫秒时间戳, member = Point JSON
	seriesLockKey = "series:%s:%s:lock" // String: 持锁 token
)

// RedisSeriesStore 用有序集合保存每个 (TrackKey, 平台) 的时间序列
// 读改写在键级分布式锁内完成，同一键的并发请求被串行化
type RedisSeriesStore struct {
	client  *redis.Client
	lockTTL time.Duration
}

// NewRedisSeriesStore 使用全局 RedisClient
func NewRedisSeriesStore(lockTTL time.Duration) *RedisSeriesStore {
	return &RedisSeriesStore{client: RedisClient, lockTTL: lockTTL}
}

// Update 持锁读取完整序列，调用 fn，再整体写回
func (s *RedisSeriesStore) Update(ctx context.Context, key model.TrackKey, platform model.Platform, fn func([]model.Point) ([]model.Point, error)) error {
	if s.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	id := key.ID()
	lock := newKeyLock(s.client, fmt.Sprintf(seriesLockKey, id, platform), s.lockTTL)
	if err := lock.acquire(ctx); err != nil {
		return err
	}
	defer func() {
		// 请求 ctx 可能已取消，释放锁用独立的短超时
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.release(releaseCtx); err != nil {
			logger.Warn("释放序列锁失败", logger.String("track", id), logger.String("platform", string(platform)), logger.ErrorField(err))
		}
	}()

	zkey := fmt.Sprintf(seriesKey, id, platform)
	series, err := s.load(ctx, zkey)
	if err != nil {
		return err
	}

	updated, err := fn(series)
	if err != nil {
		return err
	}
	return s.store(ctx, zkey, updated)
}

// Series 读取序列（不加锁，仅用于查看）
func (s *RedisSeriesStore) Series(ctx context.Context, key model.TrackKey, platform model.Platform) ([]model.Point, error) {
	if s.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	return s.load(ctx, fmt.Sprintf(seriesKey, key.ID(), platform))
}

func (s *RedisSeriesStore) load(ctx context.Context, zkey string) ([]model.Point, error) {
	members, err := s.client.ZRangeByScore(ctx, zkey, &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load series %s: %w", zkey, err)
	}

	series := make([]model.Point, 0, len(members))
	for _, member := range members {
		var p model.Point
		if err := json.Unmarshal([]byte(member), &p); err != nil {
			logger.Warn("跳过无法解析的序列点", logger.String("key", zkey), logger.ErrorField(err))
			continue
		}
		series = append(series, p)
	}
	return series, nil
}

func (s *RedisSeriesStore) store(ctx context.Context, zkey string, series []model.Point) error {
	members := make([]*redis.Z, 0, len(series))
	for _, p := range series {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal series point: %w", err)
		}
		members = append(members, &redis.Z{Score: float64(p.At.UnixMilli()), Member: data})
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, zkey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, zkey, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store series %s: %w", zkey, err)
	}
	return nil
}
