package cache

import (
	"context"
	"sync"

	"TrackPulse/model"
)

// MemorySeriesStore 进程内序列存储，每个键一把互斥锁
// 用于单机开发和测试，重启后数据丢失
type MemorySeriesStore struct {
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	series map[string][]model.Point
}

// NewMemorySeriesStore 创建内存序列存储
func NewMemorySeriesStore() *MemorySeriesStore {
	return &MemorySeriesStore{
		locks:  make(map[string]*sync.Mutex),
		series: make(map[string][]model.Point),
	}
}

func memoryKey(key model.TrackKey, platform model.Platform) string {
	return key.ID() + "|" + string(platform)
}

func (s *MemorySeriesStore) keyLock(k string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

// Update 在键级互斥下执行读改写
func (s *MemorySeriesStore) Update(ctx context.Context, key model.TrackKey, platform model.Platform, fn func([]model.Point) ([]model.Point, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := memoryKey(key, platform)
	l := s.keyLock(k)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	current := append([]model.Point(nil), s.series[k]...)
	s.mu.Unlock()

	updated, err := fn(current)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.series[k] = append([]model.Point(nil), updated...)
	s.mu.Unlock()
	return nil
}

// Series 返回序列副本
func (s *MemorySeriesStore) Series(_ context.Context, key model.TrackKey, platform model.Platform) ([]model.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Point(nil), s.series[memoryKey(key, platform)]...), nil
}

// Seed 直接写入序列，供测试和数据迁移使用
func (s *MemorySeriesStore) Seed(key model.TrackKey, platform model.Platform, series []model.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[memoryKey(key, platform)] = append([]model.Point(nil), series...)
}
