package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TrackPulse/model"
)

func TestMemorySeriesStoreSerializesSameKey(t *testing.T) {
	store := NewMemorySeriesStore()
	key := model.NewTrackKey("Flowers", "Miley Cyrus", "")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.Update(ctx, key, model.PlatformSpotify, func(series []model.Point) ([]model.Point, error) {
				return append(series, model.Point{At: time.Unix(int64(i), 0), Value: float64(len(series))}), nil
			})
			if err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	series, _ := store.Series(ctx, key, model.PlatformSpotify)
	if len(series) != 50 {
		t.Fatalf("len = %d, want 50 (lost updates)", len(series))
	}
	// 每次读到的长度都不同，说明没有两个请求读到同一个“上一次”
	seen := make(map[float64]bool)
	for _, p := range series {
		if seen[p.Value] {
			t.Fatalf("two updates observed the same prior length %v", p.Value)
		}
		seen[p.Value] = true
	}
}

func TestMemorySeriesStoreKeyIdentity(t *testing.T) {
	store := NewMemorySeriesStore()
	ctx := context.Background()
	store.Seed(model.NewTrackKey("Flowers", "Miley Cyrus", ""), model.PlatformYoutube, []model.Point{{At: time.Unix(1, 0), Value: 1}})

	series, _ := store.Series(ctx, model.NewTrackKey("  FLOWERS", "miley  cyrus", ""), model.PlatformYoutube)
	if len(series) != 1 {
		t.Errorf("equal keys must share a series, got %d points", len(series))
	}
	other, _ := store.Series(ctx, model.NewTrackKey("Flowers", "Miley Cyrus", ""), model.PlatformSpotify)
	if len(other) != 0 {
		t.Errorf("platforms must not share a series")
	}
}

func TestMemorySeriesStoreFnError(t *testing.T) {
	store := NewMemorySeriesStore()
	key := model.NewTrackKey("a", "b", "")
	store.Seed(key, model.PlatformShazam, []model.Point{{At: time.Unix(1, 0), Value: 1}})

	boom := errors.New("boom")
	err := store.Update(context.Background(), key, model.PlatformShazam, func([]model.Point) ([]model.Point, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	series, _ := store.Series(context.Background(), key, model.PlatformShazam)
	if len(series) != 1 {
		t.Errorf("failed update must not change the series")
	}
}
