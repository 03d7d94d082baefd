package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"TrackPulse/model"

	"github.com/go-sql-driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var flowers = model.NewTrackKey("Flowers", "Miley Cyrus", "")

func newTestRepository(t *testing.T) (*gormSeriesRepository, *gorm.DB) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "series.db") + "?_busy_timeout=5000"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatal(err)
	}
	// SQLite 单写者，读改写之间仍会交错
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(&model.SeriesRecord{}); err != nil {
		t.Fatal(err)
	}
	return &gormSeriesRepository{db: gdb}, gdb
}

func appendPoint(at int64, value float64) func([]model.Point) ([]model.Point, error) {
	return func(series []model.Point) ([]model.Point, error) {
		return append(series, model.Point{At: time.Unix(at, 0).UTC(), Value: value}), nil
	}
}

func loadRecord(t *testing.T, gdb *gorm.DB, platform model.Platform) model.SeriesRecord {
	t.Helper()
	var rec model.SeriesRecord
	if err := gdb.Where("track_id = ? AND platform = ?", flowers.ID(), platform).First(&rec).Error; err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestSeriesRepositoryConcurrentUpdates(t *testing.T) {
	repo, gdb := newTestRepository(t)
	ctx := context.Background()

	// 每次冲突都意味着另一个写入已提交，并发数不超过重试次数时不会失败
	const n = maxUpdateAttempts
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Update(ctx, flowers, model.PlatformSpotify, func(series []model.Point) ([]model.Point, error) {
				return append(series, model.Point{At: time.Unix(int64(i+1), 0).UTC(), Value: float64(len(series))}), nil
			})
			if err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	series, err := repo.Series(ctx, flowers, model.PlatformSpotify)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != n {
		t.Fatalf("len = %d, want %d (lost updates)", len(series), n)
	}
	seen := make(map[float64]bool)
	for _, p := range series {
		if seen[p.Value] {
			t.Fatalf("two updates observed the same prior length %v", p.Value)
		}
		seen[p.Value] = true
	}
	if rec := loadRecord(t, gdb, model.PlatformSpotify); rec.Version != n {
		t.Errorf("version = %d, want %d", rec.Version, n)
	}
}

func TestSeriesRepositoryRetriesOnVersionConflict(t *testing.T) {
	repo, gdb := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Update(ctx, flowers, model.PlatformYoutube, appendPoint(1, 10)); err != nil {
		t.Fatal(err)
	}

	calls := 0
	err := repo.Update(ctx, flowers, model.PlatformYoutube, func(series []model.Point) ([]model.Point, error) {
		calls++
		if calls == 1 {
			// 读取之后、写回之前有另一个写入提交
			if err := repo.Update(ctx, flowers, model.PlatformYoutube, appendPoint(2, 20)); err != nil {
				return nil, err
			}
		}
		return append(series, model.Point{At: time.Unix(3, 0).UTC(), Value: 30}), nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}

	series, _ := repo.Series(ctx, flowers, model.PlatformYoutube)
	var values []float64
	for _, p := range series {
		values = append(values, p.Value)
	}
	if fmt.Sprint(values) != "[10 20 30]" {
		t.Errorf("values = %v, want [10 20 30]", values)
	}
	if rec := loadRecord(t, gdb, model.PlatformYoutube); rec.Version != 3 {
		t.Errorf("version = %d, want 3", rec.Version)
	}
}

func TestSeriesRepositoryFirstInsertRace(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	calls := 0
	err := repo.Update(ctx, flowers, model.PlatformShazam, func(series []model.Point) ([]model.Point, error) {
		calls++
		if calls == 1 {
			if len(series) != 0 {
				t.Errorf("first read = %v, want empty", series)
			}
			if err := repo.Update(ctx, flowers, model.PlatformShazam, appendPoint(1, 1)); err != nil {
				return nil, err
			}
		}
		return append(series, model.Point{At: time.Unix(2, 0).UTC(), Value: 2}), nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
	if series, _ := repo.Series(ctx, flowers, model.PlatformShazam); len(series) != 2 {
		t.Errorf("series = %+v, want both writes", series)
	}
}

func TestSeriesRepositoryGivesUpAfterRepeatedConflicts(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	if err := repo.Update(ctx, flowers, model.PlatformChartex, appendPoint(1, 1)); err != nil {
		t.Fatal(err)
	}

	calls := 0
	err := repo.Update(ctx, flowers, model.PlatformChartex, func(series []model.Point) ([]model.Point, error) {
		calls++
		if err := repo.Update(ctx, flowers, model.PlatformChartex, appendPoint(int64(calls+1), 0)); err != nil {
			return nil, err
		}
		return series, nil
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("error = %v, want ErrVersionConflict", err)
	}
	if calls != maxUpdateAttempts {
		t.Errorf("fn called %d times, want %d", calls, maxUpdateAttempts)
	}
}

func TestSeriesRepositoryFnError(t *testing.T) {
	repo, gdb := newTestRepository(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.Update(ctx, flowers, model.PlatformSpotify, func([]model.Point) ([]model.Point, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	var count int64
	gdb.Model(&model.SeriesRecord{}).Count(&count)
	if count != 0 {
		t.Errorf("failed update created %d records", count)
	}
	if series, err := repo.Series(ctx, flowers, model.PlatformSpotify); err != nil || series != nil {
		t.Errorf("Series() = %v, %v; want empty", series, err)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"gorm translated", fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), true},
		{"mysql 1062", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"other mysql error", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateKey(tt.err); got != tt.want {
				t.Errorf("isDuplicateKey() = %v, want %v", got, tt.want)
			}
		})
	}
}
