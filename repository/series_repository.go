package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrackPulse/model"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrVersionConflict 多次重试后仍被其他写入抢先
var ErrVersionConflict = errors.New("series version conflict")

const maxUpdateAttempts = 5

// SeriesRepository 历史序列数据访问接口
type SeriesRepository interface {
	// Update 读取序列、调用 fn、以版本号条件写回；冲突时重新读取并再次调用 fn
	Update(ctx context.Context, key model.TrackKey, platform model.Platform, fn func([]model.Point) ([]model.Point, error)) error
	// Series 读取序列，没有记录时返回空
	Series(ctx context.Context, key model.TrackKey, platform model.Platform) ([]model.Point, error)
}

// gormSeriesRepository GORM 实现
type gormSeriesRepository struct {
	db *gorm.DB
}

// NewGormSeriesRepository 创建 GORM 序列仓库
func NewGormSeriesRepository(db *gorm.DB) SeriesRepository {
	return &gormSeriesRepository{db: db}
}

func (r *gormSeriesRepository) find(ctx context.Context, key model.TrackKey, platform model.Platform) (*model.SeriesRecord, error) {
	var rec model.SeriesRecord
	err := r.db.WithContext(ctx).
		Where("track_id = ? AND platform = ?", key.ID(), platform).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Series 读取序列
func (r *gormSeriesRepository) Series(ctx context.Context, key model.TrackKey, platform model.Platform) ([]model.Point, error) {
	rec, err := r.find(ctx, key, platform)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Points, nil
}

// Update 乐观锁读改写
func (r *gormSeriesRepository) Update(ctx context.Context, key model.TrackKey, platform model.Platform, fn func([]model.Point) ([]model.Point, error)) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		rec, err := r.find(ctx, key, platform)
		if err != nil {
			return fmt.Errorf("failed to load series: %w", err)
		}

		var current []model.Point
		if rec != nil {
			current = rec.Points
		}
		updated, err := fn(append([]model.Point(nil), current...))
		if err != nil {
			return err
		}

		if rec == nil {
			created := &model.SeriesRecord{
				TrackID:  key.ID(),
				Platform: platform,
				Song:     key.DisplaySong(),
				Artist:   key.Artist,
				Points:   updated,
				Version:  1,
			}
			err := r.db.WithContext(ctx).Create(created).Error
			if err == nil {
				return nil
			}
			if isDuplicateKey(err) {
				// 并发的首次写入，按冲突处理
				continue
			}
			return fmt.Errorf("failed to create series: %w", err)
		}

		res := r.db.WithContext(ctx).Model(&model.SeriesRecord{}).
			Where("id = ? AND version = ?", rec.ID, rec.Version).
			Updates(map[string]interface{}{
				"points":     model.PointList(updated),
				"version":    rec.Version + 1,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update series: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}
	}
	return fmt.Errorf("%s/%s: %w", key.ID(), platform, ErrVersionConflict)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
