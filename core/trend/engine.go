// Package trend 根据历史时间序列计算增量和滚动平均，无状态
package trend

import (
	"sort"
	"time"

	"TrackPulse/model"
)

// WeekWindow 周平均的回看窗口
const WeekWindow = 7 * 24 * time.Hour

// Apply 把新值追加到序列并计算趋势字段，返回更新后的指标和序列
// series 不会被修改
func Apply(metric model.PlatformMetric, series []model.Point, now time.Time) (model.PlatformMetric, []model.Point) {
	updated := make([]model.Point, len(series), len(series)+1)
	copy(updated, series)
	sortPoints(updated)

	metric.PreviousValue = nil
	metric.DeltaSinceLastCheck = nil

	if metric.CurrentValue != nil {
		idx := insertPoint(&updated, model.Point{At: now, Value: *metric.CurrentValue})
		if idx > 0 {
			metric.PreviousValue = model.Float(updated[idx-1].Value)
			metric.DeltaSinceLastCheck = model.Float(*metric.CurrentValue - updated[idx-1].Value)
		}
	} else if len(updated) > 0 {
		// 本次没有新值，仍然给出上次的快照
		metric.PreviousValue = model.Float(updated[len(updated)-1].Value)
	}

	metric.DailyAverage = DailyAverage(updated, now)
	metric.WeeklyAverage = WeeklyAverage(updated, now)
	metric.TimeSeries = updated
	metric.ChartAvailable = len(updated) >= 2
	return metric, updated
}

// DailyAverage now 所在自然日（按 now 的时区）内所有点的均值，没有点时缺失
func DailyAverage(series []model.Point, now time.Time) *float64 {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)
	return mean(series, func(at time.Time) bool {
		return !at.Before(start) && at.Before(end)
	})
}

// WeeklyAverage (now-7d, now] 内所有点的均值，没有点时缺失
func WeeklyAverage(series []model.Point, now time.Time) *float64 {
	since := now.Add(-WeekWindow)
	return mean(series, func(at time.Time) bool {
		return at.After(since) && !at.After(now)
	})
}

func mean(series []model.Point, include func(time.Time) bool) *float64 {
	var sum float64
	var n int
	for _, p := range series {
		if include(p.At) {
			sum += p.Value
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return model.Float(sum / float64(n))
}

func sortPoints(series []model.Point) {
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].At.Before(series[j].At)
	})
}

// insertPoint 按时间升序插入，时间相同时排在已有点之后，返回插入位置
func insertPoint(series *[]model.Point, p model.Point) int {
	s := *series
	idx := sort.Search(len(s), func(i int) bool {
		return s[i].At.After(p.At)
	})
	s = append(s, model.Point{})
	copy(s[idx+1:], s[idx:])
	s[idx] = p
	*series = s
	return idx
}
