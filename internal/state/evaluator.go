// Package state 实现状态评估器
// 每个检查周期调用一次的纯函数：输入上一份状态、最新探测结果与迟滞阈值，
// 输出下一份状态（含计数器、对齐的下次检查时间与滚动聚合）
package state

import (
	"time"

	"uptime/internal/probe"
	"uptime/internal/storage"
)

// Config 评估参数
type Config struct {
	// FailuresBeforeDown 连续失败 N 次后判定 down（迟滞阈值）
	FailuresBeforeDown int

	// Interval 该服务的检查间隔
	Interval time.Duration

	// SummarySize 历史摘要窗口大小
	SummarySize int
}

// Outcome 评估结果
type Outcome struct {
	// State 新的服务状态（调用方负责与历史记录一起原子持久化）
	State *storage.ServiceState

	// StatusChanged 状态发生跃迁（通知分发器消费）
	StatusChanged bool

	// HistorySignificant 有历史意义的变化：状态、探测类型或失败原因
	// 与上次不同，需要刷新历史摘要/触发前端提示
	HistorySignificant bool
}

// Evaluate 执行一次状态评估
//
// 输入：
//   - prev: 上一份持久化状态（首次检查为 nil）
//   - result: 最新探测结果（服务暂停时为 nil，探测被整体跳过）
//   - history: 近 30 天历史点（时间升序，不含本次）
//   - now: 本周期的时钟读数
//
// 聚合重算基于 history + 本次结果；最近一段的终点取 now
func Evaluate(prev *storage.ServiceState, result *probe.Result, cfg Config, history []storage.HistoryPoint, now time.Time) Outcome {
	next := &storage.ServiceState{}
	if prev != nil {
		next.ServiceID = prev.ServiceID
	}

	// 1. 失败计数：成功归零；暂停保持不变；失败累加
	switch {
	case result == nil:
		if prev != nil {
			next.Failures = prev.Failures
		}
	case result.OK:
		next.Failures = 0
	default:
		if prev != nil {
			next.Failures = prev.Failures
		}
		next.Failures++
	}

	// 2. 状态判定
	switch {
	case result == nil:
		next.Status = storage.StatusPaused
	case result.OK:
		next.Status = storage.StatusUp
	case next.Failures >= cfg.FailuresBeforeDown:
		next.Status = storage.StatusDown
	default:
		next.Status = storage.StatusPending
	}

	// 3. 下次检查时间：从上一个对齐槽位整倍推进，周期晚跑也不漂移
	next.NextCheckAt = alignNextCheck(prev, cfg.Interval, now)

	// 4. 跃迁时间戳：仅状态变化时更新
	if prev == nil || next.Status != prev.Status {
		next.ChangedAt = now
	} else {
		next.ChangedAt = prev.ChangedAt
	}

	// 5. 最近结果快照与聚合重算
	points := history
	if result != nil {
		next.Current = &storage.CheckSnapshot{
			Kind:          result.Kind,
			OK:            result.OK,
			LatencyMillis: result.LatencyMillis,
			Reason:        result.Reason,
			Message:       result.Message,
			At:            now,
		}
		points = append(points, storage.HistoryPoint{
			CreatedAt:     now,
			Status:        next.Status,
			OK:            result.OK,
			LatencyMillis: result.LatencyMillis,
			Kind:          result.Kind,
			Reason:        result.Reason,
		})
	}
	next.Uptime1d = UptimePercent(points, now.Add(-24*time.Hour), now)
	next.Uptime30d = UptimePercent(points, now.AddDate(0, 0, -30), now)
	next.Latency1d = MeanLatency(points, now.Add(-24*time.Hour))
	next.MiniHistory = MiniHistory(points, cfg.SummarySize)

	return Outcome{
		State:              next,
		StatusChanged:      prev == nil || next.Status != prev.Status,
		HistorySignificant: historySignificant(prev, next),
	}
}

// alignNextCheck 计算对齐的下次检查时间
// 有历史槽位时：nextCheckAt = prior + ceil((now-prior)/interval)*interval，
// 下限为向前推进一个完整间隔；无历史槽位时从 now 起步
func alignNextCheck(prev *storage.ServiceState, interval time.Duration, now time.Time) time.Time {
	if interval <= 0 {
		interval = time.Minute
	}
	if prev == nil || prev.NextCheckAt.IsZero() {
		return now.Add(interval)
	}
	prior := prev.NextCheckAt
	elapsed := now.Sub(prior)
	steps := (elapsed + interval - 1) / interval // 向上取整
	if steps < 1 {
		steps = 1
	}
	return prior.Add(time.Duration(steps) * interval)
}

// historySignificant 判断相对上次检查是否有历史意义的变化
// 口径：状态、探测类型或失败原因任一不同
func historySignificant(prev *storage.ServiceState, next *storage.ServiceState) bool {
	if prev == nil {
		return true
	}
	if prev.Status != next.Status {
		return true
	}
	// 暂停 ↔ 运行 的切换已由状态覆盖；这里比较结果细节
	if (prev.Current == nil) != (next.Current == nil) {
		return true
	}
	if prev.Current == nil {
		return false
	}
	return prev.Current.Kind != next.Current.Kind || prev.Current.Reason != next.Current.Reason
}

// UptimePercent 计算时间加权可用率（0-100）
// 每个历史点覆盖到下一个点为止的时段，最后一段以 now 收尾；
// 暂停时段不计入分母；窗口内无数据时返回 0（不产生 NaN）
func UptimePercent(points []storage.HistoryPoint, from, now time.Time) float64 {
	var upSeconds, totalSeconds float64
	for i := range points {
		start := points[i].CreatedAt
		end := now
		if i+1 < len(points) {
			end = points[i+1].CreatedAt
		}

		// 裁剪到统计窗口
		if !end.After(from) {
			continue
		}
		if start.Before(from) {
			start = from
		}
		if end.After(now) {
			end = now
		}
		seconds := end.Sub(start).Seconds()
		if seconds <= 0 {
			continue
		}
		if points[i].Status == storage.StatusPaused {
			continue
		}
		totalSeconds += seconds
		if points[i].Status == storage.StatusUp {
			upSeconds += seconds
		}
	}
	if totalSeconds <= 0 {
		return 0
	}
	percent := upSeconds / totalSeconds * 100
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// MeanLatency 计算窗口内成功检查的平均延迟（ms），无成功检查返回 0
func MeanLatency(points []storage.HistoryPoint, from time.Time) float64 {
	var sum float64
	var count int
	for i := range points {
		if points[i].CreatedAt.Before(from) || !points[i].OK {
			continue
		}
		sum += points[i].LatencyMillis
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// MiniHistory 取最近 size 条历史（时间升序），压缩为摘要条目
func MiniHistory(points []storage.HistoryPoint, size int) []storage.MiniHistoryEntry {
	if size <= 0 {
		return []storage.MiniHistoryEntry{}
	}
	start := 0
	if len(points) > size {
		start = len(points) - size
	}
	entries := make([]storage.MiniHistoryEntry, 0, len(points)-start)
	for _, p := range points[start:] {
		entry := storage.MiniHistoryEntry{
			Timestamp: p.CreatedAt,
			Status:    p.Status,
		}
		if p.OK {
			entry.LatencyMillis = p.LatencyMillis
		}
		entries = append(entries, entry)
	}
	return entries
}
