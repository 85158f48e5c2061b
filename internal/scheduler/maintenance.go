package scheduler

import (
	"context"
	"time"

	"uptime/internal/logger"
)

// 维护任务上次执行时间的元数据键（RFC3339）
const metaMaintenanceLastRun = "maintenance_last_run"

// maintenanceLoop 周期性执行历史裁剪与空间回收
// 执行时刻锚定在当天零点对齐的网格上（如频率 6h 则在 0/6/12/18 点触发），
// 上次执行时间持久化，重启后不会在每次启动时都立刻重跑
func (s *Scheduler) maintenanceLoop() {
	defer s.wg.Done()

	// 首次运行（无记录）：先做一次性存储调优，并立即执行一轮维护
	lastRun, ok := s.loadLastMaintenance(s.ctx)
	if !ok {
		if err := s.store.Reconfigure(s.ctx); err != nil {
			logger.Error("maintenance", "存储调优失败", "error", err)
		}
		s.runMaintenance(s.ctx)
		lastRun = time.Now()
	}

	for {
		freq := s.config().MaintenanceFrequencyDuration
		next := nextMaintenanceAt(time.Now(), freq)

		// 错过的时隙（如进程停机跨过了触发点）立即补跑
		if lastRun.Before(next.Add(-freq)) {
			s.runMaintenance(s.ctx)
			lastRun = time.Now()
			continue
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runMaintenance(s.ctx)
			lastRun = time.Now()
		case <-s.maintWakeCh:
			// 配置变更：回到循环头按新频率重算下一时隙
			timer.Stop()
		}
	}
}

// nextMaintenanceAt 计算 now 之后第一个与当天零点对齐的触发时刻
func nextMaintenanceAt(now time.Time, freq time.Duration) time.Time {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	elapsed := now.Sub(dayStart)
	steps := elapsed/freq + 1
	return dayStart.Add(steps * freq)
}

// loadLastMaintenance 读取持久化的上次维护时间；无记录或不可解析返回 false
func (s *Scheduler) loadLastMaintenance(ctx context.Context) (time.Time, bool) {
	raw, err := s.store.GetMeta(ctx, metaMaintenanceLastRun)
	if err != nil {
		logger.Error("maintenance", "读取维护记录失败", "error", err)
		return time.Time{}, false
	}
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Warn("maintenance", "维护记录不可解析，按首次运行处理", "value", raw)
		return time.Time{}, false
	}
	return t, true
}

// runMaintenance 执行一轮维护：逐服务按保留条数裁剪历史，然后回收空间
func (s *Scheduler) runMaintenance(ctx context.Context) {
	cfg := s.config()
	start := time.Now()
	var pruned int64

	for i := range cfg.Monitors {
		m := &cfg.Monitors[i]
		n, err := s.store.PruneHistory(ctx, m.ID, m.RetainCount)
		if err != nil {
			logger.Error("maintenance", "裁剪历史失败",
				"service_id", m.ID, "name", m.Name, "error", err)
			continue
		}
		pruned += n
	}

	if err := s.store.Vacuum(ctx); err != nil {
		logger.Error("maintenance", "空间回收失败", "error", err)
	}

	if err := s.store.SetMeta(ctx, metaMaintenanceLastRun, start.Format(time.RFC3339)); err != nil {
		logger.Error("maintenance", "写入维护记录失败", "error", err)
	}

	logger.Info("maintenance", "维护完成",
		"pruned", pruned, "elapsed", time.Since(start).Round(time.Millisecond))
}
