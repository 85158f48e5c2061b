// Package scheduler 实现巡检调度
// 固定节拍的巡检定时器扫描到期服务，在并发上限内派发检查周期；
// 同一服务的周期绝不重叠，跨服务之间无顺序保证
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"uptime/internal/bus"
	"uptime/internal/config"
	"uptime/internal/logger"
	"uptime/internal/probe"
	"uptime/internal/state"
	"uptime/internal/storage"
)

// Scheduler 调度器
type Scheduler struct {
	store  storage.Storage
	bus    *bus.Bus
	probes *probe.Cache

	// proberFor 解析探测器实例（默认走缓存，测试中可替换）
	proberFor func(cfg *config.ServiceConfig, timeout time.Duration) (probe.Prober, error)

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	// 唤醒信号（配置变更时重算节拍），巡检与维护循环各持一个
	wakeCh      chan struct{}
	maintWakeCh chan struct{}

	// 配置引用（支持热更新）
	cfgMu sync.RWMutex
	cfg   *config.AppConfig

	// 同一服务的在途检查防重入
	inflight sync.Map // serviceID -> struct{}

	wg sync.WaitGroup
}

// NewScheduler 创建调度器
func NewScheduler(store storage.Storage, b *bus.Bus) *Scheduler {
	cache := probe.NewCache()
	return &Scheduler{
		store:     store,
		bus:       b,
		probes:    cache,
		proberFor:   cache.Get,
		wakeCh:      make(chan struct{}, 1),
		maintWakeCh: make(chan struct{}, 1),
	}
}

// Start 启动调度器
func (s *Scheduler) Start(ctx context.Context, cfg *config.AppConfig) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	s.wg.Add(3)
	go s.pollLoop()
	go s.maintenanceLoop()
	go s.busLoop()

	logger.Info("scheduler", "调度器已启动",
		"monitors", len(cfg.Monitors),
		"poll_interval", cfg.PollIntervalDuration,
		"concurrency", cfg.PollConcurrency)
}

// Stop 停止调度器：清掉定时器，等待在途检查收尾
// 单周期的原子事务保证中途停止不会留下撕裂状态
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	s.notifyWake()
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info("scheduler", "调度器已停止")
}

// UpdateConfig 更新配置（热更新时调用）
// 在途检查不受影响；节拍与并发上限在下一轮扫描生效
func (s *Scheduler) UpdateConfig(cfg *config.AppConfig) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	// 清理已移除服务的探测器实例
	live := make(map[string]struct{}, len(cfg.Monitors))
	for i := range cfg.Monitors {
		live[cfg.Monitors[i].ID] = struct{}{}
	}
	s.probes.Prune(live)

	s.notifyWake()
	logger.Info("scheduler", "配置已更新，调度节拍已重算",
		"monitors", len(cfg.Monitors), "poll_interval", cfg.PollIntervalDuration)
}

// config 读取当前配置引用
func (s *Scheduler) config() *config.AppConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// notifyWake 唤醒巡检与维护循环
func (s *Scheduler) notifyWake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
		// 已有唤醒信号，无需重复发送
	}
	select {
	case s.maintWakeCh <- struct{}{}:
	default:
	}
}

// pollLoop 巡检主循环
// 监控总开关关闭时定时器照常走，只是不扫描，重新开启即恢复
func (s *Scheduler) pollLoop() {
	defer s.wg.Done()

	timer := time.NewTimer(s.config().PollIntervalDuration)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-timer.C:
			cfg := s.config()
			if cfg.IsMonitoringEnabled() {
				s.pollOnce(s.ctx, cfg)
			} else {
				logger.Debug("scheduler", "监控已全局停用，跳过本轮扫描")
			}
			timer.Reset(cfg.PollIntervalDuration)

		case <-s.wakeCh:
			// 配置变更，按新节拍重置定时器
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.config().PollIntervalDuration)
		}
	}
}

// pollOnce 执行一轮到期扫描
// 到期条件：尚无状态（首次）或 nextCheckAt <= now；
// 并发上限约束同时在途的探测数量，不保证执行顺序
func (s *Scheduler) pollOnce(ctx context.Context, cfg *config.AppConfig) {
	states, err := s.store.ListStates(ctx)
	if err != nil {
		logger.Error("scheduler", "读取服务状态列表失败", "error", err)
		return
	}
	now := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.PollConcurrency)

	dispatched := 0
	for i := range cfg.Monitors {
		m := cfg.Monitors[i]
		prev := states[m.ID]

		// 停用的服务：状态未置 paused 时补一个暂停周期，之后跳过
		if !m.IsActive() {
			if prev == nil || prev.Status != storage.StatusPaused {
				g.Go(func() error {
					s.runCycle(gctx, &m, true)
					return nil
				})
				dispatched++
			}
			continue
		}

		if prev != nil && prev.NextCheckAt.After(now) {
			continue
		}

		g.Go(func() error {
			s.runCycle(gctx, &m, false)
			return nil
		})
		dispatched++
	}

	// 等待本批全部收尾（并发度由 errgroup 限制）
	_ = g.Wait()
	if dispatched > 0 {
		logger.Debug("scheduler", "本轮扫描完成", "dispatched", dispatched)
	}
}

// CheckNow 立即对单个服务执行检查（手动触发，不等巡检节拍）
// 注意：对齐的 nextCheckAt 会照常从本次执行重算，手动检查因此可能
// 微调该服务的后续节奏；这是沿用自然行为的取舍
func (s *Scheduler) CheckNow(serviceID string) {
	cfg := s.config()
	m := cfg.MonitorByID(serviceID)
	if m == nil {
		logger.Warn("scheduler", "手动检查的服务不存在", "service_id", serviceID)
		return
	}
	if !m.IsActive() {
		logger.Warn("scheduler", "手动检查的服务已停用", "service_id", serviceID)
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}

	logger.Info("scheduler", "手动检查", "service_id", serviceID, "name", m.Name)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		mCopy := *m
		s.runCycle(ctx, &mCopy, false)
	}()
}

// runCycle 执行单个服务的完整检查周期：
// 探测 → 状态评估 → 原子持久化 → 发布信号
// paused=true 时跳过探测，只做暂停状态落库
func (s *Scheduler) runCycle(ctx context.Context, m *config.ServiceConfig, paused bool) {
	// 同一服务的周期不允许重叠
	if _, loaded := s.inflight.LoadOrStore(m.ID, struct{}{}); loaded {
		logger.Debug("scheduler", "上一周期仍在途，跳过", "service_id", m.ID)
		return
	}
	defer s.inflight.Delete(m.ID)

	cfg := s.config()
	now := time.Now()

	prev, err := s.store.GetState(ctx, m.ID)
	if err != nil {
		logger.Error("scheduler", "读取服务状态失败",
			"service_id", m.ID, "name", m.Name, "error", err)
		return
	}

	var result *probe.Result
	if !paused {
		prober, err := s.proberFor(m, cfg.ProbeTimeoutDuration)
		if err != nil {
			// 配置问题降级为探测失败结果，不中断调度
			result = probe.Fail(m.Kind, storage.ReasonInvalidParams, err.Error())
		} else {
			result = prober.Check(ctx)
		}
		now = time.Now() // 评估用探测结束时刻
	}

	// 近 30 天历史窗口用于聚合重算；读取失败降级为空窗口
	history, err := s.store.HistoryWindow(ctx, m.ID, now.AddDate(0, 0, -30))
	if err != nil {
		logger.Error("scheduler", "读取历史窗口失败",
			"service_id", m.ID, "name", m.Name, "error", err)
		history = nil
	}

	out := state.Evaluate(prev, result, state.Config{
		FailuresBeforeDown: m.FailuresBeforeDown,
		Interval:           m.IntervalDuration,
		SummarySize:        cfg.HistorySummarySize,
	}, history, now)
	out.State.ServiceID = m.ID

	var entry *storage.HistoryEntry
	if result != nil {
		entry = &storage.HistoryEntry{
			ServiceID:     m.ID,
			Kind:          result.Kind,
			OK:            result.OK,
			LatencyMillis: result.LatencyMillis,
			Reason:        result.Reason,
			Message:       result.Message,
			Status:        out.State.Status,
			CreatedAt:     now,
		}
	}

	// 持久化失败只影响本周期，服务会在下一轮自然重试
	if err := s.store.WriteCheckResult(ctx, entry, out.State); err != nil {
		logger.Error("scheduler", "写入检查结果失败",
			"service_id", m.ID, "name", m.Name, "error", err)
		return
	}

	// 状态快照每周期都失效；历史摘要仅在有历史意义的变化时失效
	s.bus.PublishInvalidate(bus.InvalidateState, m.ID)
	if out.HistorySignificant {
		s.bus.PublishInvalidate(bus.InvalidateHistory, m.ID)
	}
	if out.StatusChanged {
		change := bus.StatusChange{
			ID:          uuid.New().String(),
			ServiceID:   m.ID,
			ServiceName: m.Name,
			Status:      out.State.Status,
			At:          now,
		}
		if result != nil {
			change.Reason = result.Reason
			change.Message = result.Message
		}
		s.bus.PublishStatusChange(change)
		logger.Info("scheduler", "状态跃迁",
			"service_id", m.ID, "name", m.Name,
			"status", out.State.Status, "failures", out.State.Failures)
	}
}

// busLoop 消费外部协作方注入的总线消息
func (s *Scheduler) busLoop() {
	defer s.wg.Done()

	manualCh := s.bus.SubscribeManualCheck()
	settingsCh := s.bus.SubscribeSettingsChanged()

	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-manualCh:
			s.CheckNow(req.ServiceID)
		case <-settingsCh:
			// 设置变更：唤醒各循环按新配置重算节拍
			s.notifyWake()
		}
	}
}
