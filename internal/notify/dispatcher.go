package notify

import (
	"context"
	"sync"
	"time"

	"uptime/internal/bus"
	"uptime/internal/config"
	"uptime/internal/logger"
	"uptime/internal/storage"
)

// 单个通知器的投递超时
const deliveryTimeout = 10 * time.Second

// Dispatcher 通知分发器
// 订阅状态跃迁事件，解析服务分组挂接的通知器并逐个投递
type Dispatcher struct {
	registry *Registry

	cfgMu sync.RWMutex
	cfg   *config.AppConfig
}

// NewDispatcher 创建通知分发器
func NewDispatcher(registry *Registry, cfg *config.AppConfig) *Dispatcher {
	return &Dispatcher{registry: registry, cfg: cfg}
}

// UpdateConfig 更新配置引用（热更新时调用）
func (d *Dispatcher) UpdateConfig(cfg *config.AppConfig) {
	d.cfgMu.Lock()
	d.cfg = cfg
	d.cfgMu.Unlock()
	d.registry.Update(cfg.Notifiers)
}

// config 读取当前配置引用
func (d *Dispatcher) config() *config.AppConfig {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

// Run 运行分发循环（阻塞，应在 goroutine 中调用）
func (d *Dispatcher) Run(ctx context.Context, events <-chan bus.StatusChange) {
	logger.Info("notify", "通知分发器已启动")
	for {
		select {
		case <-ctx.Done():
			logger.Info("notify", "通知分发器已停止")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.dispatch(ctx, ev)
		}
	}
}

// dispatch 处理单个状态跃迁事件
func (d *Dispatcher) dispatch(ctx context.Context, change bus.StatusChange) {
	// 只有 up/down 跃迁才通知；pending 是迟滞中间态，paused 是人为操作
	if change.Status == storage.StatusPaused || change.Status == storage.StatusPending {
		return
	}

	ids := d.config().NotifierIDsFor(change.ServiceID)
	if len(ids) == 0 {
		return
	}

	ev := &Event{
		ID:          change.ID,
		ServiceID:   change.ServiceID,
		ServiceName: change.ServiceName,
		Status:      change.Status,
		Reason:      change.Reason,
		Message:     change.Message,
		At:          change.At,
	}

	// 逐个投递，单个失败只记录日志，不影响其他渠道
	for _, n := range d.registry.Resolve(ids) {
		sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		err := n.Send(sendCtx, ev)
		cancel()
		if err != nil {
			logger.Error("notify", "通知投递失败",
				"notifier", n.Name(), "service", change.ServiceName,
				"status", change.Status, "error", err)
			continue
		}
		logger.Debug("notify", "通知已投递",
			"notifier", n.Name(), "service", change.ServiceName, "status", change.Status)
	}
}
