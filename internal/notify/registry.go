package notify

import (
	"fmt"
	"sync"

	"uptime/internal/config"
	"uptime/internal/logger"
)

// regEntry 缓存的通知器实例及其对应的配置版本
type regEntry struct {
	version  uint64
	notifier Notifier
}

// Registry 通知器注册表
// 按 ID 缓存存活实例，配置版本号变化时重建（显式失效）
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*config.NotifierConfig
	entries map[string]regEntry
}

// NewRegistry 创建通知器注册表
func NewRegistry(cfgs []config.NotifierConfig) *Registry {
	r := &Registry{
		entries: make(map[string]regEntry),
	}
	r.Update(cfgs)
	return r
}

// Update 替换当前配置集合（配置变更信号到达时调用）
// 旧实例保留在缓存里，Resolve 时按版本号判断是否重建
func (r *Registry) Update(cfgs []config.NotifierConfig) {
	configs := make(map[string]*config.NotifierConfig, len(cfgs))
	for i := range cfgs {
		configs[cfgs[i].ID] = &cfgs[i]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = configs

	// 清理已移除的通知器实例
	for id := range r.entries {
		if _, ok := configs[id]; !ok {
			delete(r.entries, id)
		}
	}
}

// Resolve 按 ID 列表解析存活通知器实例（惰性实例化）
// 不存在、停用或实例化失败的 ID 被跳过并记录日志
func (r *Registry) Resolve(ids []string) []Notifier {
	notifiers := make([]Notifier, 0, len(ids))
	for _, id := range ids {
		n, err := r.get(id)
		if err != nil {
			logger.Warn("notify", "解析通知器失败", "notifier_id", id, "error", err)
			continue
		}
		if n != nil {
			notifiers = append(notifiers, n)
		}
	}
	return notifiers
}

// get 获取或创建单个通知器实例（停用返回 nil, nil）
func (r *Registry) get(id string) (Notifier, error) {
	r.mu.RLock()
	cfg, ok := r.configs[id]
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("通知器不存在: %s", id)
	}
	if !cfg.IsActive() {
		r.mu.RUnlock()
		return nil, nil
	}
	if entry, ok := r.entries[id]; ok && entry.version == cfg.Version {
		r.mu.RUnlock()
		return entry.notifier, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// 双重检查
	if entry, ok := r.entries[id]; ok && entry.version == cfg.Version {
		return entry.notifier, nil
	}

	notifier, err := build(cfg)
	if err != nil {
		return nil, err
	}
	r.entries[id] = regEntry{version: cfg.Version, notifier: notifier}
	return notifier, nil
}

// build 按 kind 创建通知器实例（纯分发函数）
func build(cfg *config.NotifierConfig) (Notifier, error) {
	switch cfg.Kind {
	case config.NotifierGotify:
		return NewGotifyNotifier(cfg), nil
	case config.NotifierWebhook:
		return NewWebhookNotifier(cfg), nil
	case config.NotifierTelegram:
		return NewTelegramNotifier(cfg), nil
	default:
		return nil, fmt.Errorf("未知的通知渠道类型: %s", cfg.Kind)
	}
}
