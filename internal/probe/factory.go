package probe

import (
	"fmt"
	"sync"
	"time"

	"uptime/internal/config"
)

// New 按配置的 kind 创建探测器（纯分发函数）
// kind 与参数块的匹配关系在配置校验阶段已保证，这里只做兜底
func New(cfg *config.ServiceConfig, defaultTimeout time.Duration) (Prober, error) {
	switch cfg.Kind {
	case config.KindHTTP:
		if cfg.HTTP == nil {
			return nil, fmt.Errorf("缺少 http 参数块")
		}
		return NewHTTPProbe(cfg.HTTP, defaultTimeout), nil
	case config.KindTCP:
		if cfg.TCP == nil {
			return nil, fmt.Errorf("缺少 tcp 参数块")
		}
		return NewTCPProbe(cfg.TCP, defaultTimeout), nil
	case config.KindDNS:
		if cfg.DNS == nil {
			return nil, fmt.Errorf("缺少 dns 参数块")
		}
		return NewDNSProbe(cfg.DNS, defaultTimeout), nil
	case config.KindSSL:
		if cfg.SSL == nil {
			return nil, fmt.Errorf("缺少 ssl 参数块")
		}
		return NewSSLProbe(cfg.SSL, defaultTimeout), nil
	case config.KindDomain:
		if cfg.Domain == nil {
			return nil, fmt.Errorf("缺少 domain 参数块")
		}
		return NewDomainProbe(cfg.Domain, defaultTimeout), nil
	case config.KindPing:
		if cfg.Ping == nil {
			return nil, fmt.Errorf("缺少 ping 参数块")
		}
		return NewPingProbe(cfg.Ping, defaultTimeout), nil
	case config.KindMQTT:
		if cfg.MQTT == nil {
			return nil, fmt.Errorf("缺少 mqtt 参数块")
		}
		return NewMQTTProbe(cfg.MQTT, defaultTimeout), nil
	default:
		return nil, fmt.Errorf("未知的探测类型: %s", cfg.Kind)
	}
}

// cacheEntry 缓存的探测器实例及其对应的配置版本
type cacheEntry struct {
	version uint64
	prober  Prober
}

// Cache 探测器实例缓存（按服务 ID 索引）
// 配置版本号不一致时重建实例，实现显式的缓存失效
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache 创建探测器缓存
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get 获取或创建探测器实例
func (c *Cache) Get(cfg *config.ServiceConfig, defaultTimeout time.Duration) (Prober, error) {
	c.mu.RLock()
	entry, ok := c.entries[cfg.ID]
	c.mu.RUnlock()

	if ok && entry.version == cfg.Version {
		return entry.prober, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// 双重检查
	if entry, ok := c.entries[cfg.ID]; ok && entry.version == cfg.Version {
		return entry.prober, nil
	}

	prober, err := New(cfg, defaultTimeout)
	if err != nil {
		return nil, err
	}
	c.entries[cfg.ID] = cacheEntry{version: cfg.Version, prober: prober}
	return prober, nil
}

// Prune 清理已从配置中移除的服务对应的实例
func (c *Cache) Prune(live map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.entries {
		if _, ok := live[id]; !ok {
			delete(c.entries, id)
		}
	}
}
