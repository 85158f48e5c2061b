package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader 配置加载器
type Loader struct{}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{}
}

// Load 从文件加载配置
// 流程：读取 → 环境变量展开 → 解析 → 归一化（默认值/时长解析/版本号）→ 校验
func (l *Loader) Load(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 支持 ${VAR} 形式引用环境变量（常用于凭据注入）
	expanded := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize 填充默认值、解析时长字符串、计算内容版本号
func (c *AppConfig) Normalize() error {
	var err error
	if c.PollIntervalDuration, err = parseDuration("poll_interval", c.PollInterval, time.Minute); err != nil {
		return err
	}
	if c.ProbeTimeoutDuration, err = parseDuration("probe_timeout", c.ProbeTimeout, 10*time.Second); err != nil {
		return err
	}
	if c.MaintenanceFrequencyDuration, err = parseDuration("maintenance_frequency", c.MaintenanceFrequency, 24*time.Hour); err != nil {
		return err
	}
	if c.PollConcurrency <= 0 {
		c.PollConcurrency = 4
	}
	if c.HistorySummarySize <= 0 {
		c.HistorySummarySize = 10
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/uptime.db"
	}

	for i := range c.Monitors {
		m := &c.Monitors[i]
		if m.IntervalDuration, err = parseDuration(
			fmt.Sprintf("monitors[%s].interval", m.ID), m.Interval, time.Minute); err != nil {
			return err
		}
		if m.FailuresBeforeDown <= 0 {
			m.FailuresBeforeDown = 3
		}
		if m.SuccessesBeforeUp <= 0 {
			m.SuccessesBeforeUp = 1
		}
		if m.RetainCount <= 0 {
			m.RetainCount = 2000
		}
		if err := normalizeParams(m); err != nil {
			return err
		}
		m.Version = contentVersion(m)
	}

	for i := range c.Notifiers {
		n := &c.Notifiers[i]
		n.Version = contentVersion(n)
	}
	return nil
}

// normalizeParams 解析各 kind 参数块里的时长字段
func normalizeParams(m *ServiceConfig) error {
	var err error
	if m.HTTP != nil {
		if m.HTTP.MaxLatencyDuration, err = parseDuration(
			fmt.Sprintf("monitors[%s].http.max_latency", m.ID), m.HTTP.MaxLatency, 0); err != nil {
			return err
		}
	}
	if m.TCP != nil {
		if m.TCP.MaxLatencyDuration, err = parseDuration(
			fmt.Sprintf("monitors[%s].tcp.max_latency", m.ID), m.TCP.MaxLatency, 0); err != nil {
			return err
		}
	}
	if m.DNS != nil {
		if m.DNS.MaxLatencyDuration, err = parseDuration(
			fmt.Sprintf("monitors[%s].dns.max_latency", m.ID), m.DNS.MaxLatency, 0); err != nil {
			return err
		}
		if m.DNS.RecordType == "" {
			m.DNS.RecordType = "A"
		}
	}
	if m.SSL != nil {
		if m.SSL.MaxLatencyDuration, err = parseDuration(
			fmt.Sprintf("monitors[%s].ssl.max_latency", m.ID), m.SSL.MaxLatency, 0); err != nil {
			return err
		}
	}
	if m.Ping != nil {
		if m.Ping.MaxLatencyDuration, err = parseDuration(
			fmt.Sprintf("monitors[%s].ping.max_latency", m.ID), m.Ping.MaxLatency, 0); err != nil {
			return err
		}
	}
	if m.Domain != nil && m.Domain.Endpoint == "" {
		m.Domain.Endpoint = "https://rdap.org"
	}
	return nil
}

// parseDuration 解析时长字符串，空值回退默认
func parseDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s 不能为负数: %s", field, raw)
	}
	return d, nil
}

// contentVersion 计算配置块的内容哈希
// 用于探测器/通知器实例缓存的显式失效：内容变则版本变
func contentVersion(v any) uint64 {
	data, err := yaml.Marshal(v)
	if err != nil {
		// Marshal 对纯数据结构不会失败；兜底返回 0 强制重建
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}
