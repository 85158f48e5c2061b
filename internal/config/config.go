package config

import "time"

// AppConfig 应用配置
// 由外部配置文件提供，监控核心只读取；文件变更通过 Watcher 热更新
type AppConfig struct {
	// 全量巡检扫描间隔（支持 Go duration 格式，例如 "30s"、"1m"，默认 "1m"）
	// 注意：这是调度器扫描到期服务的节拍，不是单个服务的检查间隔
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`

	// 解析后的巡检扫描间隔（内部使用，不序列化）
	PollIntervalDuration time.Duration `yaml:"-" json:"-"`

	// 并发探测的最大 goroutine 数（默认 4）
	// 是同时在途探测数量的上限，不保证执行顺序
	PollConcurrency int `yaml:"poll_concurrency" json:"poll_concurrency"`

	// 探测默认超时时间（未配置延迟阈值时生效，默认 "10s"）
	ProbeTimeout string `yaml:"probe_timeout" json:"probe_timeout"`

	// 解析后的探测默认超时（内部使用，不序列化）
	ProbeTimeoutDuration time.Duration `yaml:"-" json:"-"`

	// 历史摘要窗口大小（mini history 条数，默认 10）
	HistorySummarySize int `yaml:"history_summary_size" json:"history_summary_size"`

	// 维护任务频率（按天起点对齐，默认 "24h"）
	MaintenanceFrequency string `yaml:"maintenance_frequency" json:"maintenance_frequency"`

	// 解析后的维护任务频率（内部使用，不序列化）
	MaintenanceFrequencyDuration time.Duration `yaml:"-" json:"-"`

	// 全局监控开关：关闭后巡检定时器继续运行但不扫描，
	// 重新开启后下一个节拍即生效，无需重启
	MonitoringEnabled *bool `yaml:"monitoring_enabled,omitempty" json:"monitoring_enabled,omitempty"`

	// 存储配置
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// 监测服务列表
	Monitors []ServiceConfig `yaml:"monitors" json:"monitors"`

	// 通知器列表
	Notifiers []NotifierConfig `yaml:"notifiers" json:"notifiers"`

	// 分组配置（服务通过 group 关联一组通知器）
	Groups []GroupConfig `yaml:"groups" json:"groups"`
}

// GroupConfig 服务分组
// 组内挂接的通知器会在组内任一服务发生状态变更时被触达
type GroupConfig struct {
	Name      string   `yaml:"name" json:"name"`
	Notifiers []string `yaml:"notifiers" json:"notifiers"` // 通知器 ID 列表
}

// IsMonitoringEnabled 返回监控总开关状态（默认开启）
func (c *AppConfig) IsMonitoringEnabled() bool {
	if c.MonitoringEnabled == nil {
		return true
	}
	return *c.MonitoringEnabled
}

// MonitorByID 按 ID 查找监测服务（未找到返回 nil）
func (c *AppConfig) MonitorByID(id string) *ServiceConfig {
	for i := range c.Monitors {
		if c.Monitors[i].ID == id {
			return &c.Monitors[i]
		}
	}
	return nil
}

// NotifierIDsFor 返回指定服务所属分组挂接的通知器 ID 列表
// 服务未分组或分组不存在时返回空
func (c *AppConfig) NotifierIDsFor(serviceID string) []string {
	m := c.MonitorByID(serviceID)
	if m == nil || m.Group == "" {
		return nil
	}
	for i := range c.Groups {
		if c.Groups[i].Name == m.Group {
			return c.Groups[i].Notifiers
		}
	}
	return nil
}

// StorageConfig 存储配置
type StorageConfig struct {
	// 存储类型：sqlite（默认）或 postgres
	Type string `yaml:"type" json:"type"`

	// SQLite 数据库文件路径（type=sqlite 时生效，默认 "data/uptime.db"）
	Path string `yaml:"path" json:"path"`

	// PostgreSQL 连接配置（type=postgres 时生效）
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

// PostgresConfig PostgreSQL 连接配置
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"-"` // 不返回给外部
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"sslmode" json:"sslmode"`

	// 连接池参数
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}
