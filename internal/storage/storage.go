package storage

import (
	"context"
	"fmt"
	"time"

	"uptime/internal/config"
)

// Status 服务状态（字符串形式，便于扩展和前后端统一）
type Status string

const (
	StatusUp      Status = "up"      // 最近一次检查成功
	StatusDown    Status = "down"    // 连续失败达到阈值
	StatusPending Status = "pending" // 已失败但未达阈值
	StatusPaused  Status = "paused"  // 服务被停用，不探测
)

// ReasonCode 失败原因码
type ReasonCode string

const (
	ReasonNone              ReasonCode = ""                    // 成功无需原因
	ReasonTimeout           ReasonCode = "timeout"             // 超时
	ReasonInvalidStatus     ReasonCode = "invalid_status"      // HTTP 状态码不符
	ReasonQueryNotSatisfied ReasonCode = "query_not_satisfied" // 断言不满足
	ReasonInvalidParams     ReasonCode = "invalid_params"      // 探测参数不合法
	ReasonInvalidResponse   ReasonCode = "invalid_response"    // 响应不可解析/不完整
	ReasonPacketLoss        ReasonCode = "packet_loss"         // 丢包超阈值
	ReasonExpired           ReasonCode = "expired"             // 证书/域名已过期
	ReasonDown              ReasonCode = "down"                // 目标完全无响应
	ReasonError             ReasonCode = "error"               // 其他错误（兜底）
)

// CheckSnapshot 最近一次探测结果快照（随服务状态持久化）
type CheckSnapshot struct {
	Kind          string     `json:"kind"`
	OK            bool       `json:"ok"`
	LatencyMillis float64    `json:"latency_ms"`
	Reason        ReasonCode `json:"reason,omitempty"`
	Message       string     `json:"message,omitempty"`
	At            time.Time  `json:"at"`
}

// MiniHistoryEntry 历史摘要条目（用于快速展示的有界窗口）
type MiniHistoryEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Status        Status    `json:"status"`
	LatencyMillis float64   `json:"latency_ms,omitempty"`
}

// ServiceState 服务当前状态快照（每个服务一行）
// 仅由状态评估器在单次检查周期的原子写入中变更
type ServiceState struct {
	ServiceID   string
	NextCheckAt time.Time // 下次检查时间（按间隔对齐推进，防漂移）
	Failures    int       // 连续失败计数，成功即归零
	Status      Status
	ChangedAt   time.Time // 最近一次状态跃迁时间

	// 最近一次探测结果（服务暂停时为空）
	Current *CheckSnapshot

	// 滚动聚合
	Uptime1d  float64 // 近 1 天可用率（0-100）
	Uptime30d float64 // 近 30 天可用率（0-100）
	Latency1d float64 // 近 1 天成功检查的平均延迟（ms）

	// 历史摘要窗口（最近 N 条，时间升序）
	MiniHistory []MiniHistoryEntry
}

// HistoryEntry 历史审计记录（只增不改，仅由保留维护裁剪）
type HistoryEntry struct {
	ID            int64
	ServiceID     string
	Kind          string
	OK            bool
	LatencyMillis float64
	Reason        ReasonCode
	Message       string
	Status        Status
	CreatedAt     time.Time
}

// HistoryPoint 聚合计算用的紧凑历史点
type HistoryPoint struct {
	CreatedAt     time.Time
	Status        Status
	OK            bool
	LatencyMillis float64
	Kind          string
	Reason        ReasonCode
}

// Storage 存储接口
// 实现方必须保证 WriteCheckResult 中历史插入与状态更新的原子性：
// 读者不能观察到只有其中一半的写入
type Storage interface {
	// Init 初始化表结构
	Init() error

	// Close 关闭存储
	Close() error

	// GetState 读取单个服务状态（不存在返回 nil, nil）
	GetState(ctx context.Context, serviceID string) (*ServiceState, error)

	// ListStates 读取所有服务状态，按 serviceID 索引
	ListStates(ctx context.Context) (map[string]*ServiceState, error)

	// WriteCheckResult 原子写入一次检查结果：
	// 追加历史记录（entry 为 nil 时跳过，如暂停周期）并 upsert 服务状态
	WriteCheckResult(ctx context.Context, entry *HistoryEntry, state *ServiceState) error

	// HistoryWindow 读取指定服务 since 之后的历史点，时间升序
	HistoryWindow(ctx context.Context, serviceID string, since time.Time) ([]HistoryPoint, error)

	// PruneHistory 按保留条数裁剪历史，最旧优先删除，返回删除行数
	PruneHistory(ctx context.Context, serviceID string, retain int) (int64, error)

	// Vacuum 回收存储空间（维护任务调用）
	Vacuum(ctx context.Context) error

	// Reconfigure 一次性存储调优（首次维护时调用，如 WAL/ANALYZE）
	Reconfigure(ctx context.Context) error

	// GetMeta 读取元数据（不存在返回空串）
	GetMeta(ctx context.Context, key string) (string, error)

	// SetMeta 写入元数据
	SetMeta(ctx context.Context, key, value string) error
}

// New 根据配置创建存储实例
func New(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "sqlite":
		return NewSQLiteStorage(cfg.Path)
	case "postgres":
		return NewPostgresStorage(&cfg.Postgres)
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", cfg.Type)
	}
}
