// Package notify 实现状态变更通知的分发
// 每种投递渠道一个 Notifier 实现；分发器订阅状态跃迁事件，
// 解析服务分组挂接的通知器并逐个投递，单个失败不影响其他渠道
package notify

import (
	"context"
	"time"

	"uptime/internal/storage"
)

// Event 状态跃迁通知事件
type Event struct {
	ID          string             `json:"id"`
	ServiceID   string             `json:"service_id"`
	ServiceName string             `json:"service_name"`
	Status      storage.Status     `json:"status"`
	Reason      storage.ReasonCode `json:"reason,omitempty"`
	Message     string             `json:"message,omitempty"`
	At          time.Time          `json:"at"`
}

// Notifier 通知器接口
// Send 自行应用状态过滤：被过滤的事件直接返回 nil，不产生外呼
type Notifier interface {
	Name() string
	Send(ctx context.Context, ev *Event) error
}

// statusAllowed 状态过滤判定（空过滤表示全部放行）
func statusAllowed(filter []string, status storage.Status) bool {
	if len(filter) == 0 {
		return true
	}
	for _, s := range filter {
		if storage.Status(s) == status {
			return true
		}
	}
	return false
}

// title 构造通知标题
func title(ev *Event) string {
	if ev.Status == storage.StatusUp {
		return "✅ " + ev.ServiceName + " 已恢复"
	}
	return "🔴 " + ev.ServiceName + " 不可用"
}
