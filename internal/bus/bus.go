// Package bus 提供进程内发布/订阅
// 是监控核心对外的唯一输出面：失效信号、状态跃迁事件，
// 以及外部协作方注入的设置变更与手动检查请求
package bus

import (
	"sync"
	"time"

	"uptime/internal/logger"
	"uptime/internal/storage"
)

// InvalidateScope 失效范围
type InvalidateScope string

const (
	InvalidateState   InvalidateScope = "state"   // 服务状态快照已更新
	InvalidateHistory InvalidateScope = "history" // 历史摘要发生"有历史意义"的变化
)

// Invalidate 缓存失效信号
type Invalidate struct {
	Scope     InvalidateScope
	ServiceID string
}

// StatusChange 状态跃迁事件（通知分发器消费）
type StatusChange struct {
	ID          string // 事件标识
	ServiceID   string
	ServiceName string
	Status      storage.Status
	Reason      storage.ReasonCode
	Message     string
	At          time.Time
}

// SettingsChanged 设置变更信号
type SettingsChanged struct{}

// ManualCheck 手动立即检查请求
type ManualCheck struct {
	ServiceID string
}

// 订阅通道缓冲区大小
// 满时丢弃并告警：失效信号允许丢失（读者总能重查），不能阻塞检查周期
const subscriberBuffer = 64

// topic 单主题的订阅者集合
type topic[T any] struct {
	mu   sync.RWMutex
	subs []chan T
}

func (t *topic[T]) subscribe() <-chan T {
	ch := make(chan T, subscriberBuffer)
	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()
	return ch
}

func (t *topic[T]) publish(name string, msg T) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ch := range t.subs {
		select {
		case ch <- msg:
		default:
			logger.Warn("bus", "订阅通道已满，消息被丢弃", "topic", name)
		}
	}
}

// Bus 进程内消息总线
type Bus struct {
	invalidate   topic[Invalidate]
	statusChange topic[StatusChange]
	settings     topic[SettingsChanged]
	manualCheck  topic[ManualCheck]
}

// New 创建消息总线
func New() *Bus {
	return &Bus{}
}

// PublishInvalidate 发布缓存失效信号
func (b *Bus) PublishInvalidate(scope InvalidateScope, serviceID string) {
	b.invalidate.publish("invalidate", Invalidate{Scope: scope, ServiceID: serviceID})
}

// PublishStatusChange 发布状态跃迁事件
func (b *Bus) PublishStatusChange(ev StatusChange) {
	b.statusChange.publish("status_change", ev)
}

// PublishSettingsChanged 发布设置变更信号
func (b *Bus) PublishSettingsChanged() {
	b.settings.publish("settings_changed", SettingsChanged{})
}

// PublishManualCheck 发布手动检查请求
func (b *Bus) PublishManualCheck(serviceID string) {
	b.manualCheck.publish("manual_check", ManualCheck{ServiceID: serviceID})
}

// SubscribeInvalidate 订阅缓存失效信号
func (b *Bus) SubscribeInvalidate() <-chan Invalidate {
	return b.invalidate.subscribe()
}

// SubscribeStatusChange 订阅状态跃迁事件
func (b *Bus) SubscribeStatusChange() <-chan StatusChange {
	return b.statusChange.subscribe()
}

// SubscribeSettingsChanged 订阅设置变更信号
func (b *Bus) SubscribeSettingsChanged() <-chan SettingsChanged {
	return b.settings.subscribe()
}

// SubscribeManualCheck 订阅手动检查请求
func (b *Bus) SubscribeManualCheck() <-chan ManualCheck {
	return b.manualCheck.subscribe()
}
