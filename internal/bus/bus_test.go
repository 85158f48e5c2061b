package bus

import (
	"testing"
	"time"

	"uptime/internal/storage"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch := b.SubscribeStatusChange()

	want := StatusChange{
		ID:          "ev-1",
		ServiceID:   "svc-1",
		ServiceName: "官网",
		Status:      storage.StatusDown,
		Reason:      storage.ReasonTimeout,
		At:          time.Now(),
	}
	b.PublishStatusChange(want)

	select {
	case got := <-ch:
		if got.ID != want.ID || got.Status != want.Status || got.Reason != want.Reason {
			t.Errorf("收到的事件不符: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("订阅者未收到事件")
	}
}

func TestMultipleSubscribers(t *testing.T) {
	b := New()
	ch1 := b.SubscribeInvalidate()
	ch2 := b.SubscribeInvalidate()

	b.PublishInvalidate(InvalidateState, "svc-1")

	for i, ch := range []<-chan Invalidate{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Scope != InvalidateState || got.ServiceID != "svc-1" {
				t.Errorf("订阅者 %d 收到的信号不符: %+v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("订阅者 %d 未收到信号", i)
		}
	}
}

// 订阅通道满时发布不阻塞，消息被丢弃
func TestPublishNonBlockingWhenFull(t *testing.T) {
	b := New()
	ch := b.SubscribeInvalidate()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+16; i++ {
			b.PublishInvalidate(InvalidateHistory, "svc-1")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("通道满时发布不应阻塞")
	}

	// 缓冲内的消息仍可消费
	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			if received != subscriberBuffer {
				t.Errorf("缓冲消息数 = %d, want %d", received, subscriberBuffer)
			}
			return
		}
	}
}

func TestSettingsAndManualCheckTopics(t *testing.T) {
	b := New()
	settingsCh := b.SubscribeSettingsChanged()
	manualCh := b.SubscribeManualCheck()

	b.PublishSettingsChanged()
	b.PublishManualCheck("svc-9")

	select {
	case <-settingsCh:
	case <-time.After(time.Second):
		t.Fatal("未收到设置变更信号")
	}

	select {
	case req := <-manualCh:
		if req.ServiceID != "svc-9" {
			t.Errorf("ServiceID = %q, want svc-9", req.ServiceID)
		}
	case <-time.After(time.Second):
		t.Fatal("未收到手动检查请求")
	}
}
