package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"uptime/internal/config"
	"uptime/internal/storage"
)

// MQTTProbe MQTT 探测
// 连接 broker、订阅主题、等待首条消息，对消息载荷应用与 HTTP 相同的断言机制
type MQTTProbe struct {
	params  *config.MQTTParams
	timeout time.Duration
}

// NewMQTTProbe 创建 MQTT 探测器
func NewMQTTProbe(params *config.MQTTParams, defaultTimeout time.Duration) *MQTTProbe {
	return &MQTTProbe{params: params, timeout: defaultTimeout}
}

// Kind 返回探测类型
func (p *MQTTProbe) Kind() string { return config.KindMQTT }

// Check 执行单次探测
func (p *MQTTProbe) Check(ctx context.Context) *Result {
	host, port := HostPort(p.params.Address, "1883")
	if host == "" {
		return Fail(config.KindMQTT, storage.ReasonInvalidParams,
			fmt.Sprintf("无法从地址解析 broker: %s", p.params.Address))
	}

	timeout := timeoutFor(0, p.timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	opts := mqtt.NewClientOptions().
		AddBroker("tcp://" + net.JoinHostPort(host, port)).
		SetClientID("uptime-pulse-" + uuid.New().String()[:8]).
		SetConnectTimeout(time.Until(deadline)).
		SetAutoReconnect(false)
	if p.params.Username != "" {
		opts.SetUsername(p.params.Username)
		opts.SetPassword(p.params.Password)
	}

	client := mqtt.NewClient(opts)
	start := time.Now()

	connectToken := client.Connect()
	if !connectToken.WaitTimeout(time.Until(deadline)) {
		client.Disconnect(0)
		return Fail(config.KindMQTT, storage.ReasonTimeout,
			fmt.Sprintf("连接超时(%v)", timeout))
	}
	if err := connectToken.Error(); err != nil {
		return Fail(config.KindMQTT, storage.ReasonError,
			fmt.Sprintf("连接失败: %v", err))
	}
	// 连接成功后无论哪条路径退出都要断开
	defer client.Disconnect(250)

	msgCh := make(chan []byte, 1)
	subToken := client.Subscribe(p.params.Topic, 0, func(_ mqtt.Client, m mqtt.Message) {
		select {
		case msgCh <- m.Payload():
		default:
		}
	})
	if !subToken.WaitTimeout(time.Until(deadline)) {
		return Fail(config.KindMQTT, storage.ReasonTimeout,
			fmt.Sprintf("订阅超时(%v)", timeout))
	}
	if err := subToken.Error(); err != nil {
		return Fail(config.KindMQTT, storage.ReasonError,
			fmt.Sprintf("订阅失败: %v", err))
	}

	// 等待首条消息
	select {
	case payload := <-msgCh:
		latency := time.Since(start)
		if p.params.Query != nil {
			if ok, reason, msg := evaluateQuery(p.params.Query, payload); !ok {
				return Fail(config.KindMQTT, reason, msg)
			}
		}
		return Succeed(config.KindMQTT, latency,
			fmt.Sprintf("收到消息(%d 字节)", len(payload)))
	case <-ctx.Done():
		return Fail(config.KindMQTT, storage.ReasonTimeout,
			fmt.Sprintf("等待消息超时(%v)", timeout))
	}
}
