package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"uptime/internal/config"
	"uptime/internal/storage"
)

// TCPProbe TCP 探测：在超时内建立连接即为成功
type TCPProbe struct {
	params  *config.TCPParams
	timeout time.Duration
}

// NewTCPProbe 创建 TCP 探测器
func NewTCPProbe(params *config.TCPParams, defaultTimeout time.Duration) *TCPProbe {
	return &TCPProbe{params: params, timeout: defaultTimeout}
}

// Kind 返回探测类型
func (p *TCPProbe) Kind() string { return config.KindTCP }

// Check 执行单次探测
func (p *TCPProbe) Check(ctx context.Context) *Result {
	host, port := HostPort(p.params.Address, "")
	if host == "" || port == "" {
		return Fail(config.KindTCP, storage.ReasonInvalidParams,
			fmt.Sprintf("地址必须是 host:port 形式: %s", p.params.Address))
	}

	timeout := timeoutFor(p.params.MaxLatencyDuration, p.timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	latency := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Fail(config.KindTCP, storage.ReasonTimeout,
				fmt.Sprintf("连接超时(%v)", timeout))
		}
		return Fail(config.KindTCP, storage.ReasonError,
			fmt.Sprintf("连接失败: %v", err))
	}
	defer conn.Close()

	if p.params.MaxLatencyDuration > 0 && latency > p.params.MaxLatencyDuration {
		return Fail(config.KindTCP, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("延迟超出阈值: %v > %v", latency.Round(time.Millisecond), p.params.MaxLatencyDuration))
	}

	return Succeed(config.KindTCP, latency, "连接建立成功")
}
