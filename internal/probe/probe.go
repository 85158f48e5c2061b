// Package probe 提供按协议区分的探测实现
// 每种探测都是无状态的单次检查：给定参数执行一次网络/进程操作，
// 返回结构化的成功/失败判定，所有失败路径都转换为带原因码的结果，绝不向外抛出
package probe

import (
	"context"
	"net/http"
	"time"

	"uptime/internal/storage"
)

// 延迟阈值之外的超时宽限期
const latencyGrace = 100 * time.Millisecond

// 探测请求的 User-Agent
const userAgent = "uptime-pulse/1.0"

// Result 单次探测结果（不可变值，每次检查产生一个）
type Result struct {
	Kind          string
	OK            bool
	LatencyMillis float64
	Reason        storage.ReasonCode
	Message       string
}

// Prober 探测器接口
// Check 绝不 panic：超时、解析失败、连接拒绝等都转换为失败结果
type Prober interface {
	Kind() string
	Check(ctx context.Context) *Result
}

// Succeed 构造成功结果
func Succeed(kind string, latency time.Duration, message string) *Result {
	return &Result{
		Kind:          kind,
		OK:            true,
		LatencyMillis: latencyMillis(latency),
		Message:       message,
	}
}

// Fail 构造失败结果
func Fail(kind string, reason storage.ReasonCode, message string) *Result {
	return &Result{
		Kind:    kind,
		OK:      false,
		Reason:  reason,
		Message: message,
	}
}

// timeoutFor 计算探测超时：延迟阈值 + 宽限期，未配置阈值时回退全局默认
func timeoutFor(maxLatency, fallback time.Duration) time.Duration {
	if maxLatency > 0 {
		return maxLatency + latencyGrace
	}
	if fallback > 0 {
		return fallback
	}
	return 10 * time.Second
}

// latencyMillis 将耗时转为毫秒（保留微秒级小数精度）
func latencyMillis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// 共享 HTTP 传输层（连接复用）
// 注意：不在 client 上设置 Timeout，由各探测用 context.WithTimeout 控制
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	DisableKeepAlives:   false,
}

// newHTTPClient 创建复用共享传输层的 HTTP 客户端
func newHTTPClient() *http.Client {
	return &http.Client{Transport: sharedTransport}
}
