package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"uptime/internal/config"
	"uptime/internal/storage"
)

// 响应体读取上限，防止超大响应拖垮内存
const maxBodyBytes = 10 << 20

// HTTPProbe HTTP 探测
// GET 请求 + 可选状态码断言 + 可选延迟上限 + 可选响应体断言
type HTTPProbe struct {
	params  *config.HTTPParams
	timeout time.Duration
	client  *http.Client
}

// NewHTTPProbe 创建 HTTP 探测器
func NewHTTPProbe(params *config.HTTPParams, defaultTimeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		params:  params,
		timeout: defaultTimeout,
		client:  newHTTPClient(),
	}
}

// Kind 返回探测类型
func (p *HTTPProbe) Kind() string { return config.KindHTTP }

// Check 执行单次探测
func (p *HTTPProbe) Check(ctx context.Context) *Result {
	timeout := timeoutFor(p.params.MaxLatencyDuration, p.timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.params.URL, nil)
	if err != nil {
		return Fail(config.KindHTTP, storage.ReasonInvalidParams,
			fmt.Sprintf("创建请求失败: %v", err))
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range p.params.Headers {
		req.Header.Set(k, v)
	}

	// 计时覆盖到响应体读完为止
	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Fail(config.KindHTTP, storage.ReasonTimeout,
				fmt.Sprintf("请求超时(%v)", timeout))
		}
		return Fail(config.KindHTTP, storage.ReasonError,
			fmt.Sprintf("请求失败: %v", err))
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	latency := time.Since(start)
	if readErr != nil {
		if errors.Is(readErr, context.DeadlineExceeded) || ctx.Err() != nil {
			return Fail(config.KindHTTP, storage.ReasonTimeout,
				fmt.Sprintf("读取响应超时(%v)", timeout))
		}
		return Fail(config.KindHTTP, storage.ReasonInvalidResponse,
			fmt.Sprintf("读取响应失败: %v", readErr))
	}

	// 断言按配置顺序快速失败：状态码 → 延迟 → 响应体查询
	if p.params.StatusCode != 0 && resp.StatusCode != p.params.StatusCode {
		return Fail(config.KindHTTP, storage.ReasonInvalidStatus,
			fmt.Sprintf("HTTP 状态码不符: 期望 %d, 实际 %d", p.params.StatusCode, resp.StatusCode))
	}
	if p.params.MaxLatencyDuration > 0 && latency > p.params.MaxLatencyDuration {
		return Fail(config.KindHTTP, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("延迟超出阈值: %v > %v", latency.Round(time.Millisecond), p.params.MaxLatencyDuration))
	}
	if p.params.Query != nil {
		if ok, reason, msg := evaluateQuery(p.params.Query, body); !ok {
			return Fail(config.KindHTTP, reason, msg)
		}
	}

	return Succeed(config.KindHTTP, latency,
		fmt.Sprintf("HTTP %d", resp.StatusCode))
}
