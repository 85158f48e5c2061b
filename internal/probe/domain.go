package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"uptime/internal/config"
	"uptime/internal/storage"
)

// DomainProbe 域名到期探测
// 向 RDAP 端点查询注册信息，提取 expiration 事件日期并断言剩余天数
type DomainProbe struct {
	params  *config.DomainParams
	timeout time.Duration
	client  *http.Client
}

// NewDomainProbe 创建域名到期探测器
func NewDomainProbe(params *config.DomainParams, defaultTimeout time.Duration) *DomainProbe {
	return &DomainProbe{
		params:  params,
		timeout: defaultTimeout,
		client:  newHTTPClient(),
	}
}

// Kind 返回探测类型
func (p *DomainProbe) Kind() string { return config.KindDomain }

// Check 执行单次探测
func (p *DomainProbe) Check(ctx context.Context) *Result {
	domain := Hostname(p.params.Address)
	if domain == "" || !strings.Contains(domain, ".") {
		return Fail(config.KindDomain, storage.ReasonInvalidParams,
			fmt.Sprintf("无法从地址解析域名: %s", p.params.Address))
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutFor(0, p.timeout))
	defer cancel()

	url := strings.TrimSuffix(p.params.Endpoint, "/") + "/domain/" + domain
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Fail(config.KindDomain, storage.ReasonInvalidParams,
			fmt.Sprintf("创建 RDAP 请求失败: %v", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rdap+json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Fail(config.KindDomain, storage.ReasonTimeout, "RDAP 查询超时")
		}
		return Fail(config.KindDomain, storage.ReasonError,
			fmt.Sprintf("RDAP 查询失败: %v", err))
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	latency := time.Since(start)
	if readErr != nil {
		return Fail(config.KindDomain, storage.ReasonInvalidResponse,
			fmt.Sprintf("读取 RDAP 响应失败: %v", readErr))
	}
	if resp.StatusCode != http.StatusOK {
		return Fail(config.KindDomain, storage.ReasonInvalidResponse,
			fmt.Sprintf("RDAP 返回 HTTP %d", resp.StatusCode))
	}

	// RDAP 的到期时间在 events 数组里，eventAction == "expiration"
	expiry := gjson.GetBytes(body, `events.#(eventAction=="expiration").eventDate`)
	if !expiry.Exists() {
		return Fail(config.KindDomain, storage.ReasonInvalidResponse,
			"RDAP 响应中没有到期事件")
	}
	expiresAt, err := time.Parse(time.RFC3339, expiry.String())
	if err != nil {
		return Fail(config.KindDomain, storage.ReasonInvalidResponse,
			fmt.Sprintf("解析到期时间失败: %v", err))
	}

	now := time.Now()
	if now.After(expiresAt) {
		return Fail(config.KindDomain, storage.ReasonExpired,
			fmt.Sprintf("域名已到期: %s", expiresAt.Format("2006-01-02")))
	}
	daysLeft := int(expiresAt.Sub(now).Hours() / 24)
	if p.params.MinDaysValid > 0 && daysLeft < p.params.MinDaysValid {
		return Fail(config.KindDomain, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("域名有效期不足: 剩余 %d 天 < 要求 %d 天", daysLeft, p.params.MinDaysValid))
	}

	return Succeed(config.KindDomain, latency,
		fmt.Sprintf("域名有效，剩余 %d 天", daysLeft))
}
