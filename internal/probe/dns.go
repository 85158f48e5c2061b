package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"

	"uptime/internal/config"
	"uptime/internal/storage"
)

// DNSProbe DNS 探测：向指定（或系统默认）解析器查询记录并断言结果
type DNSProbe struct {
	params  *config.DNSParams
	timeout time.Duration
}

// NewDNSProbe 创建 DNS 探测器
func NewDNSProbe(params *config.DNSParams, defaultTimeout time.Duration) *DNSProbe {
	return &DNSProbe{params: params, timeout: defaultTimeout}
}

// Kind 返回探测类型
func (p *DNSProbe) Kind() string { return config.KindDNS }

// recordType 将配置的记录类型映射到 DNS 查询类型
func recordType(name string) (uint16, bool) {
	switch strings.ToUpper(name) {
	case "A":
		return dns.TypeA, true
	case "AAAA":
		return dns.TypeAAAA, true
	case "CNAME":
		return dns.TypeCNAME, true
	}
	return 0, false
}

// resolverAddr 确定解析服务器地址
// 优先使用配置值，否则读系统 resolv.conf，最后兜底公共 DNS
func (p *DNSProbe) resolverAddr() string {
	if p.params.Resolver != "" {
		host, port := HostPort(p.params.Resolver, "53")
		return net.JoinHostPort(host, port)
	}
	if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
		return net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	return "8.8.8.8:53"
}

// Check 执行单次探测
func (p *DNSProbe) Check(ctx context.Context) *Result {
	qtype, ok := recordType(p.params.RecordType)
	if !ok {
		return Fail(config.KindDNS, storage.ReasonInvalidParams,
			fmt.Sprintf("不支持的记录类型: %s", p.params.RecordType))
	}
	name := Hostname(p.params.Address)
	if name == "" {
		return Fail(config.KindDNS, storage.ReasonInvalidParams, "待解析域名不能为空")
	}

	timeout := timeoutFor(p.params.MaxLatencyDuration, p.timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &dns.Client{Timeout: timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	start := time.Now()
	reply, _, err := client.ExchangeContext(ctx, msg, p.resolverAddr())
	latency := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || ctx.Err() != nil {
			return Fail(config.KindDNS, storage.ReasonTimeout,
				fmt.Sprintf("解析超时(%v)", timeout))
		}
		return Fail(config.KindDNS, storage.ReasonError,
			fmt.Sprintf("解析失败: %v", err))
	}
	if reply.Rcode != dns.RcodeSuccess {
		return Fail(config.KindDNS, storage.ReasonInvalidResponse,
			fmt.Sprintf("解析返回错误码: %s", dns.RcodeToString[reply.Rcode]))
	}

	values := answerValues(reply, qtype)

	// 断言：结果条数 → 必须值 → 延迟
	if p.params.MinRecords > 0 && len(values) < p.params.MinRecords {
		return Fail(config.KindDNS, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("结果条数不足: 期望至少 %d, 实际 %d", p.params.MinRecords, len(values)))
	}
	for _, required := range p.params.RequiredValues {
		if !containsValue(values, required) {
			return Fail(config.KindDNS, storage.ReasonQueryNotSatisfied,
				fmt.Sprintf("结果缺少必须值: %s", required))
		}
	}
	if p.params.MaxLatencyDuration > 0 && latency > p.params.MaxLatencyDuration {
		return Fail(config.KindDNS, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("延迟超出阈值: %v > %v", latency.Round(time.Millisecond), p.params.MaxLatencyDuration))
	}

	return Succeed(config.KindDNS, latency,
		fmt.Sprintf("解析到 %d 条记录", len(values)))
}

// answerValues 从应答中提取与查询类型匹配的记录值
func answerValues(reply *dns.Msg, qtype uint16) []string {
	var values []string
	for _, rr := range reply.Answer {
		switch record := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				values = append(values, record.A.String())
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				values = append(values, record.AAAA.String())
			}
		case *dns.CNAME:
			if qtype == dns.TypeCNAME {
				values = append(values, strings.TrimSuffix(record.Target, "."))
			}
		}
	}
	return values
}

// containsValue 忽略大小写和结尾点的值比较
func containsValue(values []string, target string) bool {
	normalized := strings.ToLower(strings.TrimSuffix(target, "."))
	for _, v := range values {
		if strings.ToLower(strings.TrimSuffix(v, ".")) == normalized {
			return true
		}
	}
	return false
}
