package config

import "time"

// 探测类型标签
const (
	KindHTTP   = "http"
	KindTCP    = "tcp"
	KindDNS    = "dns"
	KindSSL    = "ssl"
	KindDomain = "domain"
	KindPing   = "ping"
	KindMQTT   = "mqtt"
)

// ServiceConfig 单个监测服务配置
// 探测参数是按 kind 区分的标签联合：有且仅有一个与 kind 匹配的参数块
type ServiceConfig struct {
	ID   string `yaml:"id" json:"id"`     // 稳定标识
	Name string `yaml:"name" json:"name"` // 唯一名称

	// 是否启用：false 时不探测，状态置为 paused
	Active *bool `yaml:"active,omitempty" json:"active,omitempty"`

	// 所属分组（关联通知器，见 GroupConfig）
	Group string `yaml:"group" json:"group"`

	// 探测类型：http/tcp/dns/ssl/domain/ping/mqtt
	Kind string `yaml:"kind" json:"kind"`

	// 检查间隔（支持 Go duration 格式，例如 "30s"、"1m"，默认 "1m"）
	Interval string `yaml:"interval" json:"interval"`

	// 解析后的检查间隔（内部使用，不序列化）
	IntervalDuration time.Duration `yaml:"-" json:"-"`

	// 连续失败 N 次后判定为 down（迟滞阈值，默认 3）
	FailuresBeforeDown int `yaml:"failures_before_down" json:"failures_before_down"`

	// 连续成功 N 次后判定为 up（保留配置位，当前任一成功即恢复）
	SuccessesBeforeUp int `yaml:"successes_before_up" json:"successes_before_up"`

	// 历史保留条数上限（维护任务按此裁剪，默认 2000）
	RetainCount int `yaml:"retain_count" json:"retain_count"`

	// 按 kind 区分的探测参数（标签联合，加载时校验）
	HTTP   *HTTPParams   `yaml:"http,omitempty" json:"http,omitempty"`
	TCP    *TCPParams    `yaml:"tcp,omitempty" json:"tcp,omitempty"`
	DNS    *DNSParams    `yaml:"dns,omitempty" json:"dns,omitempty"`
	SSL    *SSLParams    `yaml:"ssl,omitempty" json:"ssl,omitempty"`
	Domain *DomainParams `yaml:"domain,omitempty" json:"domain,omitempty"`
	Ping   *PingParams   `yaml:"ping,omitempty" json:"ping,omitempty"`
	MQTT   *MQTTParams   `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`

	// 配置内容版本号（加载时按内容哈希计算，用于失效探测器缓存）
	Version uint64 `yaml:"-" json:"-"`
}

// IsActive 返回服务是否启用（默认启用）
func (s *ServiceConfig) IsActive() bool {
	if s.Active == nil {
		return true
	}
	return *s.Active
}

// MaxLatencyDuration 返回当前 kind 配置的延迟阈值（未配置返回 0）
// 探测超时 = 延迟阈值 + 宽限期，未配置时使用全局默认超时
func (s *ServiceConfig) MaxLatencyDuration() time.Duration {
	switch s.Kind {
	case KindHTTP:
		if s.HTTP != nil {
			return s.HTTP.MaxLatencyDuration
		}
	case KindTCP:
		if s.TCP != nil {
			return s.TCP.MaxLatencyDuration
		}
	case KindDNS:
		if s.DNS != nil {
			return s.DNS.MaxLatencyDuration
		}
	case KindSSL:
		if s.SSL != nil {
			return s.SSL.MaxLatencyDuration
		}
	case KindPing:
		if s.Ping != nil {
			return s.Ping.MaxLatencyDuration
		}
	}
	return 0
}

// QuerySpec 响应体断言
// 三种查询方式之一：jsonpath（JSON 路径表达式）、xpath、regex
// expected 与查询结果严格相等比较；regex 的 expected 是布尔（是否匹配，默认 "true"）
type QuerySpec struct {
	Type       string `yaml:"type" json:"type"` // jsonpath/xpath/regex
	Expression string `yaml:"expression" json:"expression"`
	Expected   string `yaml:"expected" json:"expected"`
}

// HTTPParams HTTP 探测参数
type HTTPParams struct {
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers" json:"headers"`

	// 期望的 HTTP 状态码（0 表示不校验）
	StatusCode int `yaml:"status_code" json:"status_code"`

	// 延迟上限（可选，超出判定为不满足；同时决定探测超时）
	MaxLatency         string        `yaml:"max_latency" json:"max_latency"`
	MaxLatencyDuration time.Duration `yaml:"-" json:"-"`

	// 响应体断言（可选）
	Query *QuerySpec `yaml:"query,omitempty" json:"query,omitempty"`
}

// TCPParams TCP 探测参数
type TCPParams struct {
	Address string `yaml:"address" json:"address"` // host:port

	MaxLatency         string        `yaml:"max_latency" json:"max_latency"`
	MaxLatencyDuration time.Duration `yaml:"-" json:"-"`
}

// DNSParams DNS 探测参数
type DNSParams struct {
	Address string `yaml:"address" json:"address"` // 待解析域名

	// 记录类型：A（默认）/AAAA/CNAME
	RecordType string `yaml:"record_type" json:"record_type"`

	// 指定解析服务器 host[:port]（可选，默认使用系统解析器配置）
	Resolver string `yaml:"resolver" json:"resolver"`

	// 结果条数下限（0 表示不校验）
	MinRecords int `yaml:"min_records" json:"min_records"`

	// 必须出现在结果中的值（可选）
	RequiredValues []string `yaml:"required_values" json:"required_values"`

	MaxLatency         string        `yaml:"max_latency" json:"max_latency"`
	MaxLatencyDuration time.Duration `yaml:"-" json:"-"`
}

// SSLParams SSL 证书探测参数
type SSLParams struct {
	Address string `yaml:"address" json:"address"` // host[:port]，默认端口 443

	// 期望证书链可信（默认 true；设为 false 表示期望自签等不可信链）
	ExpectTrusted *bool `yaml:"expect_trusted,omitempty" json:"expect_trusted,omitempty"`

	// 距离过期的最少天数（0 表示不校验）
	MinDaysValid int `yaml:"min_days_valid" json:"min_days_valid"`

	MaxLatency         string        `yaml:"max_latency" json:"max_latency"`
	MaxLatencyDuration time.Duration `yaml:"-" json:"-"`
}

// IsTrustExpected 返回是否期望证书链可信（默认 true）
func (p *SSLParams) IsTrustExpected() bool {
	if p.ExpectTrusted == nil {
		return true
	}
	return *p.ExpectTrusted
}

// DomainParams 域名到期（RDAP）探测参数
type DomainParams struct {
	Address string `yaml:"address" json:"address"` // 裸域名或带 scheme 的地址

	// 距离到期的最少天数（0 表示不校验）
	MinDaysValid int `yaml:"min_days_valid" json:"min_days_valid"`

	// RDAP 查询端点（可选，默认 https://rdap.org）
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// PingParams Ping 探测参数
type PingParams struct {
	Address string `yaml:"address" json:"address"` // 目标主机

	// 成功率下限百分比（0 表示不校验；丢包超过 100-此值 判定 packet_loss）
	MinSuccessPercent float64 `yaml:"min_success_percent" json:"min_success_percent"`

	MaxLatency         string        `yaml:"max_latency" json:"max_latency"`
	MaxLatencyDuration time.Duration `yaml:"-" json:"-"`
}

// MQTTParams MQTT 探测参数
type MQTTParams struct {
	Address  string `yaml:"address" json:"address"` // host[:port]，默认端口 1883
	Topic    string `yaml:"topic" json:"topic"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"` // 不返回给外部

	// 对收到的首条消息载荷做断言（与 HTTP 相同机制，可选）
	Query *QuerySpec `yaml:"query,omitempty" json:"query,omitempty"`
}
