package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	"uptime/internal/config"
	"uptime/internal/storage"
)

// SSLProbe SSL 证书探测
// 握手时不强制校验证书（InsecureSkipVerify），握手后自行检查
// 有效期窗口与信任链，这样过期/自签证书也能得到明确的原因码
type SSLProbe struct {
	params  *config.SSLParams
	timeout time.Duration
}

// NewSSLProbe 创建 SSL 探测器
func NewSSLProbe(params *config.SSLParams, defaultTimeout time.Duration) *SSLProbe {
	return &SSLProbe{params: params, timeout: defaultTimeout}
}

// Kind 返回探测类型
func (p *SSLProbe) Kind() string { return config.KindSSL }

// Check 执行单次探测
func (p *SSLProbe) Check(ctx context.Context) *Result {
	host, port := HostPort(p.params.Address, "443")
	if host == "" {
		return Fail(config.KindSSL, storage.ReasonInvalidParams,
			fmt.Sprintf("无法从地址解析主机名: %s", p.params.Address))
	}

	timeout := timeoutFor(p.params.MaxLatencyDuration, p.timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true, // 握手后自行校验，见下
		},
	}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	latency := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Fail(config.KindSSL, storage.ReasonTimeout,
				fmt.Sprintf("握手超时(%v)", timeout))
		}
		return Fail(config.KindSSL, storage.ReasonError,
			fmt.Sprintf("TLS 握手失败: %v", err))
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return Fail(config.KindSSL, storage.ReasonError, "连接不是 TLS 连接")
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return Fail(config.KindSSL, storage.ReasonInvalidResponse, "对端未提供证书")
	}
	cert := certs[0]
	now := time.Now()

	// 有效期窗口
	if now.Before(cert.NotBefore) {
		return Fail(config.KindSSL, storage.ReasonInvalidResponse,
			fmt.Sprintf("证书尚未生效: NotBefore=%s", cert.NotBefore.Format(time.RFC3339)))
	}
	if now.After(cert.NotAfter) {
		return Fail(config.KindSSL, storage.ReasonExpired,
			fmt.Sprintf("证书已过期: NotAfter=%s", cert.NotAfter.Format(time.RFC3339)))
	}

	// 信任链校验结果与期望比较
	trusted := verifyChain(host, certs)
	if p.params.IsTrustExpected() != trusted {
		return Fail(config.KindSSL, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("信任链不符: 期望可信=%v, 实际可信=%v", p.params.IsTrustExpected(), trusted))
	}

	// 距离过期天数
	daysLeft := int(cert.NotAfter.Sub(now).Hours() / 24)
	if p.params.MinDaysValid > 0 && daysLeft < p.params.MinDaysValid {
		return Fail(config.KindSSL, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("证书有效期不足: 剩余 %d 天 < 要求 %d 天", daysLeft, p.params.MinDaysValid))
	}

	if p.params.MaxLatencyDuration > 0 && latency > p.params.MaxLatencyDuration {
		return Fail(config.KindSSL, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("延迟超出阈值: %v > %v", latency.Round(time.Millisecond), p.params.MaxLatencyDuration))
	}

	return Succeed(config.KindSSL, latency,
		fmt.Sprintf("证书有效，剩余 %d 天", daysLeft))
}

// verifyChain 用系统根证书校验对端证书链
func verifyChain(host string, certs []*x509.Certificate) bool {
	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}
	_, err := certs[0].Verify(x509.VerifyOptions{
		DNSName:       host,
		Intermediates: intermediates,
	})
	return err == nil
}
