package probe

import (
	"regexp"
	"strings"
)

// 宽容地址解析：剥掉 scheme，截取 host[:port]
// SSL/域名/MQTT/Ping 的地址字段允许用户粘贴完整 URL
var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)

// Ping 目标的安全字符白名单（拒绝 shell 敏感字符后才会触达外部进程）
var safeHostPattern = regexp.MustCompile(`^[A-Za-z0-9.:_\-\[\]]+$`)

// stripScheme 去掉地址中的 scheme 前缀和路径部分
func stripScheme(address string) string {
	s := schemePattern.ReplaceAllString(strings.TrimSpace(address), "")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

// HostPort 解析 host[:port]，无端口时使用默认端口
func HostPort(address, defaultPort string) (host, port string) {
	s := stripScheme(address)

	// IPv6 字面量：[::1]:8080 或 [::1]
	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "]"); end >= 0 {
			host = s[1:end]
			rest := s[end+1:]
			if strings.HasPrefix(rest, ":") && len(rest) > 1 {
				return host, rest[1:]
			}
			return host, defaultPort
		}
	}

	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s[i+1:], ":") {
		if i+1 < len(s) {
			return s[:i], s[i+1:]
		}
		return s[:i], defaultPort
	}
	return s, defaultPort
}

// Hostname 只取主机名（丢弃 scheme、端口、路径）
func Hostname(address string) string {
	host, _ := HostPort(address, "")
	return host
}

// IsSafeHost 判断主机名是否只含安全字符
// 用于 ping 等会拼接到外部进程参数的目标
func IsSafeHost(host string) bool {
	return host != "" && safeHostPattern.MatchString(host)
}
