// Package generator 提供配置模板生成
// 每个模板是一份可直接运行的最小配置，凭据位用 ${VAR} 占位，
// 由加载器在读取时展开环境变量
package generator

import (
	"fmt"
	"sort"
)

// TemplateRegistry 模板注册表
type TemplateRegistry struct {
	templates map[string]string
}

// NewTemplateRegistry 创建新的模板注册表
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		templates: map[string]string{
			"http":   httpTemplate,
			"tcp":    tcpTemplate,
			"dns":    dnsTemplate,
			"ssl":    sslTemplate,
			"domain": domainTemplate,
			"ping":   pingTemplate,
			"mqtt":   mqttTemplate,
			"full":   fullTemplate,
		},
	}
}

// GetTemplate 获取模板
func (tr *TemplateRegistry) GetTemplate(name string) (string, error) {
	template, ok := tr.templates[name]
	if !ok {
		return "", fmt.Errorf("未知的模板: %s", name)
	}
	return template, nil
}

// ListTemplates 列出所有可用模板
func (tr *TemplateRegistry) ListTemplates() []string {
	var names []string
	for name := range tr.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const httpTemplate = `# HTTP 监测配置
poll_interval: "30s"
poll_concurrency: 4
probe_timeout: "10s"

storage:
  type: "sqlite"
  path: "data/uptime.db"

monitors:
  - id: "api-health"
    name: "API 健康检查"
    kind: "http"
    interval: "1m"
    failures_before_down: 3
    http:
      url: "https://api.example.com/health"
      status_code: 200
      max_latency: "2s"
      query:
        type: "jsonpath"
        expression: "status"
        expected: "ok"
`

const tcpTemplate = `# TCP 端口监测配置
poll_interval: "30s"

storage:
  type: "sqlite"
  path: "data/uptime.db"

monitors:
  - id: "redis-port"
    name: "Redis 端口"
    kind: "tcp"
    interval: "30s"
    tcp:
      address: "cache.example.com:6379"
      max_latency: "500ms"
`

const dnsTemplate = `# DNS 解析监测配置
poll_interval: "1m"

storage:
  type: "sqlite"
  path: "data/uptime.db"

monitors:
  - id: "dns-a"
    name: "主域名 A 记录"
    kind: "dns"
    interval: "5m"
    dns:
      address: "example.com"
      record_type: "A"
      resolver: "8.8.8.8:53"
      min_records: 1
      required_values:
        - "93.184.216.34"
`

const sslTemplate = `# SSL 证书监测配置
poll_interval: "1m"

storage:
  type: "sqlite"
  path: "data/uptime.db"

monitors:
  - id: "ssl-cert"
    name: "站点证书"
    kind: "ssl"
    interval: "6h"
    ssl:
      address: "example.com:443"
      min_days_valid: 14
`

const domainTemplate = `# 域名到期监测配置
poll_interval: "1m"

storage:
  type: "sqlite"
  path: "data/uptime.db"

monitors:
  - id: "domain-expiry"
    name: "主域名到期"
    kind: "domain"
    interval: "24h"
    domain:
      address: "example.com"
      min_days_valid: 30
`

const pingTemplate = `# Ping 监测配置
poll_interval: "30s"

storage:
  type: "sqlite"
  path: "data/uptime.db"

monitors:
  - id: "gateway-ping"
    name: "网关连通性"
    kind: "ping"
    interval: "1m"
    ping:
      address: "10.0.0.1"
      min_success_percent: 80
      max_latency: "100ms"
`

const mqttTemplate = `# MQTT 监测配置
poll_interval: "1m"

storage:
  type: "sqlite"
  path: "data/uptime.db"

monitors:
  - id: "mqtt-broker"
    name: "MQTT Broker"
    kind: "mqtt"
    interval: "2m"
    mqtt:
      address: "broker.example.com:1883"
      topic: "heartbeat/#"
      username: "monitor"
      password: "${MQTT_PASSWORD}"
      query:
        type: "jsonpath"
        expression: "alive"
        expected: "true"
`

const fullTemplate = `# 完整示例：多服务 + 分组通知
poll_interval: "30s"
poll_concurrency: 4
probe_timeout: "10s"
history_summary_size: 10
maintenance_frequency: "24h"
monitoring_enabled: true

storage:
  type: "sqlite"
  path: "data/uptime.db"

monitors:
  - id: "web"
    name: "官网"
    group: "production"
    kind: "http"
    interval: "1m"
    failures_before_down: 3
    retain_count: 5000
    http:
      url: "https://www.example.com/"
      status_code: 200
      max_latency: "3s"

  - id: "db-port"
    name: "数据库端口"
    group: "production"
    kind: "tcp"
    interval: "30s"
    tcp:
      address: "db.example.com:5432"

  - id: "cert"
    name: "官网证书"
    group: "production"
    kind: "ssl"
    interval: "12h"
    ssl:
      address: "www.example.com"
      min_days_valid: 14

notifiers:
  - id: "gotify-main"
    name: "Gotify 推送"
    kind: "gotify"
    statuses: ["up", "down"]
    gotify:
      address: "https://gotify.example.com"
      token: "${GOTIFY_TOKEN}"
      priorities:
        up: 4
        down: 8

  - id: "oncall-webhook"
    name: "值班 Webhook"
    kind: "webhook"
    statuses: ["down"]
    webhook:
      address: "https://hooks.example.com/uptime"
      headers:
        Authorization: "Bearer ${WEBHOOK_TOKEN}"

groups:
  - name: "production"
    notifiers: ["gotify-main", "oncall-webhook"]
`
