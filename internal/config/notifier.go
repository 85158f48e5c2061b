package config

// 通知渠道类型标签
const (
	NotifierGotify   = "gotify"
	NotifierWebhook  = "webhook"
	NotifierTelegram = "telegram"
)

// NotifierConfig 单个通知器配置
// 参数同样是按 kind 区分的标签联合
type NotifierConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	// 是否启用：false 时注册表不实例化
	Active *bool `yaml:"active,omitempty" json:"active,omitempty"`

	// 通知渠道类型：gotify/webhook/telegram
	Kind string `yaml:"kind" json:"kind"`

	// 状态过滤：仅列出的状态会触达该通知器（空表示不过滤）
	// 可选值：up/down
	Statuses []string `yaml:"statuses" json:"statuses"`

	Gotify   *GotifyParams   `yaml:"gotify,omitempty" json:"gotify,omitempty"`
	Webhook  *WebhookParams  `yaml:"webhook,omitempty" json:"webhook,omitempty"`
	Telegram *TelegramParams `yaml:"telegram,omitempty" json:"telegram,omitempty"`

	// 配置内容版本号（加载时按内容哈希计算，用于失效通知器缓存）
	Version uint64 `yaml:"-" json:"-"`
}

// IsActive 返回通知器是否启用（默认启用）
func (n *NotifierConfig) IsActive() bool {
	if n.Active == nil {
		return true
	}
	return *n.Active
}

// GotifyParams Gotify 推送参数
type GotifyParams struct {
	Address string `yaml:"address" json:"address"` // Gotify 服务地址
	Token   string `yaml:"token" json:"-"`         // 应用 API Key，不返回给外部

	// 按状态查找的消息优先级（键为 up/down；缺省时不携带 priority 字段，由服务端取默认值）
	Priorities map[string]int `yaml:"priorities" json:"priorities"`
}

// WebhookParams Webhook 推送参数
type WebhookParams struct {
	Address string            `yaml:"address" json:"address"` // 目标基础地址，实际 POST 到 {address}/message
	Headers map[string]string `yaml:"headers" json:"headers"` // 自定义请求头
}

// TelegramParams Telegram Bot 推送参数
type TelegramParams struct {
	Token  string `yaml:"token" json:"-"` // Bot Token，不返回给外部
	ChatID int64  `yaml:"chat_id" json:"chat_id"`
}
