package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"uptime/internal/config"
)

// GotifyNotifier Gotify 推送通知器
type GotifyNotifier struct {
	cfg    *config.NotifierConfig
	client *http.Client
}

// NewGotifyNotifier 创建 Gotify 通知器
func NewGotifyNotifier(cfg *config.NotifierConfig) *GotifyNotifier {
	return &GotifyNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name 返回通知器名称
func (n *GotifyNotifier) Name() string { return n.cfg.Name }

// gotifyMessage Gotify 消息体
// priority 缺省时不携带，由服务端取默认值
type gotifyMessage struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority *int   `json:"priority,omitempty"`
}

// Send 投递通知
func (n *GotifyNotifier) Send(ctx context.Context, ev *Event) error {
	if !statusAllowed(n.cfg.Statuses, ev.Status) {
		return nil
	}

	msg := gotifyMessage{
		Title:   title(ev),
		Message: ev.Message,
	}
	// 按状态查找优先级，未配置则省略
	if p, ok := n.cfg.Gotify.Priorities[string(ev.Status)]; ok {
		msg.Priority = &p
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	url := strings.TrimSuffix(n.cfg.Gotify.Address, "/") + "/message"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gotify-Key", n.cfg.Gotify.Token)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("投递失败: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Gotify 返回 HTTP %d", resp.StatusCode)
	}
	return nil
}
