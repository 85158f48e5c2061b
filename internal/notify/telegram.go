package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"uptime/internal/config"
)

// TelegramNotifier Telegram Bot 推送通知器
type TelegramNotifier struct {
	cfg    *config.NotifierConfig
	client *http.Client
}

// NewTelegramNotifier 创建 Telegram 通知器
func NewTelegramNotifier(cfg *config.NotifierConfig) *TelegramNotifier {
	return &TelegramNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name 返回通知器名称
func (n *TelegramNotifier) Name() string { return n.cfg.Name }

// sendMessageRequest Telegram sendMessage 请求体
type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// telegramResponse Telegram API 响应
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
}

// Send 投递通知
func (n *TelegramNotifier) Send(ctx context.Context, ev *Event) error {
	if !statusAllowed(n.cfg.Statuses, ev.Status) {
		return nil
	}

	text := title(ev)
	if ev.Message != "" {
		text += "\n" + ev.Message
	}
	payload, err := json.Marshal(sendMessageRequest{
		ChatID: n.cfg.Telegram.ChatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	url := "https://api.telegram.org/bot" + n.cfg.Telegram.Token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("投递失败: %w", err)
	}
	defer resp.Body.Close()

	var apiResp telegramResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if !apiResp.OK {
		return fmt.Errorf("Telegram 返回错误(%d): %s", apiResp.ErrorCode, apiResp.Description)
	}
	return nil
}
