package config

import "fmt"

// Validate 校验配置的结构性约束
// 探测参数本身的运行期问题（如地址不可达）不在此校验，由探测结果体现
func (c *AppConfig) Validate() error {
	names := make(map[string]bool, len(c.Monitors))
	ids := make(map[string]bool, len(c.Monitors))
	for i := range c.Monitors {
		m := &c.Monitors[i]
		if m.ID == "" {
			return fmt.Errorf("monitors[%d]: id 不能为空", i)
		}
		if ids[m.ID] {
			return fmt.Errorf("monitors[%d]: id 重复: %s", i, m.ID)
		}
		ids[m.ID] = true
		if m.Name == "" {
			return fmt.Errorf("monitors[%s]: name 不能为空", m.ID)
		}
		if names[m.Name] {
			return fmt.Errorf("monitors[%s]: name 重复: %s", m.ID, m.Name)
		}
		names[m.Name] = true
		if err := validateKindParams(m); err != nil {
			return err
		}
	}

	notifierIDs := make(map[string]bool, len(c.Notifiers))
	for i := range c.Notifiers {
		n := &c.Notifiers[i]
		if n.ID == "" {
			return fmt.Errorf("notifiers[%d]: id 不能为空", i)
		}
		if notifierIDs[n.ID] {
			return fmt.Errorf("notifiers[%d]: id 重复: %s", i, n.ID)
		}
		notifierIDs[n.ID] = true
		if err := validateNotifier(n); err != nil {
			return err
		}
	}

	// 分组引用的通知器必须存在
	for i := range c.Groups {
		g := &c.Groups[i]
		if g.Name == "" {
			return fmt.Errorf("groups[%d]: name 不能为空", i)
		}
		for _, id := range g.Notifiers {
			if !notifierIDs[id] {
				return fmt.Errorf("groups[%s]: 引用了不存在的通知器: %s", g.Name, id)
			}
		}
	}
	return nil
}

// validateKindParams 校验标签联合：有且仅有一个与 kind 匹配的参数块
func validateKindParams(m *ServiceConfig) error {
	blocks := 0
	if m.HTTP != nil {
		blocks++
	}
	if m.TCP != nil {
		blocks++
	}
	if m.DNS != nil {
		blocks++
	}
	if m.SSL != nil {
		blocks++
	}
	if m.Domain != nil {
		blocks++
	}
	if m.Ping != nil {
		blocks++
	}
	if m.MQTT != nil {
		blocks++
	}
	if blocks != 1 {
		return fmt.Errorf("monitors[%s]: 必须有且仅有一个探测参数块，当前 %d 个", m.ID, blocks)
	}

	var matched bool
	switch m.Kind {
	case KindHTTP:
		matched = m.HTTP != nil
		if matched && m.HTTP.URL == "" {
			return fmt.Errorf("monitors[%s]: http.url 不能为空", m.ID)
		}
	case KindTCP:
		matched = m.TCP != nil
		if matched && m.TCP.Address == "" {
			return fmt.Errorf("monitors[%s]: tcp.address 不能为空", m.ID)
		}
	case KindDNS:
		matched = m.DNS != nil
		if matched && m.DNS.Address == "" {
			return fmt.Errorf("monitors[%s]: dns.address 不能为空", m.ID)
		}
	case KindSSL:
		matched = m.SSL != nil
		if matched && m.SSL.Address == "" {
			return fmt.Errorf("monitors[%s]: ssl.address 不能为空", m.ID)
		}
	case KindDomain:
		matched = m.Domain != nil
		if matched && m.Domain.Address == "" {
			return fmt.Errorf("monitors[%s]: domain.address 不能为空", m.ID)
		}
	case KindPing:
		matched = m.Ping != nil
		if matched && m.Ping.Address == "" {
			return fmt.Errorf("monitors[%s]: ping.address 不能为空", m.ID)
		}
	case KindMQTT:
		matched = m.MQTT != nil
		if matched {
			if m.MQTT.Address == "" {
				return fmt.Errorf("monitors[%s]: mqtt.address 不能为空", m.ID)
			}
			if m.MQTT.Topic == "" {
				return fmt.Errorf("monitors[%s]: mqtt.topic 不能为空", m.ID)
			}
		}
	default:
		return fmt.Errorf("monitors[%s]: 未知的探测类型: %s", m.ID, m.Kind)
	}
	if !matched {
		return fmt.Errorf("monitors[%s]: 参数块与 kind=%s 不匹配", m.ID, m.Kind)
	}

	if q := queryOf(m); q != nil {
		switch q.Type {
		case "jsonpath", "xpath", "regex":
		default:
			return fmt.Errorf("monitors[%s]: 未知的查询类型: %s", m.ID, q.Type)
		}
		if q.Expression == "" {
			return fmt.Errorf("monitors[%s]: query.expression 不能为空", m.ID)
		}
	}
	return nil
}

// queryOf 提取服务配置中的响应体断言（无则返回 nil）
func queryOf(m *ServiceConfig) *QuerySpec {
	switch m.Kind {
	case KindHTTP:
		if m.HTTP != nil {
			return m.HTTP.Query
		}
	case KindMQTT:
		if m.MQTT != nil {
			return m.MQTT.Query
		}
	}
	return nil
}

// validateNotifier 校验通知器的标签联合与必填参数
func validateNotifier(n *NotifierConfig) error {
	switch n.Kind {
	case NotifierGotify:
		if n.Gotify == nil || n.Gotify.Address == "" || n.Gotify.Token == "" {
			return fmt.Errorf("notifiers[%s]: gotify 需要 address 和 token", n.ID)
		}
	case NotifierWebhook:
		if n.Webhook == nil || n.Webhook.Address == "" {
			return fmt.Errorf("notifiers[%s]: webhook 需要 address", n.ID)
		}
	case NotifierTelegram:
		if n.Telegram == nil || n.Telegram.Token == "" || n.Telegram.ChatID == 0 {
			return fmt.Errorf("notifiers[%s]: telegram 需要 token 和 chat_id", n.ID)
		}
	default:
		return fmt.Errorf("notifiers[%s]: 未知的通知渠道类型: %s", n.ID, n.Kind)
	}
	for _, s := range n.Statuses {
		if s != "up" && s != "down" {
			return fmt.Errorf("notifiers[%s]: statuses 仅支持 up/down，当前: %s", n.ID, s)
		}
	}
	return nil
}
