package probe

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/tidwall/gjson"

	"uptime/internal/config"
	"uptime/internal/storage"
)

// evaluateQuery 对响应体执行断言
// 返回值：(是否满足, 失败原因码, 说明)
// 查询结果与 expected 严格相等比较；regex 的 expected 是布尔（是否匹配，默认 true）
func evaluateQuery(q *config.QuerySpec, body []byte) (bool, storage.ReasonCode, string) {
	switch q.Type {
	case "jsonpath":
		return evaluateJSONPath(q, body)
	case "xpath":
		return evaluateXPath(q, body)
	case "regex":
		return evaluateRegex(q, body)
	default:
		return false, storage.ReasonInvalidParams, fmt.Sprintf("未知的查询类型: %s", q.Type)
	}
}

// evaluateJSONPath 按 JSON 路径表达式取值并与 expected 比较
func evaluateJSONPath(q *config.QuerySpec, body []byte) (bool, storage.ReasonCode, string) {
	if !gjson.ValidBytes(body) {
		return false, storage.ReasonInvalidResponse, "响应体不是合法 JSON"
	}
	value := gjson.GetBytes(body, q.Expression)
	if !value.Exists() {
		return false, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("JSON 路径无匹配: %s", q.Expression)
	}
	got := value.String()
	if got != q.Expected {
		return false, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("JSON 查询结果不符: 期望 %q, 实际 %q", q.Expected, got)
	}
	return true, storage.ReasonNone, ""
}

// evaluateXPath 按 XPath 取节点文本并与 expected 比较
func evaluateXPath(q *config.QuerySpec, body []byte) (bool, storage.ReasonCode, string) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return false, storage.ReasonInvalidResponse, fmt.Sprintf("解析 XML 失败: %v", err)
	}
	node, err := xmlquery.Query(doc, q.Expression)
	if err != nil {
		return false, storage.ReasonInvalidParams, fmt.Sprintf("XPath 表达式不合法: %v", err)
	}
	if node == nil {
		return false, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("XPath 无匹配: %s", q.Expression)
	}
	got := strings.TrimSpace(node.InnerText())
	if got != q.Expected {
		return false, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("XPath 查询结果不符: 期望 %q, 实际 %q", q.Expected, got)
	}
	return true, storage.ReasonNone, ""
}

// evaluateRegex 正则匹配，expected 为布尔字符串（缺省 true）
func evaluateRegex(q *config.QuerySpec, body []byte) (bool, storage.ReasonCode, string) {
	re, err := regexp.Compile(q.Expression)
	if err != nil {
		return false, storage.ReasonInvalidParams, fmt.Sprintf("正则表达式不合法: %v", err)
	}
	expected := true
	if q.Expected != "" {
		parsed, err := strconv.ParseBool(q.Expected)
		if err != nil {
			return false, storage.ReasonInvalidParams,
				fmt.Sprintf("regex 的 expected 必须是布尔值: %q", q.Expected)
		}
		expected = parsed
	}
	matched := re.Match(body)
	if matched != expected {
		return false, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("正则匹配结果不符: 期望 %v, 实际 %v", expected, matched)
	}
	return true, storage.ReasonNone, ""
}
