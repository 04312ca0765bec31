package llm

import "time"

// 供应商工厂从 map[string]any 读取配置，以下辅助函数在键缺失、类型不符
// 或为零值时返回默认值。

// ConfigString 读取字符串配置。
func ConfigString(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

// ConfigInt 读取正整数配置。
func ConfigInt(m map[string]any, key string, def int) int {
	if v, ok := m[key].(int); ok && v > 0 {
		return v
	}
	return def
}

// ConfigFloat 读取非负浮点配置，0 是合法值（例如 temperature）。
func ConfigFloat(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		if v >= 0 {
			return v
		}
	case float32:
		if v >= 0 {
			return float64(v)
		}
	}
	return def
}

// ConfigDuration 读取正时长配置。
func ConfigDuration(m map[string]any, key string, def time.Duration) time.Duration {
	if v, ok := m[key].(time.Duration); ok && v > 0 {
		return v
	}
	return def
}

// ConfigBool 读取布尔配置。
func ConfigBool(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

// PromptMessages 把单轮提示组装为对话消息，systemPrompt 为空时省略系统消息。
func PromptMessages(prompt, systemPrompt string) []Message {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return append(messages, Message{Role: RoleUser, Content: prompt})
}
