package rewrite

import (
	"encoding/json"
	"strings"
)

// StripCodeFences 去掉模型输出首尾的 ``` 围栏标记（含语言标注）
func StripCodeFences(s string) string {
	raw := strings.TrimSpace(s)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}

	raw = strings.TrimPrefix(raw, "```")
	// 去掉围栏后的语言标注行（如 json / html）
	if nl := strings.IndexByte(raw, '\n'); nl >= 0 {
		first := strings.TrimSpace(raw[:nl])
		if len(first) <= 16 && !strings.ContainsAny(first, "<[{") {
			raw = raw[nl+1:]
		}
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}

// ParseQueries 从模型输出中容错提取查询字符串数组。
// 两段式解析：清理围栏后先严格 JSON 解析；失败则截取第一个
// 中括号界定的子串再解析。两者都失败时返回空列表而不是报错——
// 流水线可以携带零研究上下文继续。
func ParseQueries(raw string, max int) []string {
	cleaned := StripCodeFences(raw)
	if cleaned == "" {
		return nil
	}

	if queries := tryParseArray(cleaned); queries != nil {
		return capQueries(queries, max)
	}

	// 模型输出可能夹杂多余文本，截取第一个数组子串兜底
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start >= 0 && end > start {
		if queries := tryParseArray(cleaned[start : end+1]); queries != nil {
			return capQueries(queries, max)
		}
	}

	return nil
}

// tryParseArray 宽松解析 JSON 数组，仅保留非空字符串元素
func tryParseArray(s string) []string {
	var items []any
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil
	}

	queries := make([]string, 0, len(items))
	for _, it := range items {
		if q, ok := it.(string); ok {
			q = strings.TrimSpace(q)
			if q != "" {
				queries = append(queries, q)
			}
		}
	}
	return queries
}

func capQueries(queries []string, max int) []string {
	if max > 0 && len(queries) > max {
		return queries[:max]
	}
	return queries
}
