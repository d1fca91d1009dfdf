// Package rewrite 实现带部件保护的多源研究改写流水线：
// 查询生成 → 并行多引擎搜索去重 → 保结构 LLM 改写 → 占位符还原。
package rewrite

import (
	"fmt"
	"regexp"
	"strings"
)

// WidgetToken 被保护的脆弱片段。索引为单次运行内从 0 递增的扫描序号，
// 生命周期恰好一次流水线运行：保护时创建，还原时逐字放回。
type WidgetToken struct {
	Index       int    `json:"index"`
	RawFragment string `json:"rawFragment"`
}

// placeholder 第 i 个部件的占位符文本
func placeholder(i int) string {
	return fmt.Sprintf("___WIDGET_%d___", i)
}

// placeholderRe 匹配任意部件占位符（用于还原后的完整性检查）
var placeholderRe = regexp.MustCompile(`___WIDGET_\d+___`)

// fragileRe 匹配结构脆弱的 HTML 片段：脚本/框架/对象嵌入、
// class 含 widget/embed 角色的容器、figure 与音视频元素。
// 这是对文本的尽力而为结构扫描，不是完整的标记解析；
// 非贪婪匹配把每个片段（含其嵌套内容）整体捕获。
// 容器类模式在前，保证内部的 script/iframe 随容器一并捕获。
var fragileRe = regexp.MustCompile(`(?is)` +
	`<div\b[^>]*class\s*=\s*["'][^"']*(?:widget|embed)[^"']*["'][^>]*>.*?</div>` +
	`|<figure\b[^>]*>.*?</figure>` +
	`|<script\b[^>]*>.*?</script>` +
	`|<iframe\b[^>]*>.*?</iframe>` +
	`|<iframe\b[^>]*/\s*>` +
	`|<object\b[^>]*>.*?</object>` +
	`|<video\b[^>]*>.*?</video>` +
	`|<audio\b[^>]*>.*?</audio>` +
	`|<embed\b[^>]*/?>`)

// Protect 扫描 html 中的脆弱片段，按出现顺序（从左到右）替换为
// ___WIDGET_<i>___ 占位符，i 为 0 起严格递增的扫描序号。
// 原始片段文本非破坏性地存入返回的 widgets 列表，列表建成后不再变更。
func Protect(html string) (string, []WidgetToken) {
	var widgets []WidgetToken
	sanitized := fragileRe.ReplaceAllStringFunc(html, func(frag string) string {
		idx := len(widgets)
		widgets = append(widgets, WidgetToken{Index: idx, RawFragment: frag})
		return placeholder(idx)
	})
	return sanitized, widgets
}

// Restore 按索引顺序把每个占位符的第一处文本出现替换回原始片段。
// 协议只在每个占位符至少逐字出现一次时保证正确还原；外部改写服务
// 丢弃或复制占位符属于本层可检测但不可恢复的完整性失败，
// 由完整性检查负责告警。
func Restore(html string, widgets []WidgetToken) string {
	for _, w := range widgets {
		html = strings.Replace(html, placeholder(w.Index), w.RawFragment, 1)
	}
	return html
}

// missingPlaceholders 返回改写输出中缺失占位符的部件索引
func missingPlaceholders(html string, widgets []WidgetToken) []int {
	var missing []int
	for _, w := range widgets {
		if !strings.Contains(html, placeholder(w.Index)) {
			missing = append(missing, w.Index)
		}
	}
	return missing
}

// leftoverPlaceholders 还原后残留的占位符数量（改写服务复制占位符时出现）
func leftoverPlaceholders(html string) int {
	return len(placeholderRe.FindAllString(html, -1))
}
