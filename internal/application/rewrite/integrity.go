package rewrite

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// IntegrityWarning 改写后内容的完整性告警。可检测但不可恢复：
// 默认只记录与计数，不据此拒绝结果（可配置回退策略除外）。
type IntegrityWarning struct {
	Kind   string // tag_drift / widget_lost / output_short
	Detail string
}

// integrityPolicy 完整性检查参数
type integrityPolicy struct {
	// driftRatio 标签数允许的相对漂移阈值
	driftRatio float64
	// shortRatio 输出长度低于输入的该比例时视为可疑
	shortRatio float64
}

// checkIntegrity 对比原始内容与还原后的内容。
// restoredMissing 为改写输出中缺失占位符的部件索引。
func checkIntegrity(original, restored string, missing []int, pol integrityPolicy) []IntegrityWarning {
	var warnings []IntegrityWarning

	if len(missing) > 0 {
		warnings = append(warnings, IntegrityWarning{
			Kind:   "widget_lost",
			Detail: "rewrite output dropped protected widget placeholders",
		})
	}
	if leftoverPlaceholders(restored) > 0 {
		warnings = append(warnings, IntegrityWarning{
			Kind:   "widget_lost",
			Detail: "rewrite output duplicated protected widget placeholders",
		})
	}

	inTags := countTags(original)
	outTags := countTags(restored)
	if inTags > 0 && outTags >= 0 {
		drift := float64(outTags-inTags) / float64(inTags)
		if drift < 0 {
			drift = -drift
		}
		if drift > pol.driftRatio {
			warnings = append(warnings, IntegrityWarning{
				Kind:   "tag_drift",
				Detail: "element count diverged beyond configured ratio",
			})
		}
	}

	if pol.shortRatio > 0 && len(original) > 0 &&
		float64(len(restored)) < pol.shortRatio*float64(len(original)) {
		warnings = append(warnings, IntegrityWarning{
			Kind:   "output_short",
			Detail: "rewrite output implausibly short relative to input",
		})
	}

	return warnings
}

// countTags 统计 HTML 文本中的元素节点数。这里允许重解析/重序列化，
// 因为只计数、不回写内容。解析失败返回 -1，调用方跳过该项检查。
func countTags(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return -1
	}
	return doc.Find("body *").Length()
}

// hasDriftWarning 是否存在触发回退策略的结构漂移告警
func hasDriftWarning(warnings []IntegrityWarning) bool {
	for _, w := range warnings {
		if w.Kind == "tag_drift" || w.Kind == "output_short" {
			return true
		}
	}
	return false
}
