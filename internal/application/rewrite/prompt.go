package rewrite

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"smartcheck-api/internal/application/search"
)

const queryGenSystem = `You are a research assistant for a blog fact-checking service. ` +
	`You respond with a raw JSON array of strings and nothing else.`

// queryGenPrompt 查询生成提示词：标题 + 受保护内容的有界前缀
func queryGenPrompt(title, contentPrefix string, maxQueries int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate up to %d web search queries to fact-check and update the blog post below. ", maxQueries)
	b.WriteString("Focus on claims, prices, dates, product names and statistics that may have changed. ")
	b.WriteString("Return ONLY a JSON array of query strings.\n\n")
	fmt.Fprintf(&b, "Title: %s\n\n", title)
	fmt.Fprintf(&b, "Content (excerpt):\n%s\n", contentPrefix)
	return b.String()
}

const rewriteSystem = `You are an expert blog editor. You rewrite HTML content using up-to-date ` +
	`research findings while preserving the HTML structure. You output HTML only, with no commentary ` +
	`and no markdown code fences.`

// rewritePrompt 改写提示词：受保护内容 + 研究发现 + 关键词/优化指令
func rewritePrompt(title, protected, findings string, keywords []string, instructions string) string {
	var b strings.Builder
	b.WriteString("Rewrite the blog post below so every factual claim is accurate according to the research findings. ")
	b.WriteString("Keep the same HTML tags and overall structure. ")
	b.WriteString("Tokens of the form ___WIDGET_N___ are protected embeds: leave every one of them exactly where it is, byte for byte, and never duplicate or remove them.\n\n")

	if len(keywords) > 0 {
		fmt.Fprintf(&b, "Work these keywords in naturally: %s\n\n", strings.Join(keywords, ", "))
	}
	if instructions != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n\n", instructions)
	}

	fmt.Fprintf(&b, "Title: %s\n\n", title)

	if findings != "" {
		b.WriteString("Research findings:\n")
		b.WriteString(findings)
		b.WriteString("\n\n")
	}

	b.WriteString("Content to rewrite:\n")
	b.WriteString(protected)
	return b.String()
}

// buildFindings 把去重后的搜索结果按查询分组汇总成一段研究发现文本。
// 按组遍历并跳过重复 URL，与聚合器的首见保留去重口径一致。
func buildFindings(groups []search.QueryGroup) string {
	seen := make(map[string]struct{})
	var b strings.Builder

	for _, g := range groups {
		wroteHeader := false
		for _, r := range g.Results {
			if r.URL == "" {
				continue
			}
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}

			if !wroteHeader {
				fmt.Fprintf(&b, "### %s\n", g.Query)
				wroteHeader = true
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
		}
		if wroteHeader {
			b.WriteString("\n")
		}
	}

	return strings.TrimSpace(b.String())
}

// truncateByRunes 按 rune 截断字符串，避免截断多字节字符
func truncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}
