// Package cleaner strips LLM response boilerplate from generated
// evidence text: conversational preambles, self-review narration,
// test markers and markdown syntax. Cleaning is idempotent.
package cleaner

import (
	"regexp"
	"strings"
)

// Removed records one span the cleaner dropped, for diagnostics.
type Removed struct {
	Category string
	Text     string
}

var (
	// Conversational openers the model prepends despite instructions.
	// The 以下是/下面是/这是 forms must end with a colon: a lead-in
	// announces content, a body sentence ends with 。 and stays.
	preambleRe = regexp.MustCompile(`^(?:好的[，,]?[^\n]*|当然[，,]?[^\n]*|作为(?:一名|一个)?专业?的?[^，。\n]{0,20}(?:助手|律师|顾问)[，,][^\n]*|(?:以下是|下面是|这是)[^\n]{0,30}[：:])$`)
	// Self-review narration blocks the model appends after the content.
	qcHeaderRe = regexp.MustCompile(`^(?:【?质量(?:自检|检查)(?:报告)?】?|自检(?:结果|报告)|以上(?:内容|文本)[^\n]*(?:检查|核对|符合)|请注意[：:])`)
	testMarker = regexp.MustCompile(`(?:\[TEST\]|__TEST__|（测试）|【测试】)`)

	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	underBoldRe  = regexp.MustCompile(`__([^_]+)__`)
	strikeRe     = regexp.MustCompile(`~~([^~]+)~~`)
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	headingRe    = regexp.MustCompile(`(?m)^[ \t]*#+[ \t]+`)
	quoteRe      = regexp.MustCompile(`(?m)^>[ \t]+`)
	hruleRe      = regexp.MustCompile(`(?m)^[-*_]{3,}[ \t]*$`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	imageRe      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	fenceRe      = regexp.MustCompile("(?m)^```[a-zA-Z0-9]*[ \t]*$")
	htmlTagRe    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	tableSepRe   = regexp.MustCompile(`^\s*\|?[\s:|-]+\|[\s:|-]*$`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)

	sectionAfterRe  = regexp.MustCompile(`(【[^】\n]+】)([^\n])`)
	sectionBeforeRe = regexp.MustCompile(`([^\n])(【)`)
)

// fieldLabels are the filing-document field captions that must start a
// line; the model tends to run them together into one paragraph.
// Longest first so 统一社会信用代码： wins over 代码：.
var fieldLabels = []string{
	"统一社会信用代码：",
	"法定代表人：",
	"合同编号：",
	"签订日期：",
	"登记时间：",
	"文书名称：",
	"正文内容：",
	"权利类型：",
	"收/付款人：",
	"权利人：",
	"义务人：",
	"凭证号：",
	"地址：",
	"电话：",
	"金额：",
	"日期：",
	"摘要：",
	"签署：",
	"致：",
}

// Clean normalizes raw LLM output into plain filing text. It returns
// the cleaned text and the spans that were removed.
func Clean(text string) (string, []Removed) {
	var removed []Removed

	// Self-review blocks go first: removing one can expose a new head
	// line, which must be judged as a preamble in this same pass or the
	// cleaner stops being a fixed point.
	text, r := dropSelfReview(text)
	removed = append(removed, r...)
	text, r = dropPreamble(text)
	removed = append(removed, r...)

	for _, m := range testMarker.FindAllString(text, -1) {
		removed = append(removed, Removed{Category: "test_marker", Text: m})
	}
	text = testMarker.ReplaceAllString(text, "")

	text = stripMarkdown(text)
	text, r = flattenTables(text)
	removed = append(removed, r...)
	text = ensureLineBreaks(text)

	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), removed
}

func dropPreamble(text string) (string, []Removed) {
	lines := strings.Split(text, "\n")
	var removed []Removed
	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			i++
			continue
		}
		if preambleRe.MatchString(trimmed) {
			removed = append(removed, Removed{Category: "preamble", Text: trimmed})
			i++
			continue
		}
		break
	}
	return strings.Join(lines[i:], "\n"), removed
}

// dropSelfReview removes quality-narration blocks: a header line plus
// everything up to the next blank line.
func dropSelfReview(text string) (string, []Removed) {
	lines := strings.Split(text, "\n")
	var out []string
	var removed []Removed
	skipping := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if skipping {
			if trimmed == "" {
				skipping = false
			} else {
				removed = append(removed, Removed{Category: "self_review", Text: trimmed})
			}
			continue
		}
		if qcHeaderRe.MatchString(trimmed) {
			removed = append(removed, Removed{Category: "self_review", Text: trimmed})
			skipping = true
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n"), removed
}

func stripMarkdown(text string) string {
	text = fenceRe.ReplaceAllString(text, "")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1")
	text = underBoldRe.ReplaceAllString(text, "$1")
	text = strikeRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	text = quoteRe.ReplaceAllString(text, "")
	text = hruleRe.ReplaceAllString(text, "")
	text = imageRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = htmlTagRe.ReplaceAllString(text, "")
	return text
}

// flattenTables converts pipe-delimited markdown rows into plain
// " / "-joined lines. Separator rows are dropped.
func flattenTables(text string) (string, []Removed) {
	lines := strings.Split(text, "\n")
	var out []string
	var removed []Removed
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.Contains(trimmed, "|") || !(strings.HasPrefix(trimmed, "|") || strings.HasSuffix(trimmed, "|")) {
			out = append(out, line)
			continue
		}
		if tableSepRe.MatchString(trimmed) {
			removed = append(removed, Removed{Category: "table_markup", Text: trimmed})
			continue
		}
		cells := strings.Split(strings.Trim(trimmed, "|"), "|")
		parts := make([]string, 0, len(cells))
		for _, c := range cells {
			c = strings.TrimSpace(c)
			if c != "" {
				parts = append(parts, c)
			}
		}
		removed = append(removed, Removed{Category: "table_markup", Text: trimmed})
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, " / "))
		}
	}
	return strings.Join(out, "\n"), removed
}

// ensureLineBreaks reinstates the line structure of filing documents:
// 【节标题】 on its own line, each known field caption starting a line.
func ensureLineBreaks(text string) string {
	text = sectionAfterRe.ReplaceAllString(text, "$1\n$2")
	text = sectionBeforeRe.ReplaceAllString(text, "$1\n$2")
	for _, label := range fieldLabels {
		text = breakBeforeLabel(text, label)
	}
	return text
}

func breakBeforeLabel(text, label string) string {
	var b strings.Builder
	off := 0
	for {
		i := strings.Index(text[off:], label)
		if i < 0 {
			b.WriteString(text[off:])
			return b.String()
		}
		i += off
		b.WriteString(text[off:i])
		if i > 0 && text[i-1] != '\n' && !partOfLongerLabel(text, i, label) {
			b.WriteByte('\n')
		}
		b.WriteString(label)
		off = i + len(label)
	}
}

// partOfLongerLabel reports whether the label occurrence at pos is the
// tail of a longer known label (日期： inside 签订日期：), in which case
// no break must be inserted.
func partOfLongerLabel(text string, pos int, label string) bool {
	for _, longer := range fieldLabels {
		if longer == label || !strings.HasSuffix(longer, label) {
			continue
		}
		head := len(longer) - len(label)
		if pos >= head && text[pos-head:pos+len(label)] == longer {
			return true
		}
	}
	return false
}
