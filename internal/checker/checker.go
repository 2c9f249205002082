// Package checker detects residual anonymization tokens and template
// placeholders in generated evidence text. Rules are data-driven
// (category + regex) so new leakage patterns can be added in a rule
// file without code changes.
package checker

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

type Rule struct {
	Category string `yaml:"category"`
	Pattern  string `yaml:"pattern"`
	Note     string `yaml:"note,omitempty"`
}

type compiledRule struct {
	category string
	re       *regexp.Regexp
}

type Checker struct {
	rules []compiledRule
}

// DefaultRules is the built-in rule set. Patterns are anchored so that
// legitimate text sharing a substring with a masking token does not
// trip the checker: the entity rule requires 某某 plus an entity suffix
// or trailing digits, and ASCII markers carry word boundaries. The
// bare 某+character pattern is deliberately absent.
func DefaultRules() []Rule {
	return []Rule{
		{Category: "masked_entity", Pattern: `某某(?:公司|集团|银行|支行|中心|律师事务所|公证处|法院|仲裁委员会)\d*`, Note: "脱敏机构名"},
		{Category: "masked_entity", Pattern: `某某某`, Note: "脱敏人名"},
		{Category: "masked_entity", Pattern: `(?:省|市|区|路|街道?)某某`, Note: "脱敏地址片段"},
		{Category: "empty_bracket", Pattern: `【[\s\p{Zs}]*】`},
		{Category: "empty_bracket", Pattern: `（[\s\p{Zs}]*）`},
		{Category: "empty_bracket", Pattern: `\([\s\p{Zs}]*\)`},
		{Category: "date_marker", Pattern: `[XＸ×]+年[XＸ×]+月(?:[XＸ×]+日)?`, Note: "未解析日期"},
		{Category: "date_marker", Pattern: `[XＸ]{4}年[XＸ]{1,2}月[XＸ]{1,2}日`},
		{Category: "number_marker", Pattern: `\bX\d+\b%?`, Note: "未解析数值"},
		{Category: "number_marker", Pattern: `×\d+%?`},
		{Category: "number_marker", Pattern: `\bXXX+\b`},
		{Category: "fill_in", Pattern: `(?:（|\()此处填写[^）)]*(?:）|\))`},
		{Category: "fill_in", Pattern: `【具体[^】]*】`},
		{Category: "annotation", Pattern: `\[(?:待定|待填|TBD|TODO)\]`},
	}
}

// New builds a checker from a rule list; patterns that do not compile
// are rejected up front.
func New(rules []Rule) (*Checker, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	c := &Checker{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid checker rule %q (%s): %w", r.Pattern, r.Category, err)
		}
		c.rules = append(c.rules, compiledRule{category: r.Category, re: re})
	}
	return c, nil
}

type ruleFile struct {
	Version int    `yaml:"version"`
	Extend  bool   `yaml:"extend"` // true: add to defaults, false: replace
	Rules   []Rule `yaml:"rules"`
}

// LoadRules reads a versioned YAML rule file. With extend: true the
// file's rules are appended to the defaults.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checker rules: %w", err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse checker rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("checker rule file %s contains no rules", path)
	}
	if f.Extend {
		return append(DefaultRules(), f.Rules...), nil
	}
	return f.Rules, nil
}

// Check reports whether the text is clean. found lists each distinct
// matched token in first-seen order.
func (c *Checker) Check(text string) (bool, []string) {
	var found []string
	seen := make(map[string]struct{})
	for _, r := range c.rules {
		for _, m := range r.re.FindAllString(text, -1) {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			found = append(found, m)
		}
	}
	return len(found) == 0, found
}

// CheckFile checks a file's contents.
func (c *Checker) CheckFile(path string) (bool, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, nil, err
	}
	clean, found := c.Check(string(data))
	return clean, found, nil
}

// Categorize maps a found token back to the category of the first rule
// that matches it, for reporting.
func (c *Checker) Categorize(token string) string {
	for _, r := range c.rules {
		if r.re.MatchString(token) {
			return r.category
		}
	}
	return "unknown"
}
