// Package casefacts holds the resolved real-world facts of a case:
// party identities, amounts and dates. Evidence generation only ever
// works with resolved values; a fact that is missing here is a hard
// input error, never a guessed default.
package casefacts

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

type Party struct {
	Role       string `json:"role"` // plaintiff, defendant
	Name       string `json:"name"`
	CreditCode string `json:"credit_code,omitempty"`
	LegalRep   string `json:"legal_rep,omitempty"`
	Address    string `json:"address,omitempty"`
}

type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type Facts struct {
	CaseNo    string            `json:"case_no"`
	CourtName string            `json:"court_name"`
	Parties   []Party           `json:"parties"`
	Amounts   map[string]Amount `json:"amounts"`
	Dates     map[string]string `json:"dates"`
	// MaskMap maps anonymization tokens from the source judgment to
	// the real values they stand for.
	MaskMap map[string]string `json:"mask_map,omitempty"`
}

// MissingFactError reports an unresolvable fact reference. The
// pipeline must stop the affected item before any LLM call is made.
type MissingFactError struct {
	Kind string
	Key  string
}

func (e *MissingFactError) Error() string {
	return fmt.Sprintf("unresolved case fact: %s %q", e.Kind, e.Key)
}

func LoadFacts(path string) (*Facts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case facts: %w", err)
	}
	var f Facts
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse case facts: %w", err)
	}
	if len(f.Parties) == 0 {
		return nil, fmt.Errorf("case facts contain no parties")
	}
	return &f, nil
}

// Party returns the first party with the given role.
func (f *Facts) Party(role string) (Party, error) {
	for _, p := range f.Parties {
		if p.Role == role {
			return p, nil
		}
	}
	return Party{}, &MissingFactError{Kind: "party", Key: role}
}

func (f *Facts) Amount(name string) (Amount, error) {
	a, ok := f.Amounts[name]
	if !ok {
		return Amount{}, &MissingFactError{Kind: "amount", Key: name}
	}
	return a, nil
}

func (f *Facts) Date(name string) (string, error) {
	d, ok := f.Dates[name]
	if !ok || strings.TrimSpace(d) == "" {
		return "", &MissingFactError{Kind: "date", Key: name}
	}
	return d, nil
}

// Deanonymize replaces anonymization tokens with their real values.
// Longer tokens are replaced first so that a token which is a prefix
// of another (某某公司 vs 某某公司1) cannot clobber it.
func (f *Facts) Deanonymize(text string) string {
	if len(f.MaskMap) == 0 {
		return text
	}
	tokens := make([]string, 0, len(f.MaskMap))
	for t := range f.MaskMap {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) == len(tokens[j]) {
			return tokens[i] < tokens[j]
		}
		return len(tokens[i]) > len(tokens[j])
	})
	for _, t := range tokens {
		text = strings.ReplaceAll(text, t, f.MaskMap[t])
	}
	return text
}

// FormatAmount renders an amount the way filing documents cite money,
// e.g. 人民币1,250,000.00元.
func FormatAmount(a Amount) string {
	prefix := a.Currency
	if prefix == "" || prefix == "CNY" || prefix == "RMB" {
		prefix = "人民币"
	}
	return fmt.Sprintf("%s%s元", prefix, groupDigits(a.Value))
}

func groupDigits(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]
	neg := false
	if strings.HasPrefix(intPart, "-") {
		neg = true
		intPart = intPart[1:]
	}
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
