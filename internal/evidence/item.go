// Package evidence defines the evidence data model: planned items,
// generated items, groups, and the index manifest that downstream
// stages read.
package evidence

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

type FileType string

const (
	TypeContract   FileType = "contract"   // 合同
	TypeVoucher    FileType = "voucher"    // 凭证
	TypeInstrument FileType = "instrument" // 文书
)

func (t FileType) Valid() bool {
	switch t {
	case TypeContract, TypeVoucher, TypeInstrument:
		return true
	}
	return false
}

type Party string

const (
	PartyPlaintiff Party = "plaintiff"
	PartyDefendant Party = "defendant"
)

// PlanItem is one planned evidence descriptor, produced by upstream
// evidence planning before any content exists.
type PlanItem struct {
	Seq         int      `json:"seq"` // sequence number, basis of the item ID
	GroupID     int      `json:"group_id"`
	DisplayName string   `json:"display_name"`
	FileType    FileType `json:"file_type"`
	OwningParty Party    `json:"owning_party"`
	Purpose     string   `json:"purpose,omitempty"`
	Required    bool     `json:"required"`
	// Fact references the generator must resolve before prompting.
	PartyRoles  []string `json:"party_roles,omitempty"`
	AmountNames []string `json:"amount_names,omitempty"`
	DateNames   []string `json:"date_names,omitempty"`
}

// ID returns the stable sequence-coded identifier, e.g. E001.
func (p PlanItem) ID() string {
	return fmt.Sprintf("E%03d", p.Seq)
}

// Item is one generated evidence record as it appears in the index.
type Item struct {
	ID          string   `json:"id"`
	GroupID     int      `json:"group_id"`
	DisplayName string   `json:"display_name"`
	ShortName   string   `json:"short_name"`
	FileType    FileType `json:"file_type"`
	OwningParty Party    `json:"owning_party"`
	FilePath    string   `json:"file_path"`
}

// Content reads the evidence text from disk. Content is never embedded
// in the index; this is the only way to obtain it.
func (i Item) Content() (string, error) {
	data, err := os.ReadFile(i.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to read evidence %s: %w", i.ID, err)
	}
	return string(data), nil
}

type Group struct {
	GroupID   int    `json:"group_id"`
	Name      string `json:"name"`
	Purpose   string `json:"purpose"`
	ItemCount int    `json:"item_count"`
}

var unsafePathChars = regexp.MustCompile(`[\\/<>:"*?|]`)
var trailingParen = regexp.MustCompile(`(（[^（）]*）|\([^()]*\))$`)

// ShortName derives a filesystem-safe short label from a display name:
// book-title marks and trailing parentheticals go, path-hostile
// characters are dropped.
func ShortName(displayName string) string {
	s := strings.NewReplacer("《", "", "》", "").Replace(displayName)
	s = strings.TrimSuffix(s, "及公证书")
	s = trailingParen.ReplaceAllString(s, "")
	s = unsafePathChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		s = "证据"
	}
	return s
}
