package assembler

import (
	"fmt"

	"docketgen/internal/evidence"
)

// typeLabel maps file types to the caption used on evidence headings
// and in the table of contents.
func typeLabel(t evidence.FileType) string {
	switch t {
	case evidence.TypeVoucher:
		return "凭证"
	case evidence.TypeInstrument:
		return "文书"
	default:
		return "合同"
	}
}

// evidenceTitle renders the heading line for one evidence item, e.g.
// 证据E001　《融资租赁合同》（合同）. Content below the heading is the
// generated file verbatim; no text transformation happens here.
func evidenceTitle(it evidence.Item) string {
	return fmt.Sprintf("证据%s　《%s》（%s）", it.ID, it.DisplayName, typeLabel(it.FileType))
}

// groupTitle renders the divider heading for an evidence group.
func groupTitle(g evidence.Group) string {
	if g.Name != "" {
		return fmt.Sprintf("第%d组证据　%s", g.GroupID, g.Name)
	}
	return fmt.Sprintf("第%d组证据", g.GroupID)
}

// groupText renders the divider body: the group's proof purpose and
// item count.
func groupText(g evidence.Group) string {
	text := fmt.Sprintf("本组证据共%d份。", g.ItemCount)
	if g.Purpose != "" {
		text += "\n证明目的：" + g.Purpose
	}
	return text
}
