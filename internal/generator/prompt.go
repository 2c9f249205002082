package generator

import (
	"fmt"
	"strings"

	"docketgen/internal/casefacts"
	"docketgen/internal/evidence"
)

// contractSkeleton and friends are the type-specific layout skeletons
// the model is instructed to follow. They mirror the filing-document
// conventions for each evidence type.
const contractSkeleton = `## 合同标准格式
【合同名称】
【合同编号】

【甲方（转让方/出租人）】
名称、统一社会信用代码、法定代表人、地址

【乙方（受让方/承租人）】
名称、统一社会信用代码、法定代表人、地址

【鉴于条款】
【第一条 标的】
【第二条 价款/租金】
【第三条 交付/支付】
【第四条 权利义务】
【第五条 违约责任】
【第六条 争议解决】

【签署栏】
甲方（盖章）：
法定代表人（签字）：
乙方（盖章）：
法定代表人（签字）：
签订日期`

const voucherSkeleton = `## 凭证标准格式
【凭证名称】
【日期】
【收/付款人】
【金额】
【摘要】
【凭证号】
【签署】`

const instrumentSkeleton = `## 文书标准格式
【文书名称】
【致】
【正文内容】
【签署】
【日期】`

func skeletonFor(t evidence.FileType) string {
	switch t {
	case evidence.TypeVoucher:
		return voucherSkeleton
	case evidence.TypeInstrument:
		return instrumentSkeleton
	default:
		return contractSkeleton
	}
}

// PromptBuilder renders per-item prompts from resolved case facts.
// Every fact reference is resolved here, before any model call; an
// unresolvable reference is a hard input error.
type PromptBuilder struct {
	facts *casefacts.Facts
}

func NewPromptBuilder(facts *casefacts.Facts) *PromptBuilder {
	return &PromptBuilder{facts: facts}
}

// Build assembles the full prompt for one planned item. It fails if
// any referenced party, amount or date is absent from the facts.
func (b *PromptBuilder) Build(item evidence.PlanItem) (string, error) {
	var sb strings.Builder
	sb.WriteString("# 任务：生成一份证据材料的完整纯文本内容\n\n")
	sb.WriteString("## 格式要求\n")
	sb.WriteString("- 纯文本格式，不包含任何markdown符号\n")
	sb.WriteString("- 使用下方提供的真实名称、金额与日期，禁止输出任何占位符或脱敏标记\n")
	sb.WriteString("- 不要添加任何说明、前言或自检内容，只输出证据正文\n\n")
	sb.WriteString(skeletonFor(item.FileType))
	sb.WriteString("\n\n## 证据信息\n")
	fmt.Fprintf(&sb, "证据名称：%s\n证据编号：%s\n证据组：%d\n", item.DisplayName, item.ID(), item.GroupID)
	if item.Purpose != "" {
		fmt.Fprintf(&sb, "证明目的：%s\n", item.Purpose)
	}

	sb.WriteString("\n## 案件基本信息\n")
	fmt.Fprintf(&sb, "案号：%s\n受理法院：%s\n", b.facts.CaseNo, b.facts.CourtName)

	sb.WriteString("\n## 当事人（真实信息）\n")
	for _, role := range item.PartyRoles {
		p, err := b.facts.Party(role)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "- %s：%s", p.Role, p.Name)
		if p.CreditCode != "" {
			fmt.Fprintf(&sb, "，统一社会信用代码 %s", p.CreditCode)
		}
		if p.LegalRep != "" {
			fmt.Fprintf(&sb, "，法定代表人 %s", p.LegalRep)
		}
		if p.Address != "" {
			fmt.Fprintf(&sb, "，地址 %s", p.Address)
		}
		sb.WriteString("\n")
	}

	if len(item.AmountNames) > 0 {
		sb.WriteString("\n## 关键金额（真实数值）\n")
		for _, name := range item.AmountNames {
			a, err := b.facts.Amount(name)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "- %s：%s\n", name, casefacts.FormatAmount(a))
		}
	}

	if len(item.DateNames) > 0 {
		sb.WriteString("\n## 关键日期（真实日期）\n")
		for _, name := range item.DateNames {
			d, err := b.facts.Date(name)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "- %s：%s\n", name, d)
		}
	}

	sb.WriteString("\n请严格按照上述证据信息生成证据内容，使用提供的真实名称和数据。\n")
	return sb.String(), nil
}

// CorrectiveInstruction names the placeholders found in a rejected
// attempt so the retry prompt can forbid them explicitly.
func CorrectiveInstruction(found []string) string {
	if len(found) == 0 {
		return ""
	}
	shown := found
	if len(shown) > 8 {
		shown = shown[:8]
	}
	return fmt.Sprintf(
		"\n## 上次生成存在问题，必须修正\n上一次输出包含以下占位符或脱敏残留：%s。\n请重新生成，将每一处替换为上文提供的真实名称、金额或日期，不得保留任何占位符。\n",
		strings.Join(shown, "、"))
}
