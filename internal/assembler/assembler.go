// Package assembler composes the final filing PDF: cover, table of
// contents, narrative documents, and evidence content, laid out by the
// pagedoc engine and rendered with gofpdf. Evidence content is read
// from the index verbatim; all text cleaning happened upstream.
package assembler

import (
	"fmt"
	"os"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"docketgen/internal/evidence"
	"docketgen/internal/pagedoc"
)

// Section is a pre-rendered narrative document (complaint, procedural
// filing) supplied by the caller.
type Section struct {
	Ref   string
	Title string
	Text  string
}

type Options struct {
	Layout     pagedoc.Layout
	CoverTitle string
	CaseNo     string
	FontPath   string // TTF with CJK coverage; core font fallback when empty
	FontName   string
	Validate   bool // validate the written file with pdfcpu
}

// Assemble builds the PDF at outPath from the sealed index and returns
// the realized page registry. Group dividers and evidence items are
// ordered by group id, items within a group by id.
func Assemble(idx *evidence.Index, narrative []Section, opts Options, outPath string) ([]pagedoc.RegistryEntry, error) {
	builder := pagedoc.NewBuilder(opts.Layout)

	if opts.Layout.Cover {
		title := opts.CoverTitle
		if title == "" {
			title = "证据材料册"
		}
		if err := builder.AddCover(title, "", opts.CaseNo); err != nil {
			return nil, err
		}
	}

	for _, s := range narrative {
		if err := builder.AddNarrative(s.Ref, s.Title, s.Text); err != nil {
			return nil, err
		}
	}

	lastGroup := -1
	for _, it := range idx.ItemsByLayout() {
		if it.GroupID != lastGroup {
			if g, ok := idx.GroupByID(it.GroupID); ok {
				ref := fmt.Sprintf("group-%d", g.GroupID)
				if err := builder.AddNarrative(ref, groupTitle(g), groupText(g)); err != nil {
					return nil, err
				}
			}
			lastGroup = it.GroupID
		}
		content, err := it.Content()
		if err != nil {
			return nil, err
		}
		if err := builder.AddEvidence(it.ID, evidenceTitle(it), content); err != nil {
			return nil, err
		}
	}

	if err := builder.Seal(); err != nil {
		return nil, err
	}
	registry, err := builder.Registry()
	if err != nil {
		return nil, err
	}
	pages, err := builder.Pages()
	if err != nil {
		return nil, err
	}

	if err := renderPDF(pages, opts, outPath); err != nil {
		return nil, err
	}
	if opts.Validate {
		if err := validatePDF(outPath); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func renderPDF(pages []pagedoc.Page, opts Options, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)

	font := "Helvetica"
	if opts.FontPath != "" {
		name := opts.FontName
		if name == "" {
			name = "cjk"
		}
		if _, err := os.Stat(opts.FontPath); err != nil {
			return fmt.Errorf("pdf font not found: %w", err)
		}
		pdf.AddUTF8Font(name, "", opts.FontPath)
		font = name
	}
	pdf.SetFont(font, "", 12)

	lineHeight := contentHeight(pdf) / float64(opts.Layout.LinesPerPage)
	for _, page := range pages {
		pdf.AddPage()
		for i, line := range page.Lines {
			pdf.SetXY(marginLeft, marginTop+float64(i)*lineHeight)
			pdf.CellFormat(0, lineHeight, line, "", 0, "L", false, 0, "")
		}
		if page.Number > 0 {
			pdf.SetXY(marginLeft, pageHeight-12)
			pdf.CellFormat(pageWidth-2*marginLeft, 8, fmt.Sprintf("- %d -", page.Number), "", 0, "C", false, 0, "")
		}
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// A4 geometry in millimeters.
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	marginLeft   = 25.0
	marginTop    = 25.0
	marginBottom = 25.0
)

func contentHeight(_ *gofpdf.Fpdf) float64 {
	return pageHeight - marginTop - marginBottom
}

func validatePDF(path string) error {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("assembled pdf failed validation: %w", err)
	}
	return nil
}
