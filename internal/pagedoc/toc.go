package pagedoc

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// tocHeaderLines is the fixed header of the table of contents: the
// title line plus one blank line. Seal sizes the TOC from this.
const tocHeaderLines = 2

const tocTitle = "目　录"

// tocLineWidth is the target rune width of a TOC line before the page
// number column.
const tocLineWidth = 36

// renderTOCLines renders the table of contents purely from the sealed
// registry: one line per entry citing the entry's realized start page.
func renderTOCLines(registry []RegistryEntry) []string {
	lines := []string{tocTitle, ""}
	for _, e := range registry {
		lines = append(lines, tocLine(e.Title, e.StartPage))
	}
	return lines
}

func tocLine(title string, page int) string {
	pageCol := fmt.Sprintf("%d", page)
	width := utf8.RuneCountInString(title)
	dots := tocLineWidth - width - len(pageCol)
	if dots < 2 {
		dots = 2
	}
	return title + strings.Repeat("·", dots) + pageCol
}
