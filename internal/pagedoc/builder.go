// Package pagedoc lays out index-ordered document elements into
// discrete pages and records the realized page number of each element
// in a registry. The build session is a strict state machine:
//
//	COLLECTING -> SEALED -> RENDERED
//
// Elements may only be appended while collecting; sealing assigns page
// numbers once; the table of contents is rendered strictly from the
// sealed registry, never interleaved with layout.
package pagedoc

import (
	"errors"
	"fmt"
	"strings"
)

type State int

const (
	StateCollecting State = iota
	StateSealed
	StateRendered
)

var (
	ErrSealed    = errors.New("pagedoc: document is sealed, no further appends permitted")
	ErrNotSealed = errors.New("pagedoc: document is not sealed yet")
	ErrRendered  = errors.New("pagedoc: document already rendered")
)

type Kind int

const (
	KindCover Kind = iota
	KindNarrative
	KindEvidence
)

// Layout fixes the deterministic page geometry. Text wraps at
// WrapWidth runes; a page holds LinesPerPage lines. Keeping layout
// independent of the PDF backend is what lets the registry be computed
// at seal time and still match the rendered output.
type Layout struct {
	LinesPerPage int
	WrapWidth    int
	Cover        bool
	TOC          bool
}

type element struct {
	ref          string
	title        string
	kind         Kind
	lines        []string
	forceNewPage bool
	inTOC        bool
}

// RegistryEntry records which pages an element actually occupies.
type RegistryEntry struct {
	Ref       string
	Title     string
	StartPage int
	EndPage   int
}

// Page is one physical page of the final document. Number is 0 for
// unnumbered pages (cover); numbered pages are contiguous from 1.
type Page struct {
	Number int
	Lines  []string
}

type Builder struct {
	layout   Layout
	state    State
	cover    *element
	body     []element
	registry []RegistryEntry
	tocPages int
	// bodyPages[i] holds the lines of numbered page tocPages+1+i.
	bodyPages [][]string
}

func NewBuilder(layout Layout) *Builder {
	if layout.LinesPerPage < 1 {
		layout.LinesPerPage = 40
	}
	if layout.WrapWidth < 1 {
		layout.WrapWidth = 44
	}
	return &Builder{layout: layout}
}

func (b *Builder) State() State { return b.state }

// AddCover sets the cover element. The cover occupies its own
// unnumbered page and is never cited by the TOC.
func (b *Builder) AddCover(title, subtitle, caseNo string) error {
	if b.state != StateCollecting {
		return ErrSealed
	}
	lines := []string{"", "", title}
	if subtitle != "" {
		lines = append(lines, "", subtitle)
	}
	if caseNo != "" {
		lines = append(lines, "", "案号："+caseNo)
	}
	b.cover = &element{ref: "cover", title: title, kind: KindCover, lines: lines}
	return nil
}

// AddNarrative appends a narrative section (complaint, procedural
// document). It starts on a fresh page and is cited by the TOC.
func (b *Builder) AddNarrative(ref, title, text string) error {
	return b.appendBody(element{
		ref:          ref,
		title:        title,
		kind:         KindNarrative,
		lines:        b.composeLines(title, text),
		forceNewPage: true,
		inTOC:        true,
	})
}

// AddEvidence appends one evidence item. Every evidence item forces a
// new page; oversized content flows onto continuation pages without
// affecting the start page the TOC cites.
func (b *Builder) AddEvidence(ref, title, content string) error {
	return b.appendBody(element{
		ref:          ref,
		title:        title,
		kind:         KindEvidence,
		lines:        b.composeLines(title, content),
		forceNewPage: true,
		inTOC:        true,
	})
}

// AddPacked appends a short element that may share a page with the
// previous element when it fits. This is the explicit opt-out from the
// new-page-per-element rule.
func (b *Builder) AddPacked(ref, title, text string) error {
	return b.appendBody(element{
		ref:          ref,
		title:        title,
		kind:         KindNarrative,
		lines:        b.composeLines(title, text),
		forceNewPage: false,
		inTOC:        true,
	})
}

func (b *Builder) appendBody(el element) error {
	if b.state != StateCollecting {
		return ErrSealed
	}
	if strings.TrimSpace(el.ref) == "" {
		return fmt.Errorf("pagedoc: element ref must not be empty")
	}
	b.body = append(b.body, el)
	return nil
}

func (b *Builder) composeLines(title, text string) []string {
	lines := []string{title, ""}
	for _, raw := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		lines = append(lines, wrapLine(raw, b.layout.WrapWidth)...)
	}
	return lines
}

// Seal finalizes layout: the TOC's own span is computed from the entry
// count, then every body element receives contiguous page numbers
// starting right after the TOC. Numbered pages start at 1 on the first
// TOC page; the cover stays unnumbered.
func (b *Builder) Seal() error {
	if b.state != StateCollecting {
		return ErrSealed
	}

	b.tocPages = 0
	if b.layout.TOC {
		entries := 0
		for _, el := range b.body {
			if el.inTOC {
				entries++
			}
		}
		b.tocPages = pagesFor(tocHeaderLines+entries, b.layout.LinesPerPage)
	}

	cur := b.tocPages // last used numbered page
	used := 0         // lines used on page cur
	full := b.layout.LinesPerPage

	for _, el := range b.body {
		fits := cur > b.tocPages && used+len(el.lines) <= full
		if el.forceNewPage || cur == b.tocPages || !fits {
			cur++
			used = 0
			b.bodyPages = append(b.bodyPages, nil)
		}
		start := cur
		for _, line := range el.lines {
			if used == full {
				cur++
				used = 0
				b.bodyPages = append(b.bodyPages, nil)
			}
			b.bodyPages[cur-b.tocPages-1] = append(b.bodyPages[cur-b.tocPages-1], line)
			used++
		}
		b.registry = append(b.registry, RegistryEntry{
			Ref:       el.ref,
			Title:     el.title,
			StartPage: start,
			EndPage:   cur,
		})
	}

	b.state = StateSealed
	return nil
}

// Registry returns the page registry. It is only available once the
// document is sealed.
func (b *Builder) Registry() ([]RegistryEntry, error) {
	if b.state == StateCollecting {
		return nil, ErrNotSealed
	}
	return append([]RegistryEntry(nil), b.registry...), nil
}

// Pages materializes the physical page sequence: cover, TOC pages
// rendered from the registry, then body pages. It transitions the
// session to RENDERED and may only run once.
func (b *Builder) Pages() ([]Page, error) {
	switch b.state {
	case StateCollecting:
		return nil, ErrNotSealed
	case StateRendered:
		return nil, ErrRendered
	}

	var pages []Page
	if b.layout.Cover && b.cover != nil {
		pages = append(pages, Page{Number: 0, Lines: append([]string(nil), b.cover.lines...)})
	}
	if b.layout.TOC {
		tocLines := renderTOCLines(b.registry)
		for i := 0; i < b.tocPages; i++ {
			lo := i * b.layout.LinesPerPage
			hi := lo + b.layout.LinesPerPage
			if hi > len(tocLines) {
				hi = len(tocLines)
			}
			var chunk []string
			if lo < len(tocLines) {
				chunk = tocLines[lo:hi]
			}
			pages = append(pages, Page{Number: i + 1, Lines: chunk})
		}
	}
	for i, lines := range b.bodyPages {
		pages = append(pages, Page{Number: b.tocPages + 1 + i, Lines: append([]string(nil), lines...)})
	}

	b.state = StateRendered
	return pages, nil
}

func pagesFor(lines, perPage int) int {
	if lines <= 0 {
		return 1
	}
	return (lines + perPage - 1) / perPage
}

// wrapLine wraps a single logical line at width runes. Empty lines are
// preserved.
func wrapLine(s string, width int) []string {
	runes := []rune(s)
	if len(runes) <= width {
		return []string{s}
	}
	var out []string
	for len(runes) > width {
		out = append(out, string(runes[:width]))
		runes = runes[width:]
	}
	out = append(out, string(runes))
	return out
}
