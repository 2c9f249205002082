package pagedoc

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout() Layout {
	return Layout{LinesPerPage: 10, WrapWidth: 20, Cover: true, TOC: true}
}

func TestBuilder_StateMachine(t *testing.T) {
	b := NewBuilder(testLayout())
	assert.Equal(t, StateCollecting, b.State())

	_, err := b.Registry()
	assert.ErrorIs(t, err, ErrNotSealed)
	_, err = b.Pages()
	assert.ErrorIs(t, err, ErrNotSealed)

	require.NoError(t, b.AddEvidence("E001", "证据一", "正文"))
	require.NoError(t, b.Seal())
	assert.Equal(t, StateSealed, b.State())

	assert.ErrorIs(t, b.AddEvidence("E002", "证据二", "正文"), ErrSealed)
	assert.ErrorIs(t, b.AddNarrative("n", "标题", "正文"), ErrSealed)
	assert.ErrorIs(t, b.Seal(), ErrSealed)

	_, err = b.Registry()
	require.NoError(t, err)

	_, err = b.Pages()
	require.NoError(t, err)
	assert.Equal(t, StateRendered, b.State())

	_, err = b.Pages()
	assert.ErrorIs(t, err, ErrRendered)
}

func TestBuilder_RejectsEmptyRef(t *testing.T) {
	b := NewBuilder(testLayout())
	assert.Error(t, b.AddEvidence("  ", "证据", "正文"))
}

func TestSeal_EveryEvidenceOnFreshPage(t *testing.T) {
	b := NewBuilder(testLayout())
	require.NoError(t, b.AddCover("证据材料册", "原告提交", "（2020）沪0115民初12345号"))
	for i := 1; i <= 3; i++ {
		require.NoError(t, b.AddEvidence(fmt.Sprintf("E%03d", i), fmt.Sprintf("证据%d", i), "一行正文"))
	}
	require.NoError(t, b.Seal())

	reg, err := b.Registry()
	require.NoError(t, err)
	require.Len(t, reg, 3)

	// One TOC page, then one page per item.
	assert.Equal(t, 2, reg[0].StartPage)
	assert.Equal(t, 3, reg[1].StartPage)
	assert.Equal(t, 4, reg[2].StartPage)
	for _, e := range reg {
		assert.Equal(t, e.StartPage, e.EndPage)
	}
}

func TestPages_NumberingAndCover(t *testing.T) {
	b := NewBuilder(testLayout())
	require.NoError(t, b.AddCover("证据材料册", "", ""))
	require.NoError(t, b.AddEvidence("E001", "证据1", "正文"))
	require.NoError(t, b.AddEvidence("E002", "证据2", "正文"))
	require.NoError(t, b.Seal())

	pages, err := b.Pages()
	require.NoError(t, err)
	require.Len(t, pages, 4) // cover + TOC + 2 body pages

	assert.Equal(t, 0, pages[0].Number) // cover is unnumbered
	assert.Contains(t, pages[0].Lines, "证据材料册")
	for i, p := range pages[1:] {
		assert.Equal(t, i+1, p.Number) // contiguous from 1
	}
}

func TestPages_TOCCitesRealizedStartPages(t *testing.T) {
	b := NewBuilder(testLayout())
	require.NoError(t, b.AddNarrative("complaint", "民事起诉状", "诉讼请求如下。"))
	require.NoError(t, b.AddEvidence("E001", "证据1", "正文"))
	require.NoError(t, b.Seal())

	reg, err := b.Registry()
	require.NoError(t, err)
	pages, err := b.Pages()
	require.NoError(t, err)

	toc := pages[0] // no cover element was added
	assert.Equal(t, 1, toc.Number)
	assert.Equal(t, tocTitle, toc.Lines[0])

	for _, e := range reg {
		want := tocLine(e.Title, e.StartPage)
		assert.Contains(t, toc.Lines, want)
		assert.True(t, strings.HasSuffix(want, fmt.Sprintf("%d", e.StartPage)))
		assert.Contains(t, want, "·")
	}
}

func TestSeal_OversizedEvidenceFlowsToContinuationPages(t *testing.T) {
	b := NewBuilder(Layout{LinesPerPage: 5, WrapWidth: 20, TOC: true})

	long := make([]string, 8)
	for i := range long {
		long[i] = fmt.Sprintf("第%d行", i+1)
	}
	require.NoError(t, b.AddEvidence("E001", "超长证据", strings.Join(long, "\n")))
	require.NoError(t, b.AddEvidence("E002", "后续证据", "一行"))
	require.NoError(t, b.Seal())

	reg, err := b.Registry()
	require.NoError(t, err)
	require.Len(t, reg, 2)

	// 10 layout lines at 5 per page: pages 2-3, continuation does not
	// shift the start the TOC cites.
	assert.Equal(t, 2, reg[0].StartPage)
	assert.Equal(t, 3, reg[0].EndPage)
	assert.Equal(t, 4, reg[1].StartPage)

	pages, err := b.Pages()
	require.NoError(t, err)
	require.Len(t, pages, 4) // TOC + 3 body pages
	assert.Len(t, pages[1].Lines, 5)
	assert.Len(t, pages[2].Lines, 5)
}

func TestSeal_PackedElementsSharePages(t *testing.T) {
	b := NewBuilder(testLayout())
	require.NoError(t, b.AddNarrative("g1", "第一组证据", "证明目的一。"))
	require.NoError(t, b.AddPacked("g1-note", "组内说明", "补充说明。"))
	require.NoError(t, b.Seal())

	reg, err := b.Registry()
	require.NoError(t, err)
	require.Len(t, reg, 2)
	assert.Equal(t, reg[0].StartPage, reg[1].StartPage)
}

func TestSeal_PackedElementOverflowsToNextPage(t *testing.T) {
	b := NewBuilder(Layout{LinesPerPage: 5, WrapWidth: 20, TOC: true})
	require.NoError(t, b.AddNarrative("a", "甲", "一\n二"))      // 4 lines
	require.NoError(t, b.AddPacked("b", "乙", "一\n二\n三\n四")) // 6 lines, cannot fit
	require.NoError(t, b.Seal())

	reg, err := b.Registry()
	require.NoError(t, err)
	assert.Equal(t, 2, reg[0].StartPage)
	assert.Equal(t, 3, reg[1].StartPage)
}

func TestSeal_MultiPageTOC(t *testing.T) {
	b := NewBuilder(Layout{LinesPerPage: 5, WrapWidth: 20, TOC: true})
	for i := 1; i <= 12; i++ {
		require.NoError(t, b.AddEvidence(fmt.Sprintf("E%03d", i), fmt.Sprintf("证据%d", i), "正文"))
	}
	require.NoError(t, b.Seal())

	reg, err := b.Registry()
	require.NoError(t, err)
	// 2 header lines + 12 entries = 14 TOC lines = 3 pages of 5.
	assert.Equal(t, 4, reg[0].StartPage)

	pages, err := b.Pages()
	require.NoError(t, err)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, 3, pages[2].Number)
	assert.Len(t, pages[2].Lines, 4)
}

func TestWrapLine(t *testing.T) {
	assert.Equal(t, []string{"短行"}, wrapLine("短行", 5))
	assert.Equal(t, []string{""}, wrapLine("", 5))

	wrapped := wrapLine("一二三四五六七八九十一二", 5)
	require.Len(t, wrapped, 3)
	assert.Equal(t, "一二三四五", wrapped[0])
	assert.Equal(t, "一二", wrapped[2])
}

func TestRegistry_NonDecreasingStartPages(t *testing.T) {
	b := NewBuilder(testLayout())
	for i := 1; i <= 6; i++ {
		require.NoError(t, b.AddEvidence(fmt.Sprintf("E%03d", i), fmt.Sprintf("证据%d", i), "正文"))
	}
	require.NoError(t, b.Seal())

	reg, err := b.Registry()
	require.NoError(t, err)
	for i := 1; i < len(reg); i++ {
		assert.Greater(t, reg[i].StartPage, reg[i-1].StartPage)
		assert.GreaterOrEqual(t, reg[i-1].EndPage, reg[i-1].StartPage)
	}
}
