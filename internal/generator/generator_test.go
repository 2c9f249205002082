package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketgen/internal/casefacts"
	"docketgen/internal/checker"
	"docketgen/internal/evidence"
	"docketgen/internal/llm"
)

// fakeGen replays a scripted sequence of responses per prompt call and
// records every prompt it receives. A non-nil entry in errs takes
// precedence over the response for that call. The last entry of each
// script repeats. Safe for concurrent use.
type fakeGen struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	i := f.calls
	f.calls++
	if len(f.errs) > 0 {
		k := i
		if k >= len(f.errs) {
			k = len(f.errs) - 1
		}
		if f.errs[k] != nil {
			return "", f.errs[k]
		}
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

const cleanText = `融资租赁合同
出租人：东方国际融资租赁有限公司
承租人：南昌宏昌商业零售有限公司
租金总额：人民币1,250,000.00元
签订日期：2019年3月15日`

const dirtyText = `融资租赁合同
出租人：某某公司5
租金总额：人民币1,250,000.00元`

func testFacts() *casefacts.Facts {
	return &casefacts.Facts{
		CaseNo:    "（2020）沪0115民初12345号",
		CourtName: "上海市浦东新区人民法院",
		Parties: []casefacts.Party{
			{Role: "plaintiff", Name: "东方国际融资租赁有限公司"},
			{Role: "defendant", Name: "南昌宏昌商业零售有限公司"},
		},
	}
}

func testPlanGroups() map[int]evidence.GroupInfo {
	return map[int]evidence.GroupInfo{
		1: {Name: "合同关系成立", Purpose: "证明合同关系依法成立"},
		2: {Name: "款项支付", Purpose: "证明原告已付款"},
	}
}

func planItem(seq, group int, name string) evidence.PlanItem {
	return evidence.PlanItem{
		Seq:         seq,
		GroupID:     group,
		DisplayName: name,
		FileType:    evidence.TypeContract,
		OwningParty: evidence.PartyPlaintiff,
		Required:    true,
	}
}

func newFileGenerator(t *testing.T, gen *fakeGen, maxRetries, workers int) (*FileGenerator, string) {
	t.Helper()
	check, err := checker.New(checker.DefaultRules())
	require.NoError(t, err)
	dir := t.TempDir()
	return New(gen, check, dir, maxRetries, workers), dir
}

func TestGenerateAll_CleanFirstAttempt(t *testing.T) {
	gen := &fakeGen{responses: []string{cleanText}}
	fg, dir := newFileGenerator(t, gen, 3, 1)

	plan := []evidence.PlanItem{planItem(1, 1, "《融资租赁合同》")}
	idx, report, err := fg.GenerateAll(context.Background(), plan, testFacts(), evidence.PartyPlaintiff, testPlanGroups())
	require.NoError(t, err)

	require.Equal(t, 1, idx.TotalCount)
	item := idx.Items[0]
	assert.Equal(t, "E001", item.ID)
	assert.Equal(t, filepath.Join(dir, "证据组1", "证据组1_E001_融资租赁合同.txt"), item.FilePath)

	content, readErr := item.Content()
	require.NoError(t, readErr)
	assert.Contains(t, content, "东方国际融资租赁有限公司")

	require.Len(t, report.Items, 1)
	assert.Equal(t, StatusSuccess, report.Items[0].Status)
	assert.Equal(t, 1, report.Items[0].Attempts)
	assert.Equal(t, 1.0, report.Summary.PassRate)
}

func TestGenerateAll_RetriesWithCorrection(t *testing.T) {
	gen := &fakeGen{responses: []string{dirtyText, dirtyText, cleanText}}
	fg, _ := newFileGenerator(t, gen, 3, 1)

	plan := []evidence.PlanItem{planItem(1, 1, "《融资租赁合同》")}
	idx, report, err := fg.GenerateAll(context.Background(), plan, testFacts(), evidence.PartyPlaintiff, testPlanGroups())
	require.NoError(t, err)

	assert.Equal(t, 1, idx.TotalCount)
	require.Len(t, report.Items, 1)
	assert.Equal(t, StatusSuccess, report.Items[0].Status)
	assert.Equal(t, 3, report.Items[0].Attempts)

	// Retry prompts must name the offending token explicitly.
	require.Len(t, gen.prompts, 3)
	assert.NotContains(t, gen.prompts[0], "某某公司5")
	assert.Contains(t, gen.prompts[1], "某某公司5")
	assert.Contains(t, gen.prompts[1], "必须修正")
}

func TestGenerateAll_ExhaustedRetriesQuarantines(t *testing.T) {
	gen := &fakeGen{responses: []string{dirtyText}}
	fg, dir := newFileGenerator(t, gen, 2, 1)

	plan := []evidence.PlanItem{planItem(1, 1, "《融资租赁合同》")}
	idx, report, err := fg.GenerateAll(context.Background(), plan, testFacts(), evidence.PartyPlaintiff, testPlanGroups())
	require.ErrorIs(t, err, ErrRunFailed)

	// Index still exists but holds no quarantined item.
	require.NotNil(t, idx)
	assert.Equal(t, 0, idx.TotalCount)

	require.Len(t, report.Items, 1)
	res := report.Items[0]
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, res.Attempts) // maxRetries 2 -> 3 attempts
	assert.Contains(t, res.Placeholders, "某某公司5")
	assert.Equal(t, 0.0, report.Summary.PassRate)

	qpath := filepath.Join(dir, "quarantine", "E001_rejected.txt")
	assert.Equal(t, qpath, res.Quarantined)
	data, readErr := os.ReadFile(qpath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "某某公司5")

	// The rejected text must never land in the group directory.
	entries, readErr := os.ReadDir(filepath.Join(dir, "证据组1"))
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestGenerateAll_FailedItemDoesNotAbortSiblings(t *testing.T) {
	// First item keeps producing placeholders, second is clean on its
	// first attempt. With one worker the call order is deterministic:
	// item 1 burns attempts 1..2, item 2 gets the clean response.
	gen := &fakeGen{responses: []string{dirtyText, dirtyText, cleanText}}
	fg, _ := newFileGenerator(t, gen, 1, 1)

	plan := []evidence.PlanItem{
		planItem(1, 1, "《融资租赁合同》"),
		planItem(2, 2, "付款凭证"),
	}
	plan[1].FileType = evidence.TypeVoucher

	idx, report, err := fg.GenerateAll(context.Background(), plan, testFacts(), evidence.PartyPlaintiff, testPlanGroups())
	require.ErrorIs(t, err, ErrRunFailed)

	assert.Equal(t, 1, idx.TotalCount)
	assert.Equal(t, "E002", idx.Items[0].ID)

	require.Len(t, report.Items, 2)
	assert.Equal(t, StatusFailed, report.Items[0].Status)
	assert.Equal(t, StatusSuccess, report.Items[1].Status)
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Succeeded)
	assert.Equal(t, 0.5, report.Summary.PassRate)
}

func TestGenerateAll_TransientErrorConsumesOneAttempt(t *testing.T) {
	gen := &fakeGen{
		responses: []string{cleanText},
		errs:      []error{&llm.TransientError{Err: errors.New("connection reset")}, nil},
	}
	fg, _ := newFileGenerator(t, gen, 3, 1)

	plan := []evidence.PlanItem{planItem(1, 1, "《融资租赁合同》")}
	idx, report, err := fg.GenerateAll(context.Background(), plan, testFacts(), evidence.PartyPlaintiff, testPlanGroups())
	require.NoError(t, err)

	assert.Equal(t, 1, idx.TotalCount)
	require.Len(t, report.Items, 1)
	assert.Equal(t, StatusSuccess, report.Items[0].Status)
	assert.Equal(t, 2, report.Items[0].Attempts)
	assert.Empty(t, report.Items[0].Error)
}

func TestGenerateAll_AllAttemptsTransientFail(t *testing.T) {
	gen := &fakeGen{
		errs: []error{&llm.TransientError{Err: errors.New("deadline exceeded")}},
	}
	fg, dir := newFileGenerator(t, gen, 1, 1)

	plan := []evidence.PlanItem{planItem(1, 1, "《融资租赁合同》")}
	idx, report, err := fg.GenerateAll(context.Background(), plan, testFacts(), evidence.PartyPlaintiff, testPlanGroups())
	require.ErrorIs(t, err, ErrRunFailed)

	assert.Equal(t, 0, idx.TotalCount)
	require.Len(t, report.Items, 1)
	res := report.Items[0]
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 2, res.Attempts) // maxRetries 1 -> 2 attempts
	assert.Contains(t, res.Error, "transient")
	assert.Empty(t, res.Placeholders)

	// No response ever arrived, so there is nothing to quarantine.
	assert.Empty(t, res.Quarantined)
	_, statErr := os.Stat(filepath.Join(dir, "quarantine"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, 0.0, report.Summary.PassRate)
}

func TestGenerateAll_MissingFactFailsBeforeAnyModelCall(t *testing.T) {
	gen := &fakeGen{responses: []string{cleanText}}
	fg, _ := newFileGenerator(t, gen, 3, 1)

	item := planItem(1, 1, "《融资租赁合同》")
	item.AmountNames = []string{"违约金"} // absent from the facts

	_, _, err := fg.GenerateAll(context.Background(), []evidence.PlanItem{item}, testFacts(), evidence.PartyPlaintiff, testPlanGroups())
	require.Error(t, err)
	var mfe *casefacts.MissingFactError
	assert.ErrorAs(t, err, &mfe)
	assert.Equal(t, 0, gen.calls)
}

func TestGenerateAll_FiltersByPartyAndRequired(t *testing.T) {
	gen := &fakeGen{responses: []string{cleanText}}
	fg, _ := newFileGenerator(t, gen, 3, 1)

	wanted := planItem(1, 1, "《融资租赁合同》")
	otherParty := planItem(2, 1, "答辩状")
	otherParty.OwningParty = evidence.PartyDefendant
	optional := planItem(3, 1, "《补充协议》")
	optional.Required = false

	plan := []evidence.PlanItem{wanted, otherParty, optional}
	idx, report, err := fg.GenerateAll(context.Background(), plan, testFacts(), evidence.PartyPlaintiff, testPlanGroups())
	require.NoError(t, err)

	assert.Equal(t, 1, idx.TotalCount)
	assert.Equal(t, 1, report.Summary.Total)
	assert.Equal(t, 1, gen.calls)
}

func TestGenerateAll_ConcurrentRunKeepsPlanOrder(t *testing.T) {
	gen := &fakeGen{responses: []string{cleanText}}
	fg, _ := newFileGenerator(t, gen, 0, 4)

	plan := []evidence.PlanItem{
		planItem(1, 1, "《融资租赁合同》"),
		planItem(2, 1, "《担保合同》"),
		planItem(3, 2, "付款凭证"),
		planItem(4, 2, "催告函"),
	}
	plan[2].FileType = evidence.TypeVoucher
	plan[3].FileType = evidence.TypeInstrument

	idx, report, err := fg.GenerateAll(context.Background(), plan, testFacts(), evidence.PartyPlaintiff, testPlanGroups())
	require.NoError(t, err)

	require.Equal(t, 4, idx.TotalCount)
	for i, want := range []string{"E001", "E002", "E003", "E004"} {
		assert.Equal(t, want, idx.Items[i].ID)
		assert.Equal(t, want, report.Items[i].ID)
	}
	assert.Equal(t, 2, idx.GroupCount)
}

func TestGenerateAll_EmptySelection(t *testing.T) {
	gen := &fakeGen{responses: []string{cleanText}}
	fg, _ := newFileGenerator(t, gen, 3, 1)

	item := planItem(1, 1, "答辩状")
	item.OwningParty = evidence.PartyDefendant

	idx, report, err := fg.GenerateAll(context.Background(), []evidence.PlanItem{item}, testFacts(), evidence.PartyPlaintiff, testPlanGroups())
	require.NoError(t, err)
	assert.Equal(t, 0, idx.TotalCount)
	assert.Equal(t, 0, report.Summary.Total)
	assert.Equal(t, 0, gen.calls)
}
