// Package generator turns planned evidence descriptors into cleaned,
// placeholder-checked text files and the evidence index built from
// them. Items are independent until index assembly, so generation runs
// on a bounded worker pool; index entries are only ever assembled by a
// single collector from (item, path) pairs emitted in the same
// iteration that wrote the file.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"docketgen/internal/casefacts"
	"docketgen/internal/checker"
	"docketgen/internal/cleaner"
	"docketgen/internal/evidence"
	"docketgen/internal/llm"
)

// ErrRunFailed is returned when every item was processed but at least
// one required item was quarantined. Partial output exists; automated
// gating must treat the run as failed.
var ErrRunFailed = errors.New("generation run failed: one or more items quarantined")

type FileGenerator struct {
	gen        llm.Generator
	check      *checker.Checker
	outputDir  string
	maxRetries int
	workers    int
}

func New(gen llm.Generator, check *checker.Checker, outputDir string, maxRetries, workers int) *FileGenerator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if workers < 1 {
		workers = 1
	}
	return &FileGenerator{
		gen:        gen,
		check:      check,
		outputDir:  outputDir,
		maxRetries: maxRetries,
		workers:    workers,
	}
}

// outcome pairs the index entry with its result. The entry is built in
// the same iteration that writes the file; no shared path variable is
// ever read afterwards.
type outcome struct {
	planPos int
	item    evidence.Item
	result  ItemResult
}

// GenerateAll generates every planned item owned by party, writes one
// file per item under a per-group directory, and builds the evidence
// index plus the run report. Per-item quality failures do not abort
// sibling items; a missing case fact does, before any model call.
func (g *FileGenerator) GenerateAll(
	ctx context.Context,
	plan []evidence.PlanItem,
	facts *casefacts.Facts,
	party evidence.Party,
	groups map[int]evidence.GroupInfo,
) (*evidence.Index, *RunReport, error) {
	selected := make([]evidence.PlanItem, 0, len(plan))
	for _, p := range plan {
		if p.OwningParty == party && p.Required {
			selected = append(selected, p)
		}
	}
	report := NewRunReport(string(party), g.outputDir)
	if len(selected) == 0 {
		report.Finalize()
		return &evidence.Index{Items: []evidence.Item{}}, report, nil
	}

	// Resolve every prompt up front: a fact-resolution gap is a fatal
	// input error and must be caught before the first LLM call.
	pb := NewPromptBuilder(facts)
	prompts := make([]string, len(selected))
	for i, item := range selected {
		p, err := pb.Build(item)
		if err != nil {
			return nil, nil, fmt.Errorf("item %s: %w", item.ID(), err)
		}
		prompts[i] = p
	}

	for _, item := range selected {
		dir := g.groupDir(item.GroupID)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create group directory: %w", err)
		}
	}

	results := make(chan outcome, len(selected))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.workers)
	for i := range selected {
		item, prompt := selected[i], prompts[i]
		pos := i
		grp.Go(func() error {
			out := g.generateOne(gctx, item, prompt, facts)
			out.planPos = pos
			select {
			case results <- out:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, nil, err
	}
	close(results)

	// Single collector: restore plan order so the index is
	// deterministic regardless of completion order.
	ordered := make([]*outcome, len(selected))
	for out := range results {
		o := out
		ordered[o.planPos] = &o
	}

	var items []evidence.Item
	for _, o := range ordered {
		if o == nil {
			continue
		}
		report.AddItem(o.result)
		if o.result.Status == StatusSuccess {
			items = append(items, o.item)
		}
	}
	report.Finalize()

	idx, err := evidence.BuildIndex(items, groups)
	if err != nil {
		return nil, report, err
	}
	if report.Failed() {
		return idx, report, ErrRunFailed
	}
	return idx, report, nil
}

func (g *FileGenerator) groupDir(groupID int) string {
	return filepath.Join(g.outputDir, fmt.Sprintf("证据组%d", groupID))
}

// generateOne runs the bounded retry-with-correction loop for a single
// item: generate, clean, de-anonymize, check; on placeholder leakage
// retry with an explicit corrective instruction. After exhausting the
// budget the last response is quarantined, never written as clean.
func (g *FileGenerator) generateOne(ctx context.Context, item evidence.PlanItem, basePrompt string, facts *casefacts.Facts) outcome {
	id := item.ID()
	res := ItemResult{
		ID:          id,
		GroupID:     item.GroupID,
		DisplayName: item.DisplayName,
		Status:      StatusFailed,
	}

	prompt := basePrompt
	var lastText string
	var lastFound []string
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		res.Attempts = attempt + 1
		if ctx.Err() != nil {
			res.Error = ctx.Err().Error()
			return outcome{item: evidence.Item{}, result: res}
		}

		raw, err := g.gen.Generate(ctx, prompt)
		if err != nil {
			// Transport retries already happened inside the client;
			// one exhausted transient budget consumes one attempt.
			log.Printf("evidence %s attempt %d: llm error: %v", id, attempt+1, err)
			res.Error = err.Error()
			continue
		}

		text, _ := cleaner.Clean(raw)
		text = facts.Deanonymize(text)
		clean, found := g.check.Check(text)
		if clean {
			entry, err := g.writeItem(item, text)
			if err != nil {
				res.Error = err.Error()
				return outcome{result: res}
			}
			res.Status = StatusSuccess
			res.Error = ""
			res.Placeholders = nil
			res.FilePath = entry.FilePath
			return outcome{item: entry, result: res}
		}

		lastText, lastFound = text, found
		log.Printf("evidence %s attempt %d/%d rejected, placeholders: %v", id, attempt+1, g.maxRetries+1, found)
		prompt = basePrompt + CorrectiveInstruction(found)
	}

	res.Placeholders = lastFound
	if lastText != "" {
		qpath, err := g.quarantine(item, lastText)
		if err != nil {
			log.Printf("evidence %s: quarantine write failed: %v", id, err)
		} else {
			res.Quarantined = qpath
		}
	}
	return outcome{result: res}
}

// writeItem writes the clean content and constructs the index entry
// from values local to this call.
func (g *FileGenerator) writeItem(item evidence.PlanItem, text string) (evidence.Item, error) {
	id := item.ID()
	short := evidence.ShortName(item.DisplayName)
	name := fmt.Sprintf("证据组%d_%s_%s.txt", item.GroupID, id, short)
	path := filepath.Join(g.groupDir(item.GroupID), name)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return evidence.Item{}, fmt.Errorf("failed to write evidence %s: %w", id, err)
	}
	return evidence.Item{
		ID:          id,
		GroupID:     item.GroupID,
		DisplayName: item.DisplayName,
		ShortName:   short,
		FileType:    item.FileType,
		OwningParty: item.OwningParty,
		FilePath:    path,
	}, nil
}

func (g *FileGenerator) quarantine(item evidence.PlanItem, text string) (string, error) {
	dir := filepath.Join(g.outputDir, "quarantine")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_rejected.txt", item.ID()))
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", err
	}
	return path, nil
}
