package generator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type ItemStatus string

const (
	StatusSuccess ItemStatus = "success"
	StatusFailed  ItemStatus = "failed"
)

// ItemResult is the per-item outcome recorded in the run report.
type ItemResult struct {
	ID           string     `json:"id"`
	GroupID      int        `json:"group_id"`
	DisplayName  string     `json:"display_name"`
	Status       ItemStatus `json:"status"`
	Attempts     int        `json:"attempts"`
	Placeholders []string   `json:"placeholders,omitempty"`
	FilePath     string     `json:"file_path,omitempty"`
	Quarantined  string     `json:"quarantined,omitempty"`
	Error        string     `json:"error,omitempty"`
}

type RunSummary struct {
	Total     int     `json:"total"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	PassRate  float64 `json:"pass_rate"`
}

// RunReport aggregates a generation run: every item outcome plus the
// pass/fail rollup used for automated gating.
type RunReport struct {
	RunID       string       `json:"run_id"`
	Party       string       `json:"party"`
	StartedAt   string       `json:"started_at"`
	FinishedAt  string       `json:"finished_at"`
	OutputDir   string       `json:"output_dir"`
	Items       []ItemResult `json:"items"`
	Summary     RunSummary   `json:"summary"`
	startedTime time.Time
}

func NewRunReport(party, outputDir string) *RunReport {
	now := time.Now().UTC()
	return &RunReport{
		RunID:       uuid.NewString(),
		Party:       party,
		StartedAt:   now.Format(time.RFC3339),
		OutputDir:   outputDir,
		Items:       []ItemResult{},
		startedTime: now,
	}
}

func (r *RunReport) AddItem(res ItemResult) {
	if r == nil || res.ID == "" {
		return
	}
	r.Items = append(r.Items, res)
}

// Failed reports whether the run must be treated as failed for gating
// purposes: any quarantined item fails the run even though partial
// output exists.
func (r *RunReport) Failed() bool {
	for _, it := range r.Items {
		if it.Status != StatusSuccess {
			return true
		}
	}
	return false
}

func (r *RunReport) Finalize() {
	if r == nil {
		return
	}
	r.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	s := RunSummary{Total: len(r.Items)}
	for _, it := range r.Items {
		if it.Status == StatusSuccess {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	if s.Total > 0 {
		s.PassRate = float64(s.Succeeded) / float64(s.Total)
	}
	r.Summary = s
}

func (r *RunReport) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}
