package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type planFile struct {
	Items  []PlanItem `json:"items"`
	Groups map[string]struct {
		Name    string `json:"name"`
		Purpose string `json:"purpose"`
	} `json:"groups"`
}

// LoadPlan reads the evidence planning list: the planned items plus
// the group name/purpose records keyed by group id.
func LoadPlan(path string) ([]PlanItem, map[int]GroupInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read evidence plan: %w", err)
	}
	var pf planFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, nil, fmt.Errorf("failed to parse evidence plan: %w", err)
	}
	if len(pf.Items) == 0 {
		return nil, nil, fmt.Errorf("evidence plan contains no items")
	}

	seen := make(map[int]struct{}, len(pf.Items))
	for _, it := range pf.Items {
		if it.Seq <= 0 {
			return nil, nil, fmt.Errorf("evidence plan: item %q has invalid seq %d", it.DisplayName, it.Seq)
		}
		if _, dup := seen[it.Seq]; dup {
			return nil, nil, fmt.Errorf("evidence plan: duplicate seq %d", it.Seq)
		}
		seen[it.Seq] = struct{}{}
		if !it.FileType.Valid() {
			return nil, nil, fmt.Errorf("evidence plan: item %s has unknown file type %q", it.ID(), it.FileType)
		}
	}

	groups := make(map[int]GroupInfo, len(pf.Groups))
	for key, g := range pf.Groups {
		gid, err := strconv.Atoi(key)
		if err != nil {
			return nil, nil, fmt.Errorf("evidence plan: invalid group id %q", key)
		}
		groups[gid] = GroupInfo{Name: g.Name, Purpose: g.Purpose}
	}
	return pf.Items, groups, nil
}
