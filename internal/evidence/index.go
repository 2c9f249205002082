package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Index is the single source of truth for downstream stages. It is
// built once per run, after every per-item file has been written, and
// is immutable once saved.
type Index struct {
	TotalCount int     `json:"total_count"`
	GroupCount int     `json:"group_count"`
	Items      []Item  `json:"items"`
	Groups     []Group `json:"groups"`
}

// GroupInfo names a group before its item count is known.
type GroupInfo struct {
	Name    string
	Purpose string
}

// BuildIndex derives totals and group rollups from the completed item
// records. Integrity violations are fatal: a duplicate file path or a
// path that does not resolve to a non-empty file aborts the build.
// Item order is preserved (insertion order = generation order).
func BuildIndex(items []Item, groups map[int]GroupInfo) (*Index, error) {
	seen := make(map[string]string, len(items)) // path -> item id
	counts := make(map[int]int)
	for _, it := range items {
		if it.FilePath == "" {
			return nil, fmt.Errorf("index integrity: item %s has no file path", it.ID)
		}
		if prev, dup := seen[it.FilePath]; dup {
			return nil, fmt.Errorf("index integrity: items %s and %s share file path %s", prev, it.ID, it.FilePath)
		}
		seen[it.FilePath] = it.ID
		info, err := os.Stat(it.FilePath)
		if err != nil {
			return nil, fmt.Errorf("index integrity: item %s file missing: %w", it.ID, err)
		}
		if info.Size() == 0 {
			return nil, fmt.Errorf("index integrity: item %s file is empty: %s", it.ID, it.FilePath)
		}
		if !it.FileType.Valid() {
			return nil, fmt.Errorf("index integrity: item %s has unknown file type %q", it.ID, it.FileType)
		}
		counts[it.GroupID]++
	}

	idx := &Index{
		TotalCount: len(items),
		GroupCount: len(counts),
		Items:      append([]Item(nil), items...),
	}

	ids := make([]int, 0, len(counts))
	for gid := range counts {
		ids = append(ids, gid)
	}
	sort.Ints(ids)
	for _, gid := range ids {
		info, ok := groups[gid]
		if !ok {
			return nil, fmt.Errorf("index integrity: group %d has items but no group record", gid)
		}
		idx.Groups = append(idx.Groups, Group{
			GroupID:   gid,
			Name:      info.Name,
			Purpose:   info.Purpose,
			ItemCount: counts[gid],
		})
	}
	return idx, nil
}

func (idx *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence index: %w", err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse evidence index: %w", err)
	}
	if idx.TotalCount != len(idx.Items) {
		return nil, fmt.Errorf("evidence index corrupt: total_count=%d but %d items", idx.TotalCount, len(idx.Items))
	}
	if idx.GroupCount != len(idx.Groups) {
		return nil, fmt.Errorf("evidence index corrupt: group_count=%d but %d groups", idx.GroupCount, len(idx.Groups))
	}
	counts := make(map[int]int, len(idx.Groups))
	for _, it := range idx.Items {
		counts[it.GroupID]++
	}
	for _, g := range idx.Groups {
		if counts[g.GroupID] != g.ItemCount {
			return nil, fmt.Errorf("evidence index corrupt: group %d item_count=%d but %d items", g.GroupID, g.ItemCount, counts[g.GroupID])
		}
	}
	return &idx, nil
}

// RebuildManifest recomputes the aggregate counts purely from the
// files on disk and the group assignments carried by the items. A
// healthy index round-trips: rebuilt totals equal the saved ones.
func RebuildManifest(items []Item, groups map[int]GroupInfo) (*Index, error) {
	return BuildIndex(items, groups)
}

// ItemsByLayout returns the index items ordered for assembly: groups
// ascending, items within a group by ID.
func (idx *Index) ItemsByLayout() []Item {
	out := append([]Item(nil), idx.Items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GroupID != out[j].GroupID {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GroupByID returns the rollup record for a group.
func (idx *Index) GroupByID(gid int) (Group, bool) {
	for _, g := range idx.Groups {
		if g.GroupID == gid {
			return g, true
		}
	}
	return Group{}, false
}
