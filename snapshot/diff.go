package snapshot

import (
	"fmt"
	"sort"
	"strings"
)

// Change describes one parameter that differs between two snapshots.
type Change struct {
	ID     string   `json:"id"`
	Fields []string `json:"fields"` // human-readable "field: old -> new"
}

// Diff is the structured comparison of two snapshots.
type Diff struct {
	HashA   string   `json:"hash_a"`
	HashB   string   `json:"hash_b"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []Change `json:"changed,omitempty"`
}

// Empty reports whether the snapshots are identical in content.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compare diffs two snapshots entry by entry.
func Compare(a, b *Snapshot) *Diff {
	d := &Diff{HashA: a.ContentHash, HashB: b.ContentHash}

	for _, id := range b.IDs() {
		if _, ok := a.Entries[id]; !ok {
			d.Added = append(d.Added, id)
		}
	}
	for _, id := range a.IDs() {
		eb, ok := b.Entries[id]
		if !ok {
			d.Removed = append(d.Removed, id)
			continue
		}
		if fields := compareEntries(a.Entries[id], eb); len(fields) > 0 {
			d.Changed = append(d.Changed, Change{ID: id, Fields: fields})
		}
	}
	sort.Slice(d.Changed, func(i, j int) bool { return d.Changed[i].ID < d.Changed[j].ID })
	return d
}

func compareEntries(a, b Entry) []string {
	var fields []string
	if a.Value != b.Value {
		fields = append(fields, fmt.Sprintf("value: %g -> %g", a.Value, b.Value))
	}
	switch {
	case a.Uncertainty == nil && b.Uncertainty != nil:
		fields = append(fields, fmt.Sprintf("uncertainty: unknown -> %g", *b.Uncertainty))
	case a.Uncertainty != nil && b.Uncertainty == nil:
		fields = append(fields, fmt.Sprintf("uncertainty: %g -> unknown", *a.Uncertainty))
	case a.Uncertainty != nil && b.Uncertainty != nil && *a.Uncertainty != *b.Uncertainty:
		fields = append(fields, fmt.Sprintf("uncertainty: %g -> %g", *a.Uncertainty, *b.Uncertainty))
	}
	if a.Status != b.Status {
		fields = append(fields, fmt.Sprintf("status: %s -> %s", a.Status, b.Status))
	}
	if a.Unit != b.Unit {
		fields = append(fields, fmt.Sprintf("unit: %s -> %s", a.Unit, b.Unit))
	}
	if a.Category != b.Category {
		fields = append(fields, fmt.Sprintf("category: %s -> %s", a.Category, b.Category))
	}
	if a.Formula != b.Formula {
		fields = append(fields, fmt.Sprintf("formula: %s -> %s", a.Formula, b.Formula))
	}
	return fields
}

// Render writes a human-readable diff summary.
func (d *Diff) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "snapshot %s -> %s\n", short(d.HashA), short(d.HashB))
	if d.Empty() {
		sb.WriteString("no differences\n")
		return sb.String()
	}
	for _, id := range d.Added {
		fmt.Fprintf(&sb, "+ %s\n", id)
	}
	for _, id := range d.Removed {
		fmt.Fprintf(&sb, "- %s\n", id)
	}
	for _, c := range d.Changed {
		fmt.Fprintf(&sb, "~ %s\n", c.ID)
		for _, f := range c.Fields {
			fmt.Fprintf(&sb, "    %s\n", f)
		}
	}
	return sb.String()
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
