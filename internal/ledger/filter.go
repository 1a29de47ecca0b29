package ledger

import (
	"cashflow/internal/core"
)

// EntryFilter narrows the entry table. Zero fields do not filter; date bounds
// are inclusive.
type EntryFilter struct {
	From          core.Date
	To            core.Date
	StatusID      string
	TypeID        string
	CategoryID    string
	SubcategoryID string
}

// Selection exposes the filter's taxonomy choice in FilterMode.
func (f EntryFilter) Selection() Selection {
	return Selection{
		Mode:          FilterMode,
		TypeID:        f.TypeID,
		CategoryID:    f.CategoryID,
		SubcategoryID: f.SubcategoryID,
	}
}

// Normalize applies the cascading rules to the filter's taxonomy choice.
func (f EntryFilter) Normalize(rd core.ReferenceData) EntryFilter {
	sel := f.Selection().Normalize(rd)
	f.TypeID, f.CategoryID, f.SubcategoryID = sel.TypeID, sel.CategoryID, sel.SubcategoryID
	return f
}

func (f EntryFilter) Match(e core.Entry) bool {
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To.Time) {
		return false
	}
	if f.StatusID != "" && e.StatusID != f.StatusID {
		return false
	}
	if f.TypeID != "" && e.TypeID != f.TypeID {
		return false
	}
	if f.CategoryID != "" && e.CategoryID != f.CategoryID {
		return false
	}
	if f.SubcategoryID != "" && e.SubcategoryID != f.SubcategoryID {
		return false
	}
	return true
}

// Apply keeps the matching entries in their original order.
func (f EntryFilter) Apply(entries []core.Entry) []core.Entry {
	out := []core.Entry{}
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// FilterEntries normalizes f against the current taxonomy and applies it to
// the current entries. The normalized filter is returned alongside the rows.
func (s *Store) FilterEntries(f EntryFilter) ([]core.Entry, EntryFilter) {
	entries, rd := s.Snapshot()
	f = f.Normalize(rd)
	return f.Apply(entries), f
}

// Summarize totals entries per type and per category, in first-seen order.
func Summarize(entries []core.Entry, rd core.ReferenceData) core.Summary {
	sum := core.Summary{
		Count:      len(entries),
		ByType:     []core.TypeAmount{},
		ByCategory: []core.CategoryAmount{},
	}
	typeIdx := map[string]int{}
	catIdx := map[string]int{}
	for _, e := range entries {
		i, ok := typeIdx[e.TypeID]
		if !ok {
			i = len(sum.ByType)
			typeIdx[e.TypeID] = i
			sum.ByType = append(sum.ByType, core.TypeAmount{ID: e.TypeID, Name: rd.TypeName(e.TypeID)})
		}
		sum.ByType[i].Amount = sum.ByType[i].Amount.Add(e.Amount)

		j, ok := catIdx[e.CategoryID]
		if !ok {
			j = len(sum.ByCategory)
			catIdx[e.CategoryID] = j
			sum.ByCategory = append(sum.ByCategory, core.CategoryAmount{ID: e.CategoryID, Name: rd.CategoryName(e.CategoryID)})
		}
		sum.ByCategory[j].Amount = sum.ByCategory[j].Amount.Add(e.Amount)
	}
	return sum
}
