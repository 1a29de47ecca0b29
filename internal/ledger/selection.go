package ledger

import (
	"slices"

	"cashflow/internal/core"
)

// Mode decides what an empty upstream selection makes eligible.
type Mode int

const (
	// FormMode is used while composing an entry: nothing below an empty
	// selection is eligible.
	FormMode Mode = iota
	// FilterMode is used by the entry table: an empty selection does not
	// narrow anything below it.
	FilterMode
)

func (m Mode) String() string {
	if m == FilterMode {
		return "filter"
	}
	return "form"
}

// Selection is a type → category → subcategory choice whose lower levels must
// stay consistent with the upper ones.
type Selection struct {
	Mode          Mode
	TypeID        string
	CategoryID    string
	SubcategoryID string
}

// EligibleCategories lists the categories the current type allows.
func (sel Selection) EligibleCategories(rd core.ReferenceData) []core.Category {
	if sel.TypeID == "" {
		if sel.Mode == FilterMode {
			return slices.Clone(rd.Categories)
		}
		return []core.Category{}
	}
	return rd.CategoriesByType(sel.TypeID)
}

// EligibleSubcategories lists the subcategories the current category allows.
// In FilterMode without a category, a selected type still limits them to its
// own categories.
func (sel Selection) EligibleSubcategories(rd core.ReferenceData) []core.Subcategory {
	if sel.CategoryID != "" {
		return rd.SubcategoriesByCategory(sel.CategoryID)
	}
	if sel.Mode != FilterMode {
		return []core.Subcategory{}
	}
	if sel.TypeID == "" {
		return slices.Clone(rd.Subcategories)
	}
	out := []core.Subcategory{}
	for _, sc := range rd.Subcategories {
		if c, ok := rd.Category(sc.CategoryID); ok && c.TypeID == sel.TypeID {
			out = append(out, sc)
		}
	}
	return out
}

// WithType selects typeID and clears the category and subcategory when they
// no longer fit.
func (sel Selection) WithType(rd core.ReferenceData, typeID string) Selection {
	sel.TypeID = typeID
	return sel.Normalize(rd)
}

// WithCategory selects categoryID and clears the subcategory when it no longer fits.
func (sel Selection) WithCategory(rd core.ReferenceData, categoryID string) Selection {
	sel.CategoryID = categoryID
	return sel.Normalize(rd)
}

func (sel Selection) WithSubcategory(rd core.ReferenceData, subcategoryID string) Selection {
	sel.SubcategoryID = subcategoryID
	return sel.Normalize(rd)
}

// Normalize clears every level that is not eligible under the level above it.
// Clearing a category also clears the subcategory.
func (sel Selection) Normalize(rd core.ReferenceData) Selection {
	if sel.CategoryID != "" {
		ok := slices.ContainsFunc(sel.EligibleCategories(rd), func(c core.Category) bool {
			return c.ID == sel.CategoryID
		})
		if !ok {
			sel.CategoryID = ""
			sel.SubcategoryID = ""
		}
	}
	if sel.SubcategoryID != "" {
		ok := slices.ContainsFunc(sel.EligibleSubcategories(rd), func(sc core.Subcategory) bool {
			return sc.ID == sel.SubcategoryID
		})
		if !ok {
			sel.SubcategoryID = ""
		}
	}
	return sel
}
