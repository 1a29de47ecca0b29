package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func categoryIDs(sel Selection) []string {
	rd := SeedReferenceData()
	ids := []string{}
	for _, c := range sel.EligibleCategories(rd) {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestEligibleOptionsByMode(t *testing.T) {
	rd := SeedReferenceData()

	form := Selection{Mode: FormMode}
	assert.Empty(t, form.EligibleCategories(rd))
	assert.Empty(t, form.EligibleSubcategories(rd))

	filter := Selection{Mode: FilterMode}
	assert.Len(t, filter.EligibleCategories(rd), 4)
	assert.Len(t, filter.EligibleSubcategories(rd), 8)

	for _, mode := range []Mode{FormMode, FilterMode} {
		sel := Selection{Mode: mode, TypeID: "income"}
		assert.Equal(t, []string{"salary", "sales"}, categoryIDs(sel), mode.String())
	}
}

func TestWithTypeClearsIneligibleCategory(t *testing.T) {
	rd := SeedReferenceData()

	for _, mode := range []Mode{FormMode, FilterMode} {
		t.Run(mode.String(), func(t *testing.T) {
			sel := Selection{Mode: mode}.
				WithType(rd, "expense").
				WithCategory(rd, "marketing").
				WithSubcategory(rd, "avito")
			assert.Equal(t, Selection{Mode: mode, TypeID: "expense", CategoryID: "marketing", SubcategoryID: "avito"}, sel)

			sel = sel.WithType(rd, "income")
			assert.Equal(t, Selection{Mode: mode, TypeID: "income"}, sel)
		})
	}
}

func TestWithTypeClearsSubcategoryWithoutCategory(t *testing.T) {
	rd := SeedReferenceData()
	sel := Selection{Mode: FilterMode, TypeID: "expense", SubcategoryID: "vps"}

	assert.Equal(t, sel, sel.WithType(rd, "expense"))
	assert.Equal(t, Selection{Mode: FilterMode, TypeID: "income"}, sel.WithType(rd, "income"))

	ids := []string{}
	for _, sc := range (Selection{Mode: FilterMode, TypeID: "income"}).EligibleSubcategories(rd) {
		assert.Contains(t, []string{"salary", "sales"}, sc.CategoryID)
		ids = append(ids, sc.ID)
	}
	assert.NotEmpty(t, ids)
	assert.NotContains(t, ids, "vps")
}

func TestWithTypeKeepsEligibleCategory(t *testing.T) {
	rd := SeedReferenceData()
	sel := Selection{Mode: FormMode, TypeID: "expense", CategoryID: "infrastructure", SubcategoryID: "vps"}

	assert.Equal(t, sel, sel.WithType(rd, "expense"))
}

func TestWithCategoryClearsSubcategory(t *testing.T) {
	rd := SeedReferenceData()
	sel := Selection{Mode: FormMode, TypeID: "expense", CategoryID: "infrastructure", SubcategoryID: "vps"}

	sel = sel.WithCategory(rd, "marketing")
	assert.Equal(t, "marketing", sel.CategoryID)
	assert.Empty(t, sel.SubcategoryID)
}

func TestClearingTypeByMode(t *testing.T) {
	rd := SeedReferenceData()
	start := Selection{TypeID: "expense", CategoryID: "marketing", SubcategoryID: "farpost"}

	form := start
	form.Mode = FormMode
	assert.Equal(t, Selection{Mode: FormMode}, form.WithType(rd, ""))

	// An empty type narrows nothing in the filter panel.
	filter := start
	filter.Mode = FilterMode
	assert.Equal(t, Selection{Mode: FilterMode, CategoryID: "marketing", SubcategoryID: "farpost"}, filter.WithType(rd, ""))
}

func TestWithSubcategoryRejectsForeignChild(t *testing.T) {
	rd := SeedReferenceData()
	sel := Selection{Mode: FilterMode, TypeID: "income", CategoryID: "salary"}

	assert.Empty(t, sel.WithSubcategory(rd, "vps").SubcategoryID)
	assert.Equal(t, "bonus", sel.WithSubcategory(rd, "bonus").SubcategoryID)

	// Without a category the filter accepts any subcategory.
	loose := Selection{Mode: FilterMode}
	assert.Equal(t, "vps", loose.WithSubcategory(rd, "vps").SubcategoryID)
}

func TestNormalizeAfterCategoryRemoved(t *testing.T) {
	rd := SeedReferenceData()
	rd.Categories = rd.Categories[1:] // drop infrastructure

	sel := Selection{Mode: FormMode, TypeID: "expense", CategoryID: "infrastructure", SubcategoryID: "vps"}
	assert.Equal(t, Selection{Mode: FormMode, TypeID: "expense"}, sel.Normalize(rd))
}
