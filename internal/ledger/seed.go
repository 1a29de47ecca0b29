package ledger

import (
	"time"

	"cashflow/internal/core"
)

// SeedReferenceData returns the illustrative taxonomy every new session starts with.
func SeedReferenceData() core.ReferenceData {
	return core.ReferenceData{
		Statuses: []core.Status{
			{ID: "business", Name: "Business"},
			{ID: "personal", Name: "Personal"},
			{ID: "tax", Name: "Tax"},
		},
		Types: []core.TransactionType{
			{ID: "income", Name: "Income"},
			{ID: "expense", Name: "Expense"},
		},
		Categories: []core.Category{
			{ID: "infrastructure", Name: "Infrastructure", TypeID: "expense"},
			{ID: "marketing", Name: "Marketing", TypeID: "expense"},
			{ID: "salary", Name: "Salary", TypeID: "income"},
			{ID: "sales", Name: "Sales", TypeID: "income"},
		},
		Subcategories: []core.Subcategory{
			{ID: "vps", Name: "VPS", CategoryID: "infrastructure"},
			{ID: "proxy", Name: "Proxy", CategoryID: "infrastructure"},
			{ID: "farpost", Name: "Farpost", CategoryID: "marketing"},
			{ID: "avito", Name: "Avito", CategoryID: "marketing"},
			{ID: "regular", Name: "Regular", CategoryID: "salary"},
			{ID: "bonus", Name: "Bonus", CategoryID: "salary"},
			{ID: "services", Name: "Services", CategoryID: "sales"},
			{ID: "products", Name: "Products", CategoryID: "sales"},
		},
	}
}

// SeedEntries returns the five example entries that match SeedReferenceData.
func SeedEntries() []core.Entry {
	entry := func(id string, day int, status, typ, cat, sub string, units int64, comment string) core.Entry {
		d := core.NewDate(2025, 1, day)
		return core.Entry{
			ID:            id,
			Date:          d,
			StatusID:      status,
			TypeID:        typ,
			CategoryID:    cat,
			SubcategoryID: sub,
			Amount:        core.FromUnits(units),
			Comment:       comment,
			CreatedAt:     time.Date(2025, time.January, day, 0, 0, 0, 0, time.UTC),
		}
	}
	return []core.Entry{
		entry("1", 1, "business", "expense", "infrastructure", "vps", 5000, "Hosting payment"),
		entry("2", 5, "business", "expense", "marketing", "avito", 3000, "Avito advertising"),
		entry("3", 10, "personal", "income", "salary", "regular", 50000, "December salary"),
		entry("4", 15, "business", "income", "sales", "services", 25000, "Consulting fee"),
		entry("5", 20, "tax", "expense", "infrastructure", "proxy", 7500, "Tax contributions"),
	}
}
