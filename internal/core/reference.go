package core

import "slices"

// UnknownName is shown for references whose record no longer exists.
const UnknownName = "Unknown"

// ReferenceData aggregates the four taxonomy collections.
type ReferenceData struct {
	Statuses      []Status          `json:"statuses"`
	Types         []TransactionType `json:"types"`
	Categories    []Category        `json:"categories"`
	Subcategories []Subcategory     `json:"subcategories"`
}

// Clone returns a copy that shares no backing arrays with rd.
func (rd ReferenceData) Clone() ReferenceData {
	return ReferenceData{
		Statuses:      slices.Clone(rd.Statuses),
		Types:         slices.Clone(rd.Types),
		Categories:    slices.Clone(rd.Categories),
		Subcategories: slices.Clone(rd.Subcategories),
	}
}

// CategoriesByType keeps the categories of typeID in their original order.
func (rd ReferenceData) CategoriesByType(typeID string) []Category {
	out := []Category{}
	for _, c := range rd.Categories {
		if c.TypeID == typeID {
			out = append(out, c)
		}
	}
	return out
}

// SubcategoriesByCategory keeps the subcategories of categoryID in their original order.
func (rd ReferenceData) SubcategoriesByCategory(categoryID string) []Subcategory {
	out := []Subcategory{}
	for _, s := range rd.Subcategories {
		if s.CategoryID == categoryID {
			out = append(out, s)
		}
	}
	return out
}

func (rd ReferenceData) Status(id string) (Status, bool) {
	i := slices.IndexFunc(rd.Statuses, func(s Status) bool { return s.ID == id })
	if i < 0 {
		return Status{}, false
	}
	return rd.Statuses[i], true
}

func (rd ReferenceData) Type(id string) (TransactionType, bool) {
	i := slices.IndexFunc(rd.Types, func(t TransactionType) bool { return t.ID == id })
	if i < 0 {
		return TransactionType{}, false
	}
	return rd.Types[i], true
}

func (rd ReferenceData) Category(id string) (Category, bool) {
	i := slices.IndexFunc(rd.Categories, func(c Category) bool { return c.ID == id })
	if i < 0 {
		return Category{}, false
	}
	return rd.Categories[i], true
}

func (rd ReferenceData) Subcategory(id string) (Subcategory, bool) {
	i := slices.IndexFunc(rd.Subcategories, func(s Subcategory) bool { return s.ID == id })
	if i < 0 {
		return Subcategory{}, false
	}
	return rd.Subcategories[i], true
}

// StatusName resolves a status id for display.
func (rd ReferenceData) StatusName(id string) string {
	if s, ok := rd.Status(id); ok {
		return s.Name
	}
	return UnknownName
}

func (rd ReferenceData) TypeName(id string) string {
	if t, ok := rd.Type(id); ok {
		return t.Name
	}
	return UnknownName
}

func (rd ReferenceData) CategoryName(id string) string {
	if c, ok := rd.Category(id); ok {
		return c.Name
	}
	return UnknownName
}

func (rd ReferenceData) SubcategoryName(id string) string {
	if s, ok := rd.Subcategory(id); ok {
		return s.Name
	}
	return UnknownName
}
