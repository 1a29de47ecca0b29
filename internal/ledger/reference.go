package ledger

import (
	"fmt"
	"slices"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

// NameInput creates a status or a transaction type.
type NameInput struct {
	Name string
}

// NamePatch renames a status or a transaction type; a nil Name keeps it.
type NamePatch struct {
	Name *string
}

type CategoryInput struct {
	Name   string
	TypeID string
}

type CategoryPatch struct {
	Name   *string
	TypeID *string
}

type SubcategoryInput struct {
	Name       string
	CategoryID string
}

type SubcategoryPatch struct {
	Name       *string
	CategoryID *string
}

// Statuses

func (s *Store) AddStatus(in NameInput) (core.Status, error) {
	s.mu.Lock()
	name, err := s.uniqueStatusName(in.Name, "")
	if err != nil {
		return core.Status{}, s.reject(log.OpCreate, CollectionStatuses, fmt.Errorf("add status: %w", err))
	}
	st := core.Status{ID: s.newID(CollectionStatuses), Name: name}
	s.ref.Statuses = appended(s.ref.Statuses, st)
	s.commit(EventAdded, CollectionStatuses, st.ID)
	return st, nil
}

func (s *Store) UpdateStatus(id string, p NamePatch) (core.Status, error) {
	s.mu.Lock()
	i := slices.IndexFunc(s.ref.Statuses, func(st core.Status) bool { return st.ID == id })
	if i < 0 {
		return core.Status{}, s.reject(log.OpUpdate, CollectionStatuses, fmt.Errorf("update status %q: %w", id, core.ErrNotFound))
	}
	st := s.ref.Statuses[i]
	if p.Name != nil {
		name, err := s.uniqueStatusName(*p.Name, id)
		if err != nil {
			return core.Status{}, s.reject(log.OpUpdate, CollectionStatuses, fmt.Errorf("update status %q: %w", id, err))
		}
		st.Name = name
	}
	if st == s.ref.Statuses[i] {
		s.mu.Unlock()
		return st, nil
	}
	s.ref.Statuses = replaced(s.ref.Statuses, i, st)
	s.commit(EventUpdated, CollectionStatuses, id)
	return st, nil
}

// DeleteStatus removes a status unconditionally; entries that still point at
// it resolve to core.UnknownName.
func (s *Store) DeleteStatus(id string) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.ref.Statuses, func(st core.Status) bool { return st.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.ref.Statuses = removed(s.ref.Statuses, i)
	s.commit(EventDeleted, CollectionStatuses, id)
	return nil
}

func (s *Store) uniqueStatusName(raw, self string) (string, error) {
	name, err := core.NormalizeName(raw)
	if err != nil {
		return "", err
	}
	for _, st := range s.ref.Statuses {
		if st.ID != self && core.SameName(st.Name, name) {
			return "", fmt.Errorf("%w: status %q already exists", core.ErrDuplicateName, name)
		}
	}
	return name, nil
}

// Transaction types

func (s *Store) AddType(in NameInput) (core.TransactionType, error) {
	s.mu.Lock()
	name, err := s.uniqueTypeName(in.Name, "")
	if err != nil {
		return core.TransactionType{}, s.reject(log.OpCreate, CollectionTypes, fmt.Errorf("add type: %w", err))
	}
	t := core.TransactionType{ID: s.newID(CollectionTypes), Name: name}
	s.ref.Types = appended(s.ref.Types, t)
	s.commit(EventAdded, CollectionTypes, t.ID)
	return t, nil
}

func (s *Store) UpdateType(id string, p NamePatch) (core.TransactionType, error) {
	s.mu.Lock()
	i := slices.IndexFunc(s.ref.Types, func(t core.TransactionType) bool { return t.ID == id })
	if i < 0 {
		return core.TransactionType{}, s.reject(log.OpUpdate, CollectionTypes, fmt.Errorf("update type %q: %w", id, core.ErrNotFound))
	}
	t := s.ref.Types[i]
	if p.Name != nil {
		name, err := s.uniqueTypeName(*p.Name, id)
		if err != nil {
			return core.TransactionType{}, s.reject(log.OpUpdate, CollectionTypes, fmt.Errorf("update type %q: %w", id, err))
		}
		t.Name = name
	}
	if t == s.ref.Types[i] {
		s.mu.Unlock()
		return t, nil
	}
	s.ref.Types = replaced(s.ref.Types, i, t)
	s.commit(EventUpdated, CollectionTypes, id)
	return t, nil
}

// DeleteType refuses while any category still belongs to the type.
func (s *Store) DeleteType(id string) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.ref.Types, func(t core.TransactionType) bool { return t.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	if n := len(s.ref.CategoriesByType(id)); n > 0 {
		return s.reject(log.OpDelete, CollectionTypes,
			fmt.Errorf("delete type %q: %w: %d categories reference it", id, core.ErrHasDependents, n))
	}
	s.ref.Types = removed(s.ref.Types, i)
	s.commit(EventDeleted, CollectionTypes, id)
	return nil
}

func (s *Store) uniqueTypeName(raw, self string) (string, error) {
	name, err := core.NormalizeName(raw)
	if err != nil {
		return "", err
	}
	for _, t := range s.ref.Types {
		if t.ID != self && core.SameName(t.Name, name) {
			return "", fmt.Errorf("%w: type %q already exists", core.ErrDuplicateName, name)
		}
	}
	return name, nil
}

// Categories

func (s *Store) AddCategory(in CategoryInput) (core.Category, error) {
	s.mu.Lock()
	c, err := s.checkCategory(core.Category{Name: in.Name, TypeID: in.TypeID})
	if err != nil {
		return core.Category{}, s.reject(log.OpCreate, CollectionCategories, fmt.Errorf("add category: %w", err))
	}
	c.ID = s.newID(CollectionCategories)
	s.ref.Categories = appended(s.ref.Categories, c)
	s.commit(EventAdded, CollectionCategories, c.ID)
	return c, nil
}

func (s *Store) UpdateCategory(id string, p CategoryPatch) (core.Category, error) {
	s.mu.Lock()
	i := slices.IndexFunc(s.ref.Categories, func(c core.Category) bool { return c.ID == id })
	if i < 0 {
		return core.Category{}, s.reject(log.OpUpdate, CollectionCategories, fmt.Errorf("update category %q: %w", id, core.ErrNotFound))
	}
	c := s.ref.Categories[i]
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.TypeID != nil {
		c.TypeID = *p.TypeID
	}
	c, err := s.checkCategory(c)
	if err != nil {
		return core.Category{}, s.reject(log.OpUpdate, CollectionCategories, fmt.Errorf("update category %q: %w", id, err))
	}
	if c == s.ref.Categories[i] {
		s.mu.Unlock()
		return c, nil
	}
	s.ref.Categories = replaced(s.ref.Categories, i, c)
	s.commit(EventUpdated, CollectionCategories, id)
	return c, nil
}

// DeleteCategory refuses while any subcategory still belongs to the category.
func (s *Store) DeleteCategory(id string) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.ref.Categories, func(c core.Category) bool { return c.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	if n := len(s.ref.SubcategoriesByCategory(id)); n > 0 {
		return s.reject(log.OpDelete, CollectionCategories,
			fmt.Errorf("delete category %q: %w: %d subcategories reference it", id, core.ErrHasDependents, n))
	}
	s.ref.Categories = removed(s.ref.Categories, i)
	s.commit(EventDeleted, CollectionCategories, id)
	return nil
}

// checkCategory normalizes c and enforces the parent and per-type name rules.
// c.ID is excluded from the duplicate scan.
func (s *Store) checkCategory(c core.Category) (core.Category, error) {
	name, err := core.NormalizeName(c.Name)
	if err != nil {
		return c, err
	}
	c.Name = name
	c.TypeID = strings.TrimSpace(c.TypeID)
	if c.TypeID == "" {
		return c, fmt.Errorf("%w: category needs a type", core.ErrMissingParent)
	}
	if _, ok := s.ref.Type(c.TypeID); !ok {
		return c, fmt.Errorf("%w: unknown type %q", core.ErrMissingParent, c.TypeID)
	}
	for _, sib := range s.ref.Categories {
		if sib.ID != c.ID && sib.TypeID == c.TypeID && core.SameName(sib.Name, name) {
			return c, fmt.Errorf("%w: category %q already exists for type %q", core.ErrDuplicateName, name, c.TypeID)
		}
	}
	return c, nil
}

// Subcategories

func (s *Store) AddSubcategory(in SubcategoryInput) (core.Subcategory, error) {
	s.mu.Lock()
	sc, err := s.checkSubcategory(core.Subcategory{Name: in.Name, CategoryID: in.CategoryID})
	if err != nil {
		return core.Subcategory{}, s.reject(log.OpCreate, CollectionSubcategories, fmt.Errorf("add subcategory: %w", err))
	}
	sc.ID = s.newID(CollectionSubcategories)
	s.ref.Subcategories = appended(s.ref.Subcategories, sc)
	s.commit(EventAdded, CollectionSubcategories, sc.ID)
	return sc, nil
}

func (s *Store) UpdateSubcategory(id string, p SubcategoryPatch) (core.Subcategory, error) {
	s.mu.Lock()
	i := slices.IndexFunc(s.ref.Subcategories, func(sc core.Subcategory) bool { return sc.ID == id })
	if i < 0 {
		return core.Subcategory{}, s.reject(log.OpUpdate, CollectionSubcategories, fmt.Errorf("update subcategory %q: %w", id, core.ErrNotFound))
	}
	sc := s.ref.Subcategories[i]
	if p.Name != nil {
		sc.Name = *p.Name
	}
	if p.CategoryID != nil {
		sc.CategoryID = *p.CategoryID
	}
	sc, err := s.checkSubcategory(sc)
	if err != nil {
		return core.Subcategory{}, s.reject(log.OpUpdate, CollectionSubcategories, fmt.Errorf("update subcategory %q: %w", id, err))
	}
	if sc == s.ref.Subcategories[i] {
		s.mu.Unlock()
		return sc, nil
	}
	s.ref.Subcategories = replaced(s.ref.Subcategories, i, sc)
	s.commit(EventUpdated, CollectionSubcategories, id)
	return sc, nil
}

// DeleteSubcategory removes a subcategory unconditionally.
func (s *Store) DeleteSubcategory(id string) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.ref.Subcategories, func(sc core.Subcategory) bool { return sc.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.ref.Subcategories = removed(s.ref.Subcategories, i)
	s.commit(EventDeleted, CollectionSubcategories, id)
	return nil
}

func (s *Store) checkSubcategory(sc core.Subcategory) (core.Subcategory, error) {
	name, err := core.NormalizeName(sc.Name)
	if err != nil {
		return sc, err
	}
	sc.Name = name
	sc.CategoryID = strings.TrimSpace(sc.CategoryID)
	if sc.CategoryID == "" {
		return sc, fmt.Errorf("%w: subcategory needs a category", core.ErrMissingParent)
	}
	if _, ok := s.ref.Category(sc.CategoryID); !ok {
		return sc, fmt.Errorf("%w: unknown category %q", core.ErrMissingParent, sc.CategoryID)
	}
	for _, sib := range s.ref.Subcategories {
		if sib.ID != sc.ID && sib.CategoryID == sc.CategoryID && core.SameName(sib.Name, name) {
			return sc, fmt.Errorf("%w: subcategory %q already exists for category %q", core.ErrDuplicateName, name, sc.CategoryID)
		}
	}
	return sc, nil
}
