package ledger

import (
	"fmt"
	"slices"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

// EntryInput carries every entry field except the ones the store assigns.
type EntryInput struct {
	Date          core.Date
	StatusID      string
	TypeID        string
	CategoryID    string
	SubcategoryID string
	Amount        core.Money
	Comment       string
}

// EntryPatch lists the entry fields to overwrite; nil fields are kept.
type EntryPatch struct {
	Date          *core.Date
	StatusID      *string
	TypeID        *string
	CategoryID    *string
	SubcategoryID *string
	Amount        *core.Money
	Comment       *string
}

func (p EntryPatch) apply(e core.Entry) core.Entry {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.StatusID != nil {
		e.StatusID = strings.TrimSpace(*p.StatusID)
	}
	if p.TypeID != nil {
		e.TypeID = strings.TrimSpace(*p.TypeID)
	}
	if p.CategoryID != nil {
		e.CategoryID = strings.TrimSpace(*p.CategoryID)
	}
	if p.SubcategoryID != nil {
		e.SubcategoryID = strings.TrimSpace(*p.SubcategoryID)
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Comment != nil {
		e.Comment = strings.TrimSpace(*p.Comment)
	}
	return e
}

func (p EntryPatch) touchesTaxonomy() bool {
	return p.TypeID != nil || p.CategoryID != nil || p.SubcategoryID != nil
}

// Entry looks up one entry by id.
func (s *Store) Entry(id string) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.entryIndex(id)
	if i < 0 {
		return core.Entry{}, fmt.Errorf("entry %q: %w", id, core.ErrNotFound)
	}
	return s.entries[i], nil
}

// AddEntry validates in, assigns a fresh id and CreatedAt, and appends the entry.
func (s *Store) AddEntry(in EntryInput) (core.Entry, error) {
	e := EntryPatch{
		Date:          &in.Date,
		StatusID:      &in.StatusID,
		TypeID:        &in.TypeID,
		CategoryID:    &in.CategoryID,
		SubcategoryID: &in.SubcategoryID,
		Amount:        &in.Amount,
		Comment:       &in.Comment,
	}.apply(core.Entry{})

	s.mu.Lock()
	if err := s.checkEntry(e, true, true); err != nil {
		return core.Entry{}, s.reject(log.OpCreate, CollectionEntries, fmt.Errorf("add entry: %w", err))
	}
	e.ID = s.newID(CollectionEntries)
	e.CreatedAt = s.now()
	s.entries = appended(s.entries, e)
	s.commit(EventAdded, CollectionEntries, e.ID)
	return e, nil
}

// UpdateEntry merges p into the entry with the given id. An unknown id leaves
// the store untouched and reports core.ErrNotFound; a patch that changes
// nothing emits no event.
func (s *Store) UpdateEntry(id string, p EntryPatch) (core.Entry, error) {
	s.mu.Lock()
	i := s.entryIndex(id)
	if i < 0 {
		return core.Entry{}, s.reject(log.OpUpdate, CollectionEntries, fmt.Errorf("update entry %q: %w", id, core.ErrNotFound))
	}
	e := p.apply(s.entries[i])
	if err := s.checkEntry(e, p.StatusID != nil, p.touchesTaxonomy()); err != nil {
		return core.Entry{}, s.reject(log.OpUpdate, CollectionEntries, fmt.Errorf("update entry %q: %w", id, err))
	}
	if e == s.entries[i] {
		s.mu.Unlock()
		return e, nil
	}
	s.entries = replaced(s.entries, i, e)
	s.commit(EventUpdated, CollectionEntries, id)
	return e, nil
}

// DeleteEntry removes the entry with the given id. Deleting an unknown id is a
// no-op.
func (s *Store) DeleteEntry(id string) error {
	s.mu.Lock()
	i := s.entryIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.entries = removed(s.entries, i)
	s.commit(EventDeleted, CollectionEntries, id)
	return nil
}

func (s *Store) entryIndex(id string) int {
	return slices.IndexFunc(s.entries, func(e core.Entry) bool { return e.ID == id })
}

// checkEntry must be called with mu held. References that are not being
// written are not re-checked, so entries whose status was deleted can still
// be edited.
func (s *Store) checkEntry(e core.Entry, status, taxonomy bool) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if status {
		if _, ok := s.ref.Status(e.StatusID); !ok {
			return fmt.Errorf("%w: unknown status %q", core.ErrInvalidReference, e.StatusID)
		}
	}
	if !taxonomy {
		return nil
	}
	if _, ok := s.ref.Type(e.TypeID); !ok {
		return fmt.Errorf("%w: unknown type %q", core.ErrInvalidReference, e.TypeID)
	}
	c, ok := s.ref.Category(e.CategoryID)
	if !ok {
		return fmt.Errorf("%w: unknown category %q", core.ErrInvalidReference, e.CategoryID)
	}
	if c.TypeID != e.TypeID {
		return fmt.Errorf("%w: category %q does not belong to type %q", core.ErrInvalidReference, c.ID, e.TypeID)
	}
	sc, ok := s.ref.Subcategory(e.SubcategoryID)
	if !ok {
		return fmt.Errorf("%w: unknown subcategory %q", core.ErrInvalidReference, e.SubcategoryID)
	}
	if sc.CategoryID != e.CategoryID {
		return fmt.Errorf("%w: subcategory %q does not belong to category %q", core.ErrInvalidReference, sc.ID, e.CategoryID)
	}
	return nil
}
