// Package http provides the JSON API over the ledger store.
//
// This file implements request decoding: JSON bodies into store inputs and
// query strings into entry filters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

const maxBodyBytes = 1 << 20

var (
	errMalformedRequest = errors.New("malformed request")
	errInvalidParameter = errors.New("invalid parameter")
)

// decodeJSON reads exactly one JSON object into dst. Domain validation errors
// raised while decoding (bad dates) are passed through untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if core.KindOf(err) == core.KindValidation {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errMalformedRequest)
		}
		return fmt.Errorf("%w: %v", errMalformedRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errMalformedRequest)
	}
	return nil
}

// amount accepts both a JSON number (12.5) and a string ("12,50").
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: amount must be a number or a string", core.ErrInvalidAmount)
	}
	*a = amount(n)
	return nil
}

func (a amount) money() (core.Money, error) {
	return core.ParseAmount(string(a))
}

type nameRequest struct {
	Name *string `json:"name"`
}

func (req nameRequest) input() ledger.NameInput {
	if req.Name == nil {
		return ledger.NameInput{}
	}
	return ledger.NameInput{Name: *req.Name}
}

type categoryRequest struct {
	Name   *string `json:"name"`
	TypeID *string `json:"type_id"`
}

func (req categoryRequest) input() ledger.CategoryInput {
	return ledger.CategoryInput{Name: deref(req.Name), TypeID: deref(req.TypeID)}
}

type subcategoryRequest struct {
	Name       *string `json:"name"`
	CategoryID *string `json:"category_id"`
}

func (req subcategoryRequest) input() ledger.SubcategoryInput {
	return ledger.SubcategoryInput{Name: deref(req.Name), CategoryID: deref(req.CategoryID)}
}

// entryRequest serves both create (every field required) and patch (absent
// fields are kept).
type entryRequest struct {
	Date          *core.Date `json:"date"`
	StatusID      *string    `json:"status_id"`
	TypeID        *string    `json:"type_id"`
	CategoryID    *string    `json:"category_id"`
	SubcategoryID *string    `json:"subcategory_id"`
	Amount        *amount    `json:"amount"`
	Comment       *string    `json:"comment"`
}

func (req entryRequest) input() (ledger.EntryInput, error) {
	in := ledger.EntryInput{
		StatusID:      deref(req.StatusID),
		TypeID:        deref(req.TypeID),
		CategoryID:    deref(req.CategoryID),
		SubcategoryID: deref(req.SubcategoryID),
		Comment:       sanitizeInput(deref(req.Comment)),
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	if req.Amount == nil {
		return in, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}
	m, err := req.Amount.money()
	if err != nil {
		return in, err
	}
	in.Amount = m
	return in, nil
}

func (req entryRequest) patch() (ledger.EntryPatch, error) {
	p := ledger.EntryPatch{
		Date:          req.Date,
		StatusID:      req.StatusID,
		TypeID:        req.TypeID,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
	}
	if req.Comment != nil {
		c := sanitizeInput(*req.Comment)
		p.Comment = &c
	}
	if req.Amount != nil {
		m, err := req.Amount.money()
		if err != nil {
			return p, err
		}
		p.Amount = &m
	}
	return p, nil
}

type selectionRequest struct {
	Mode          string `json:"mode"`
	TypeID        string `json:"type_id"`
	CategoryID    string `json:"category_id"`
	SubcategoryID string `json:"subcategory_id"`
}

func (req selectionRequest) selection() (ledger.Selection, error) {
	sel := ledger.Selection{
		TypeID:        strings.TrimSpace(req.TypeID),
		CategoryID:    strings.TrimSpace(req.CategoryID),
		SubcategoryID: strings.TrimSpace(req.SubcategoryID),
	}
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "", "form":
		sel.Mode = ledger.FormMode
	case "filter":
		sel.Mode = ledger.FilterMode
	default:
		return sel, fmt.Errorf("%w: mode must be form or filter, got %q", errInvalidParameter, req.Mode)
	}
	return sel, nil
}

// ParseEntryFilter reads from/to (YYYY-MM-DD) and the status, type, category
// and subcategory ids from a query string. Blank values do not filter.
func ParseEntryFilter(q url.Values) (ledger.EntryFilter, error) {
	f := ledger.EntryFilter{
		StatusID:      strings.TrimSpace(q.Get("status")),
		TypeID:        strings.TrimSpace(q.Get("type")),
		CategoryID:    strings.TrimSpace(q.Get("category")),
		SubcategoryID: strings.TrimSpace(q.Get("subcategory")),
	}
	var err error
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if f.From, err = core.ParseDate(v); err != nil {
			return f, fmt.Errorf("from: %w", err)
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if f.To, err = core.ParseDate(v); err != nil {
			return f, fmt.Errorf("to: %w", err)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return f, fmt.Errorf("%w: to %s is before from %s", errInvalidParameter, f.To, f.From)
	}
	return f, nil
}

// filterKey identifies a normalized filter in the summary cache.
func filterKey(f ledger.EntryFilter) string {
	return strings.Join([]string{
		f.From.String(), f.To.String(), f.StatusID, f.TypeID, f.CategoryID, f.SubcategoryID,
	}, "|")
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
