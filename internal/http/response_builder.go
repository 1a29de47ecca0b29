// Package http provides the JSON API over the ledger store.
//
// This file implements the Builder Pattern for JSON responses and the mapping
// from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response. Responses without a payload (204) carry no
// body and no content type.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, kind, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: message, Kind: kind})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, string(core.KindValidation), message)
}

func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, string(core.KindConflict), message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, string(core.KindNotFound), message)
}

// InternalServerError never echoes the underlying error to the client.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, string(core.KindInternal), "internal error")
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later")
}

// ErrorFromDomain picks the response for err.
func ErrorFromDomain(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, errMalformedRequest):
		return BadRequestError(err.Error())
	case errors.Is(err, errInvalidParameter):
		return UnprocessableEntityError(err.Error())
	}
	switch core.KindOf(err) {
	case core.KindValidation:
		return UnprocessableEntityError(err.Error())
	case core.KindConflict:
		return ConflictError(err.Error())
	case core.KindNotFound:
		return NotFoundError(err.Error())
	default:
		return InternalServerError()
	}
}

// Response payloads

type ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type entryRow struct {
	ID          string    `json:"id"`
	Date        core.Date `json:"date"`
	Status      ref       `json:"status"`
	Type        ref       `json:"type"`
	Category    ref       `json:"category"`
	Subcategory ref       `json:"subcategory"`
	Amount      string    `json:"amount"`
	AmountCents int64     `json:"amount_cents"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

// newEntryRow resolves every reference to its current name; dangling ones
// read "Unknown".
func newEntryRow(e core.Entry, rd core.ReferenceData) entryRow {
	return entryRow{
		ID:          e.ID,
		Date:        e.Date,
		Status:      ref{ID: e.StatusID, Name: rd.StatusName(e.StatusID)},
		Type:        ref{ID: e.TypeID, Name: rd.TypeName(e.TypeID)},
		Category:    ref{ID: e.CategoryID, Name: rd.CategoryName(e.CategoryID)},
		Subcategory: ref{ID: e.SubcategoryID, Name: rd.SubcategoryName(e.SubcategoryID)},
		Amount:      e.Amount.String(),
		AmountCents: e.Amount.Cents,
		Comment:     e.Comment,
		CreatedAt:   e.CreatedAt.UTC(),
	}
}

type filterBody struct {
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	StatusID      string `json:"status_id,omitempty"`
	TypeID        string `json:"type_id,omitempty"`
	CategoryID    string `json:"category_id,omitempty"`
	SubcategoryID string `json:"subcategory_id,omitempty"`
}

func newFilterBody(f ledger.EntryFilter) filterBody {
	return filterBody{
		From:          f.From.String(),
		To:            f.To.String(),
		StatusID:      f.StatusID,
		TypeID:        f.TypeID,
		CategoryID:    f.CategoryID,
		SubcategoryID: f.SubcategoryID,
	}
}

type entriesBody struct {
	Filter  filterBody `json:"filter"`
	Count   int        `json:"count"`
	Entries []entryRow `json:"entries"`
}

type amountRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
}

type summaryBody struct {
	Filter     filterBody  `json:"filter"`
	Count      int         `json:"count"`
	ByType     []amountRow `json:"by_type"`
	ByCategory []amountRow `json:"by_category"`
}

func newSummaryBody(f ledger.EntryFilter, sum core.Summary) summaryBody {
	body := summaryBody{
		Filter:     newFilterBody(f),
		Count:      sum.Count,
		ByType:     make([]amountRow, 0, len(sum.ByType)),
		ByCategory: make([]amountRow, 0, len(sum.ByCategory)),
	}
	for _, t := range sum.ByType {
		body.ByType = append(body.ByType, amountRow{ID: t.ID, Name: t.Name, Amount: t.Amount.String(), AmountCents: t.Amount.Cents})
	}
	for _, c := range sum.ByCategory {
		body.ByCategory = append(body.ByCategory, amountRow{ID: c.ID, Name: c.Name, Amount: c.Amount.String(), AmountCents: c.Amount.Cents})
	}
	return body
}

type selectionBody struct {
	Mode          string             `json:"mode"`
	TypeID        string             `json:"type_id"`
	CategoryID    string             `json:"category_id"`
	SubcategoryID string             `json:"subcategory_id"`
	Categories    []core.Category    `json:"categories"`
	Subcategories []core.Subcategory `json:"subcategories"`
}

func newSelectionBody(sel ledger.Selection, rd core.ReferenceData) selectionBody {
	return selectionBody{
		Mode:          sel.Mode.String(),
		TypeID:        sel.TypeID,
		CategoryID:    sel.CategoryID,
		SubcategoryID: sel.SubcategoryID,
		Categories:    sel.EligibleCategories(rd),
		Subcategories: sel.EligibleSubcategories(rd),
	}
}
