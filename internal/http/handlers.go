package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
)

// respond writes v with status, or the mapped error when err is set.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(status).Body(v).Write(w)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	resp := ErrorFromDomain(err)
	if resp.statusCode >= http.StatusInternalServerError {
		fields := log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
			WithErrorType(log.ErrorTypeInternal)
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err, operationFor(r.Method), fields)
	} else {
		log.FromContext(ctx).DebugContext(ctx, "Request rejected",
			log.FieldError, err.Error(),
			log.FieldStatusCode, resp.statusCode)
	}
	resp.Write(w)
}

func operationFor(method string) string {
	switch method {
	case http.MethodPost:
		return log.OpCreate
	case http.MethodPatch, http.MethodPut:
		return log.OpUpdate
	case http.MethodDelete:
		return log.OpDelete
	default:
		return log.OpRead
	}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every registered dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{"store": "ok"}
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	entries, rd := s.store.Snapshot()
	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status": status,
		"checks": checks,
		"records": map[string]int{
			"entries":       len(entries),
			"statuses":      len(rd.Statuses),
			"types":         len(rd.Types),
			"categories":    len(rd.Categories),
			"subcategories": len(rd.Subcategories),
		},
		"summary_cache_size": s.summaries.Size(),
	}).Write(w)
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.store.ReferenceData()).Write(w)
}

// Statuses

func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.store.ReferenceData().Statuses).Write(w)
}

func (s *Server) handleCreateStatus(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.store.AddStatus(req.input())
	s.respond(w, r, http.StatusCreated, st, err)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.store.UpdateStatus(chi.URLParam(r, "id"), ledger.NamePatch{Name: req.Name})
	s.respond(w, r, http.StatusOK, st, err)
}

func (s *Server) handleDeleteStatus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusNoContent, nil, s.store.DeleteStatus(chi.URLParam(r, "id")))
}

// Transaction types

func (s *Server) handleListTypes(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.store.ReferenceData().Types).Write(w)
}

func (s *Server) handleCreateType(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.store.AddType(req.input())
	s.respond(w, r, http.StatusCreated, t, err)
}

func (s *Server) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.store.UpdateType(chi.URLParam(r, "id"), ledger.NamePatch{Name: req.Name})
	s.respond(w, r, http.StatusOK, t, err)
}

func (s *Server) handleDeleteType(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusNoContent, nil, s.store.DeleteType(chi.URLParam(r, "id")))
}

func (s *Server) handleCategoriesByType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rd := s.store.ReferenceData()
	if _, ok := rd.Type(id); !ok {
		s.writeError(w, r, fmt.Errorf("type %q: %w", id, core.ErrNotFound))
		return
	}
	NewJSONResponse().Body(rd.CategoriesByType(id)).Write(w)
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.store.ReferenceData().Categories).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.store.AddCategory(req.input())
	s.respond(w, r, http.StatusCreated, c, err)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.store.UpdateCategory(chi.URLParam(r, "id"), ledger.CategoryPatch{Name: req.Name, TypeID: req.TypeID})
	s.respond(w, r, http.StatusOK, c, err)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusNoContent, nil, s.store.DeleteCategory(chi.URLParam(r, "id")))
}

func (s *Server) handleSubcategoriesByCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rd := s.store.ReferenceData()
	if _, ok := rd.Category(id); !ok {
		s.writeError(w, r, fmt.Errorf("category %q: %w", id, core.ErrNotFound))
		return
	}
	NewJSONResponse().Body(rd.SubcategoriesByCategory(id)).Write(w)
}

// Subcategories

func (s *Server) handleListSubcategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.store.ReferenceData().Subcategories).Write(w)
}

func (s *Server) handleCreateSubcategory(w http.ResponseWriter, r *http.Request) {
	var req subcategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sc, err := s.store.AddSubcategory(req.input())
	s.respond(w, r, http.StatusCreated, sc, err)
}

func (s *Server) handleUpdateSubcategory(w http.ResponseWriter, r *http.Request) {
	var req subcategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sc, err := s.store.UpdateSubcategory(chi.URLParam(r, "id"), ledger.SubcategoryPatch{Name: req.Name, CategoryID: req.CategoryID})
	s.respond(w, r, http.StatusOK, sc, err)
}

func (s *Server) handleDeleteSubcategory(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusNoContent, nil, s.store.DeleteSubcategory(chi.URLParam(r, "id")))
}

// Entries

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	f, err := ParseEntryFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	matched, f := s.store.FilterEntries(f)
	rd := s.store.ReferenceData()

	body := entriesBody{
		Filter:  newFilterBody(f),
		Count:   len(matched),
		Entries: make([]entryRow, 0, len(matched)),
	}
	for _, e := range matched {
		body.Entries = append(body.Entries, newEntryRow(e, rd))
	}
	NewJSONResponse().Body(body).Write(w)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.Entry(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newEntryRow(e, s.store.ReferenceData())).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.store.AddEntry(in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/entries/"+e.ID).
		Body(newEntryRow(e, s.store.ReferenceData())).
		Write(w)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := req.patch()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.store.UpdateEntry(chi.URLParam(r, "id"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newEntryRow(e, s.store.ReferenceData())).Write(w)
}

// handleDeleteEntry is idempotent: deleting a missing entry is still a 204.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusNoContent, nil, s.store.DeleteEntry(chi.URLParam(r, "id")))
}

// Reports

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := ParseEntryFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	gen, entries, rd := s.snapshot()
	f = f.Normalize(rd)
	sum := s.summary(r.Context(), f, gen, entries, rd)
	NewJSONResponse().Body(newSummaryBody(f, sum)).Write(w)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sel, err := req.selection()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rd := s.store.ReferenceData()
	sel = sel.Normalize(rd)
	NewJSONResponse().Body(newSelectionBody(sel, rd)).Write(w)
}
