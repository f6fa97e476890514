package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/langalex/henry/internal/ledger"
)

// selfParam stands for the caller in assignment paths.
const selfParam = "me"

type assignRequest struct {
	UserID string `json:"user_id"`
}

func kindParam(r *http.Request) (ledger.Kind, bool) {
	switch chi.URLParam(r, "kind") {
	case "jobs":
		return ledger.KindJob, true
	case "materials":
		return ledger.KindMaterial, true
	}
	return "", false
}

func (a *API) listAssignments(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	list, err := a.opts.Ledger.Assignments(r.Context(), kind, chi.URLParam(r, "resourceID"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": orEmpty(list)})
}

// assign takes an optional body naming the user; without one the caller is
// assigned.
func (a *API) assign(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	var req assignRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.UserID == selfParam {
		req.UserID = ""
	}
	as, err := a.opts.Ledger.Assign(r.Context(), kind, chi.URLParam(r, "resourceID"), req.UserID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, as)
}

func (a *API) unassign(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := chi.URLParam(r, "userID")
	if userID == selfParam {
		userID = ""
	}
	removed, err := a.opts.Ledger.Unassign(r.Context(), kind, chi.URLParam(r, "resourceID"), userID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
