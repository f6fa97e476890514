package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/langalex/henry/internal/auth"
)

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.opts.Auth.ListUsers(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	m, err := a.opts.Auth.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var in auth.UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.opts.Auth.CreateUser(r.Context(), in)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	var in auth.UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.opts.Auth.UpdateUser(r.Context(), chi.URLParam(r, "userID"), in)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.opts.Auth.DeleteUser(r.Context(), chi.URLParam(r, "userID")); err != nil {
		a.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
