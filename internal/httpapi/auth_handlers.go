package httpapi

import (
	"net/http"
	"time"

	"github.com/langalex/henry/internal/auth"
)

type signupRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type loginRequest struct {
	Email string `json:"email"`
}

type meResponse struct {
	auth.User
	Roles     []auth.Role `json:"roles"`
	IsAdmin   bool        `json:"is_admin"`
	ExpiresAt time.Time   `json:"session_expires_at"`
}

func (a *API) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.opts.Auth.Signup(r.Context(), req.Email, req.Name)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) requestLoginLink(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.opts.Auth.RequestLoginLink(r.Context(), req.Email); err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "sent"})
}

// verify is the target of the mailed link: it logs the browser in and sends it
// on to the app.
func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	secret, p, err := a.opts.Auth.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	setRequestUser(r.Context(), p.User.ID)
	a.setCookie(w, secret, p.Session.ExpiresAt)
	http.Redirect(w, r, a.appURL("/events"), http.StatusSeeOther)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.opts.Auth.Logout(r.Context()); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	roles := p.Roles
	if roles == nil {
		roles = []auth.Role{}
	}
	writeJSON(w, http.StatusOK, meResponse{User: p.User, Roles: roles, IsAdmin: p.IsAdmin(), ExpiresAt: p.Session.ExpiresAt})
}
