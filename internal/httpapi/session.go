package httpapi

import (
	"net/http"
	"time"

	"github.com/langalex/henry/internal/auth"
)

// withSession resolves the session cookie into a principal. Renewed sessions
// get a fresh cookie; unknown or expired ones have theirs cleared.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(a.opts.CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		p, ok, err := a.opts.Auth.ResolveSession(r.Context(), c.Value)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		if !ok {
			a.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if p.Renewed {
			a.setCookie(w, c.Value, p.Session.ExpiresAt)
		}
		setRequestUser(r.Context(), p.User.ID)
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), p)))
	})
}

func (a *API) setCookie(w http.ResponseWriter, secret string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.opts.CookieName,
		Value:    secret,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
