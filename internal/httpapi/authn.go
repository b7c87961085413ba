package httpapi

import (
	"net/http"

	"photoshare.app/internal/auth"
)

const authHeader = "Authorization"

// requireAuth runs the gate and stores the principal and its access token in
// the request context.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(authHeader)
		p, err := a.gate.Authorize(r.Context(), header)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		token, _ := auth.BearerToken(header)
		ctx := auth.ContextWithPrincipal(r.Context(), p)
		ctx = auth.ContextWithAccessToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits requests whose principal passes gate. It must run after
// requireAuth; without a principal it answers 401.
func RequireRole(gate auth.RoleGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, r, http.StatusUnauthorized, "Not authenticated")
				return
			}
			if err := gate.Check(p); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				code, msg := statusFor(err)
				writeError(w, r, code, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
