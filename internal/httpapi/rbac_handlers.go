package httpapi

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"photoshare.app/internal/auth"
)

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, viewOf(p))
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset must be an integer")
		return
	}
	users, err := a.svc.ListUsers(r.Context(), limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, viewOf(u))
	}
	writeJSON(w, http.StatusOK, out)
}

type banRequest struct {
	Email string `json:"email"`
}

func (a *API) banUser(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	changed, err := a.svc.Ban(r.Context(), req.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !changed {
		writeMessage(w, http.StatusOK, "User is already banned")
		return
	}
	a.auditEvent(r, "users.ban", zap.String("target", req.Email))
	writeMessage(w, http.StatusOK, "User has been banned")
}

type roleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *API) makeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "role must be one of user, moderator, admin")
		return
	}
	changed, err := a.svc.ChangeRole(r.Context(), req.Email, role)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !changed {
		writeMessage(w, http.StatusOK, "User already has role "+string(role))
		return
	}
	a.auditEvent(r, "users.role.change", zap.String("target", req.Email), zap.String("role", string(role)))
	writeMessage(w, http.StatusOK, "User role changed to "+string(role))
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
