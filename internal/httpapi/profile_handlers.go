package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"photoshare.app/internal/auth"
)

// profileView is what other users may see about an account.
type profileView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      auth.Role `json:"role"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func profileOf(p auth.Principal) profileView {
	return profileView{
		ID:        p.ID,
		Username:  p.Username,
		Role:      p.Role,
		Avatar:    p.Avatar,
		CreatedAt: p.CreatedAt,
	}
}

type editMeRequest struct {
	Username string `json:"username"`
}

func (a *API) editMe(w http.ResponseWriter, r *http.Request) {
	var req editMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	updated, err := a.svc.EditUsername(r.Context(), p, req.Username)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if updated.Username != p.Username {
		a.auditEvent(r, "users.profile.edit", zap.String("username", updated.Username))
	}
	writeJSON(w, http.StatusOK, viewOf(updated))
}

func (a *API) searchUsers(w http.ResponseWriter, r *http.Request) {
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
	users, err := a.svc.SearchUsers(r.Context(), r.URL.Query().Get("username"), limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]profileView, 0, len(users))
	for _, u := range users {
		out = append(out, profileOf(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) userProfile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "id must be an integer")
		return
	}
	p, err := a.svc.UserByID(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileOf(p))
}
