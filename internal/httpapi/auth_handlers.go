package httpapi

import (
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"photoshare.app/internal/auth"
)

type userView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	Avatar    string    `json:"avatar,omitempty"`
	Active    bool      `json:"is_active"`
	Verified  bool      `json:"is_verified"`
	CreatedAt time.Time `json:"created_at"`
}

func viewOf(p auth.Principal) userView {
	return userView{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		Role:      p.Role,
		Avatar:    p.Avatar,
		Active:    p.Active,
		Verified:  p.Verified,
		CreatedAt: p.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func tokensOf(pair auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

func (a *API) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.svc.Register(r.Context(), auth.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Avatar:   req.Avatar,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.auditEvent(r, "auth.signup", zap.Int64("user_id", p.ID), zap.String("role", string(p.Role)))
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   viewOf(p),
		"detail": "User successfully created. Check your email for confirmation.",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// readLogin accepts a JSON body or an OAuth2 password form, where the email
// travels in the username field.
func readLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := decodeJSON(w, r, &req); err != nil {
			return req, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}
	if req.Email == "" {
		req.Email = req.Username
	}
	return req, nil
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	req, err := readLogin(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}
	pair, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.auditEvent(r, "auth.login", zap.String("email", strings.ToLower(strings.TrimSpace(req.Email))))
	writeJSON(w, http.StatusOK, tokensOf(pair))
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	token, err := auth.BearerToken(r.Header.Get(authHeader))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	pair, err := a.svc.Refresh(r.Context(), token)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.auditEvent(r, "auth.refresh")
	writeJSON(w, http.StatusOK, tokensOf(pair))
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	token, _ := auth.AccessTokenFromContext(r.Context())
	if err := a.svc.Logout(r.Context(), p, token); err != nil {
		a.fail(w, r, err)
		return
	}
	a.auditEvent(r, "auth.logout")
	writeMessage(w, http.StatusOK, "User has been logged out.")
}

func (a *API) confirmEmail(w http.ResponseWriter, r *http.Request) {
	already, err := a.svc.ConfirmEmail(r.Context(), r.PathValue("token"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if already {
		writeMessage(w, http.StatusOK, "Your email is already confirmed")
		return
	}
	writeMessage(w, http.StatusOK, "Email confirmed")
}

type requestEmailRequest struct {
	Email string `json:"email"`
}

func (a *API) requestEmail(w http.ResponseWriter, r *http.Request) {
	var req requestEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.RequestEmail(r.Context(), req.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Check your email for confirmation.")
}
