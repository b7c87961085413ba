package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"photoshare.app/internal/auth"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

// statusFor maps service errors to a status code and a client-facing message.
// Unknown errors become 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, auth.ErrEmailNotConfirmed):
		return http.StatusUnauthorized, "Email not confirmed"
	case errors.Is(err, auth.ErrUserNotActive):
		return http.StatusForbidden, "User is not active"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "Operation forbidden"
	case errors.Is(err, auth.ErrInvalidEmailToken):
		return http.StatusUnprocessableEntity, "Invalid token for email verification"
	case errors.Is(err, auth.ErrVerificationFailed):
		return http.StatusBadRequest, "Verification error"
	case errors.Is(err, auth.ErrAlreadyExists):
		return http.StatusConflict, "Account already exists"
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), "auth: ")
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail writes err through statusFor. Server-side failures are logged with the
// request id; client errors are not.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	switch code {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	case http.StatusInternalServerError:
		a.log.Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, r, code, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
