package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"go.uber.org/zap"
)

func TestEditMeRenamesImmediately(t *testing.T) {
	api := newTestAPI(t)
	tokens := api.signupAndLogin("alice", "alice@example.com", "secret123")

	resp := api.get("/api/users/me", nil, bearer(tokens.AccessToken))
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.patch("/api/users/edit_me", map[string]string{"username": "alice_w"}, bearer(tokens.AccessToken))
	expectStatus(t, resp, http.StatusOK)
	var updated userView
	decodeBody(t, resp, &updated)
	if updated.Username != "alice_w" || updated.Email != "alice@example.com" {
		t.Fatalf("unexpected updated user: %+v", updated)
	}

	resp = api.get("/api/users/me", nil, bearer(tokens.AccessToken))
	expectStatus(t, resp, http.StatusOK)
	var me userView
	decodeBody(t, resp, &me)
	if me.Username != "alice_w" {
		t.Fatalf("expected cached profile to be refreshed, got %q", me.Username)
	}
	if api.audit.FilterField(zap.String("event", "users.profile.edit")).Len() != 1 {
		t.Fatalf("expected one profile edit audit entry")
	}

	resp = api.patch("/api/users/edit_me", map[string]string{"username": ""}, bearer(tokens.AccessToken))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = api.patch("/api/users/edit_me", map[string]string{"username": "x"}, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestSearchAndProfileLookup(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signupAndLogin("Alice", "alice@example.com", "secret123")
	api.signupAndLogin("malice", "malice@example.com", "secret123")
	api.signupAndLogin("bob", "bob@example.com", "secret123")

	resp := api.get("/api/users/search", url.Values{"username": {"ALIC"}}, bearer(admin.AccessToken))
	expectStatus(t, resp, http.StatusOK)
	var hits []map[string]any
	decodeBody(t, resp, &hits)
	if len(hits) != 2 || hits[0]["username"] != "Alice" || hits[1]["username"] != "malice" {
		t.Fatalf("unexpected search hits: %v", hits)
	}
	if _, ok := hits[0]["email"]; ok {
		t.Fatalf("public profiles must not carry email: %v", hits[0])
	}

	resp = api.get("/api/users/search", nil, bearer(admin.AccessToken))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	id := strconv.FormatInt(int64(hits[1]["id"].(float64)), 10)
	resp = api.get("/api/users/"+id, nil, bearer(admin.AccessToken))
	expectStatus(t, resp, http.StatusOK)
	var profile profileView
	decodeBody(t, resp, &profile)
	if profile.Username != "malice" || profile.Role != "user" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	resp = api.get("/api/users/999", nil, bearer(admin.AccessToken))
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = api.get("/api/users/abc", nil, bearer(admin.AccessToken))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	// literal routes still win over the id pattern
	resp = api.get("/api/users/me", nil, bearer(admin.AccessToken))
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.get("/api/users/"+id, nil, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}
