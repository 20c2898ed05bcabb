package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hpn/preaid-gateway/internal/auth"
	"github.com/hpn/preaid-gateway/internal/history"
)

func newHistoryRouter(t *testing.T, store history.Store) (*gin.Engine, *auth.Verifier) {
	t.Helper()
	verifier, err := auth.NewVerifier("history-test-secret", "")
	if err != nil {
		t.Fatal(err)
	}

	h := NewHistoryHandler(store, 2, discardLogger())
	r := gin.New()
	group := r.Group("/api/history", AuthMiddleware(verifier))
	group.GET("", h.HandleList)
	group.POST("", h.HandleSave)
	group.DELETE("/:id", h.HandleDelete)
	return r, verifier
}

func bearer(t *testing.T, v *auth.Verifier, userID string) http.Header {
	t.Helper()
	token, err := v.IssueToken(userID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestHistoryRoutes_RequireAuth(t *testing.T) {
	r, _ := newHistoryRouter(t, newMemoryStore())

	other, err := auth.NewVerifier("some-other-secret", "")
	if err != nil {
		t.Fatal(err)
	}
	foreign, _ := other.IssueToken("user-1", time.Hour)

	tests := []struct {
		name      string
		header    http.Header
		wantError string
	}{
		{"no header", nil, "Authentication required"},
		{"guest", http.Header{"Authorization": {"Guest"}}, "Authentication required"},
		{"basic scheme", http.Header{"Authorization": {"Basic dXNlcjpwYXNz"}}, "Authentication required"},
		{"garbage token", http.Header{"Authorization": {"Bearer garbage"}}, "Invalid token"},
		{"wrong secret", http.Header{"Authorization": {"Bearer " + foreign}}, "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, method := range []string{http.MethodGet, http.MethodPost} {
				w := doRequest(r, method, "/api/history", `{"issue":"a","advice":"b"}`, tt.header)
				if w.Code != http.StatusUnauthorized {
					t.Fatalf("%s status = %d, want 401", method, w.Code)
				}
				if body := decodeJSON(t, w); body["error"] != tt.wantError {
					t.Errorf("%s error = %v, want %q", method, body["error"], tt.wantError)
				}
			}
		})
	}
}

func TestHistoryHandler_SaveListDelete(t *testing.T) {
	store := newMemoryStore()
	r, verifier := newHistoryRouter(t, store)
	alice := bearer(t, verifier, "alice")
	bob := bearer(t, verifier, "bob")

	for _, issue := range []string{"sprained ankle", "nosebleed", "bee sting"} {
		w := doRequest(r, http.MethodPost, "/api/history", jsonBody(t, map[string]string{"issue": issue, "advice": "advice for " + issue}), alice)
		if w.Code != http.StatusOK {
			t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
		}
		if body := decodeJSON(t, w); body["success"] != true || body["id"] == "" {
			t.Errorf("save body = %v", body)
		}
	}

	w := doRequest(r, http.MethodGet, "/api/history", "", alice)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var items []history.Consultation
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want list limit 2", len(items))
	}
	if items[0].Issue != "bee sting" || items[1].Issue != "nosebleed" {
		t.Errorf("items = %+v, want newest first", items)
	}

	w = doRequest(r, http.MethodGet, "/api/history", "", bob)
	if w.Body.String() != "[]" {
		t.Errorf("bob's history = %s, want []", w.Body.String())
	}

	target := items[0].ID
	if w := doRequest(r, http.MethodDelete, "/api/history/"+target, "", bob); w.Code != http.StatusNotFound {
		t.Errorf("foreign delete status = %d, want 404", w.Code)
	}
	if w := doRequest(r, http.MethodDelete, "/api/history/"+target, "", alice); w.Code != http.StatusOK {
		t.Errorf("delete status = %d, want 200", w.Code)
	}
	w = doRequest(r, http.MethodDelete, "/api/history/"+target, "", alice)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
	if body := decodeJSON(t, w); body["error"] != "History item not found" {
		t.Errorf("body = %v", body)
	}
}

func TestHistoryHandler_SaveValidation(t *testing.T) {
	r, verifier := newHistoryRouter(t, newMemoryStore())
	alice := bearer(t, verifier, "alice")

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"issue":`},
		{"missing advice", `{"issue":"burn"}`},
		{"missing issue", `{"advice":"cool it"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/history", tt.body, alice)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHistoryHandler_StoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.failAll = errors.New("database is locked")
	r, verifier := newHistoryRouter(t, store)
	alice := bearer(t, verifier, "alice")

	tests := []struct {
		method    string
		path      string
		body      string
		wantError string
	}{
		{http.MethodGet, "/api/history", "", "Failed to load history"},
		{http.MethodPost, "/api/history", `{"issue":"a","advice":"b"}`, "Failed to save consultation"},
		{http.MethodDelete, "/api/history/c-1", "", "Failed to delete history item"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := doRequest(r, tt.method, tt.path, tt.body, alice)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", w.Code)
			}
			if body := decodeJSON(t, w); body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
		})
	}
}
