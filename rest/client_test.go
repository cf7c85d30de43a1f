package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"octane-sdk/internal/config"
	"octane-sdk/octane"
	"octane-sdk/query"
)

func testConfig(server *httptest.Server) *config.Config {
	u, _ := url.Parse(server.URL)
	host, portStr, _ := strings.Cut(u.Host, ":")
	port, _ := strconv.Atoi(portStr)
	return &config.Config{
		Host:        host,
		Protocol:    "http",
		Port:        port,
		SharedSpace: 1001,
		Workspace:   1002,
		Auth:        config.AuthConfig{Username: "sdk-user", Password: "sdk-pass"},
	}
}

func signInHandler(cookie string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "LWSSO_COOKIE_KEY", Value: cookie})
	}
}

func TestRequestsRequireSignIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request before sign-in: %s", r.URL.Path)
	}))
	defer server.Close()

	c, err := NewClient(testConfig(server), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Get(context.Background(), "defects", 5); !errors.Is(err, octane.ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestCRUDRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /authentication/sign_in", signInHandler("s"))
	mux.HandleFunc("GET /api/shared_spaces/1001/workspaces/1002/defects", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != `"severity EQ ^high^"` {
			t.Errorf("query param = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %q", got)
		}
		w.Write([]byte(`{"total_count":12,"data":[{"id":"1"},{"id":"2"}]}`))
	})
	mux.HandleFunc("GET /api/shared_spaces/1001/workspaces/1002/defects/7", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"7","name":"broken login"}`))
	})
	mux.HandleFunc("POST /api/shared_spaces/1001/workspaces/1002/defects", func(w http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Data []map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil || len(envelope.Data) != 1 {
			t.Errorf("create body: %v / %v", envelope, err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"total_count":1,"data":[{"id":"99","type":"defect"}]}`))
	})
	mux.HandleFunc("PUT /api/shared_spaces/1001/workspaces/1002/defects/99", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"99"}`))
	})
	mux.HandleFunc("DELETE /api/shared_spaces/1001/workspaces/1002/defects/99", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := NewClient(testConfig(server), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	list, err := c.GetAll(ctx, "defects", ListOptions{
		Limit:  2,
		Fields: []string{"id", "name"},
		Query:  query.Field("severity").Equal("high"),
	})
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if list.TotalCount != 12 || len(list.Data) != 2 {
		t.Errorf("GetAll = %+v", list)
	}

	one, err := c.Get(ctx, "defects", 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if one["name"] != "broken login" {
		t.Errorf("Get = %v", one)
	}

	created, err := c.Create(ctx, "defects", map[string]any{"name": "new defect"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created["id"] != "99" {
		t.Errorf("Create = %v (singleton not unwrapped)", created)
	}

	if _, err := c.Update(ctx, "defects", 99, map[string]any{"name": "renamed"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := c.Delete(ctx, "defects", 99); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestHandlerReauthenticatesOnceOn401(t *testing.T) {
	var signIns, dataCalls atomic.Int32
	valid := atomic.Bool{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /authentication/sign_in", func(w http.ResponseWriter, r *http.Request) {
		if signIns.Add(1) > 1 {
			valid.Store(true)
		}
		http.SetCookie(w, &http.Cookie{Name: "LWSSO_COOKIE_KEY", Value: "s"})
	})
	mux.HandleFunc("GET /api/shared_spaces/1001/workspaces/1002/defects/5", func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
		if !valid.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"5"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := NewClient(testConfig(server), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	got, err := c.Get(ctx, "defects", 5)
	if err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if got["id"] != "5" {
		t.Errorf("Get = %v", got)
	}
	if n := signIns.Load(); n != 2 { // initial plus one re-auth
		t.Errorf("sign-ins = %d, want 2", n)
	}
	if n := dataCalls.Load(); n != 2 { // original plus one replay
		t.Errorf("data calls = %d, want 2", n)
	}
}

func TestHandlerFailedReauthSurfacesOriginal401(t *testing.T) {
	var dataCalls atomic.Int32
	signInOK := atomic.Bool{}
	signInOK.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /authentication/sign_in", func(w http.ResponseWriter, r *http.Request) {
		if !signInOK.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "LWSSO_COOKIE_KEY", Value: "s"})
	})
	mux.HandleFunc("GET /api/shared_spaces/1001/workspaces/1002/defects/5", func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := NewClient(testConfig(server), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	signInOK.Store(false)

	_, err = c.Get(ctx, "defects", 5)
	var serr *octane.StatusError
	if !errors.As(err, &serr) || !serr.Unauthorized() {
		t.Fatalf("err = %v, want 401 StatusError", err)
	}
	if n := dataCalls.Load(); n != 1 {
		t.Errorf("data calls = %d, want 1 (no replay after failed re-auth)", n)
	}
	if _, err := c.Get(ctx, "defects", 5); !errors.Is(err, octane.ErrNotAuthenticated) {
		t.Errorf("after failed re-auth err = %v, want ErrNotAuthenticated", err)
	}
}

func TestHandlerSecond401IsTerminal(t *testing.T) {
	var signIns, dataCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /authentication/sign_in", func(w http.ResponseWriter, r *http.Request) {
		signIns.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "LWSSO_COOKIE_KEY", Value: "s"})
	})
	mux.HandleFunc("GET /api/shared_spaces/1001/workspaces/1002/defects/5", func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := NewClient(testConfig(server), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	_, err = c.Get(ctx, "defects", 5)
	var serr *octane.StatusError
	if !errors.As(err, &serr) || !serr.Unauthorized() {
		t.Fatalf("err = %v, want 401 StatusError", err)
	}
	if n := signIns.Load(); n != 2 {
		t.Errorf("sign-ins = %d, want 2", n)
	}
	if n := dataCalls.Load(); n != 2 {
		t.Errorf("data calls = %d, want 2", n)
	}
}

func TestSignOutClearsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /authentication/sign_in", signInHandler("s"))
	mux.HandleFunc("POST /authentication/sign_out", func(w http.ResponseWriter, r *http.Request) {})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := NewClient(testConfig(server), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := c.Get(ctx, "defects", 1); !errors.Is(err, octane.ErrNotAuthenticated) {
		t.Errorf("after sign-out err = %v, want ErrNotAuthenticated", err)
	}
}
