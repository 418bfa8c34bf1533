package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"authd/cmd/credential"
	"authd/cmd/internal/auth/admin"
	"authd/cmd/internal/auth/session"
	"authd/cmd/internal/auth/throttle"
	"authd/cmd/security/password"
)

func testHasher() password.Hasher {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return password.NewArgon2id(cfg)
}

type harness struct {
	srv   *httptest.Server
	store credential.Store
}

func newHarness(t *testing.T, cfg Config, opts ...HandlerOption) *harness {
	t.Helper()

	store, err := credential.NewSQLiteStore(filepath.Join(t.TempDir(), "authd.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	hasher := testHasher()

	sessCfg := session.DefaultConfig()
	sessCfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	tokens, err := session.NewPasetoV4PublicManager(sessCfg)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	auth, err := session.NewAuthenticator(sessCfg, store, hasher, tokens, nil)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}

	adminSvc := admin.NewService(store, hasher, nil)

	h, err := NewHandler(nil, cfg, auth, adminSvc, opts...)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	// Seed the initial admin directly at the store layer.
	rootHash, err := hasher.Hash("root password 1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := store.Create(context.Background(), "root", rootHash, credential.AuthorityAdmin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	return &harness{srv: srv, store: store}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (h *harness) login(t *testing.T, username, pw string) string {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/login", "", loginRequest{Username: username, Password: pw})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if out.Token == "" {
		t.Fatal("empty token")
	}
	return out.Token
}

func (h *harness) register(t *testing.T, username, pw string) {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/api/users", "",
		registerRequest{Username: username, Password: pw})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestLoginAndAuthenticate(t *testing.T) {
	h := newHarness(t, LoadConfigFromEnv())

	token := h.login(t, "root", "root password 1")

	resp := h.do(t, http.MethodGet, "/api/authenticate", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticate: status %d", resp.StatusCode)
	}
	var id identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id.Username != "root" || id.Authority != "ADMIN" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t, LoadConfigFromEnv())

	wrongPw := h.do(t, http.MethodPost, "/login", "", loginRequest{Username: "root", Password: "nope"})
	unknown := h.do(t, http.MethodPost, "/login", "", loginRequest{Username: "ghost", Password: "nope"})

	if wrongPw.StatusCode != http.StatusUnauthorized || unknown.StatusCode != http.StatusUnauthorized {
		t.Fatalf("statuses: %d vs %d", wrongPw.StatusCode, unknown.StatusCode)
	}
	if a, b := readBody(t, wrongPw), readBody(t, unknown); a != b {
		t.Fatalf("failure bodies differ:\n%s\n%s", a, b)
	}
}

func TestLoginRejectsMalformedRequests(t *testing.T) {
	h := newHarness(t, LoadConfigFromEnv())

	resp := h.do(t, http.MethodPost, "/login", "", loginRequest{Username: "root"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing password: status %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/login", bytes.NewReader([]byte("{not json")))
	raw, err := h.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json: status %d", raw.StatusCode)
	}
}

func TestAuthenticateRequiresValidToken(t *testing.T) {
	h := newHarness(t, LoadConfigFromEnv())

	if resp := h.do(t, http.MethodGet, "/api/authenticate", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", resp.StatusCode)
	}
	if resp := h.do(t, http.MethodGet, "/api/authenticate", "garbage", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", resp.StatusCode)
	}
}

func TestRegisterFlow(t *testing.T) {
	h := newHarness(t, LoadConfigFromEnv())

	// Registration needs no token and always yields a plain user.
	resp := h.do(t, http.MethodPost, "/api/users", "",
		registerRequest{Username: "bob", Password: "bob password 1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d", resp.StatusCode)
	}
	var created identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Username != "bob" || created.Authority != "USER" {
		t.Fatalf("unexpected created identity: %+v", created)
	}
	h.login(t, "bob", "bob password 1")

	// Duplicate username conflicts.
	resp = h.do(t, http.MethodPost, "/api/users", "",
		registerRequest{Username: "bob", Password: "other password 1"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate: status %d", resp.StatusCode)
	}

	// Weak password is a client error, not a crash.
	resp = h.do(t, http.MethodPost, "/api/users", "",
		registerRequest{Username: "carol", Password: "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("weak password: status %d", resp.StatusCode)
	}

	// Empty username is rejected before touching the store.
	resp = h.do(t, http.MethodPost, "/api/users", "",
		registerRequest{Username: "   ", Password: "carol password 1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank username: status %d", resp.StatusCode)
	}
}

func TestPasswordChange(t *testing.T) {
	h := newHarness(t, LoadConfigFromEnv())
	rootTok := h.login(t, "root", "root password 1")
	h.register(t, "bob", "bob password 1")
	h.register(t, "alice", "alice password 1")
	bobTok := h.login(t, "bob", "bob password 1")

	// Self-service change.
	resp := h.do(t, http.MethodPut, "/api/users/bob/password", bobTok,
		passwordChangeRequest{Password: "bob password 2"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("self change: status %d", resp.StatusCode)
	}
	if resp := h.do(t, http.MethodPost, "/login", "", loginRequest{Username: "bob", Password: "bob password 1"}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password still works: status %d", resp.StatusCode)
	}
	h.login(t, "bob", "bob password 2")

	// Changing someone else's password needs admin.
	resp = h.do(t, http.MethodPut, "/api/users/alice/password", bobTok,
		passwordChangeRequest{Password: "hijacked pass 1"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-user change: status %d", resp.StatusCode)
	}

	// Admin reset works, unknown target is 404.
	resp = h.do(t, http.MethodPut, "/api/users/alice/password", rootTok,
		passwordChangeRequest{Password: "alice password 2"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("admin reset: status %d", resp.StatusCode)
	}
	resp = h.do(t, http.MethodPut, "/api/users/ghost/password", rootTok,
		passwordChangeRequest{Password: "whatever pass 1"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ghost target: status %d", resp.StatusCode)
	}
}

func TestAuthorityChange(t *testing.T) {
	h := newHarness(t, LoadConfigFromEnv())
	rootTok := h.login(t, "root", "root password 1")
	h.register(t, "bob", "bob password 1")
	bobTok := h.login(t, "bob", "bob password 1")

	// Bob cannot promote himself.
	resp := h.do(t, http.MethodPut, "/api/users/bob/authority", bobTok,
		authorityChangeRequest{Authority: "ADMIN"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self promotion: status %d", resp.StatusCode)
	}

	// Admin promotes bob; an already-issued token picks up the new authority.
	resp = h.do(t, http.MethodPut, "/api/users/bob/authority", rootTok,
		authorityChangeRequest{Authority: "ADMIN"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("promotion: status %d", resp.StatusCode)
	}

	who := h.do(t, http.MethodGet, "/api/authenticate", bobTok, nil)
	var id identityResponse
	if err := json.NewDecoder(who.Body).Decode(&id); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id.Authority != "ADMIN" {
		t.Fatalf("stale authority on old token: %+v", id)
	}

	resp = h.do(t, http.MethodPut, "/api/users/ghost/authority", rootTok,
		authorityChangeRequest{Authority: "USER"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ghost target: status %d", resp.StatusCode)
	}
	resp = h.do(t, http.MethodPut, "/api/users/bob/authority", rootTok,
		authorityChangeRequest{Authority: "OVERLORD"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad level: status %d", resp.StatusCode)
	}
}

func TestDeleteUser(t *testing.T) {
	h := newHarness(t, LoadConfigFromEnv())
	rootTok := h.login(t, "root", "root password 1")
	h.register(t, "bob", "bob password 1")
	bobTok := h.login(t, "bob", "bob password 1")

	if resp := h.do(t, http.MethodDelete, "/api/users/root", bobTok, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin delete: status %d", resp.StatusCode)
	}

	if resp := h.do(t, http.MethodDelete, "/api/users/bob", rootTok, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	// Bob's still-valid token no longer resolves.
	if resp := h.do(t, http.MethodGet, "/api/authenticate", bobTok, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted user token: status %d", resp.StatusCode)
	}

	// Second delete reports the absence.
	if resp := h.do(t, http.MethodDelete, "/api/users/bob", rootTok, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("repeat delete: status %d", resp.StatusCode)
	}
}

func TestLoginThrottle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tcfg := throttle.DefaultConfig()
	tcfg.MaxPerUser = 2
	limiter := throttle.NewLimiter(tcfg, client, nil)

	h := newHarness(t, LoadConfigFromEnv(), WithLimiter(limiter))

	for i := 0; i < 2; i++ {
		if resp := h.do(t, http.MethodPost, "/login", "", loginRequest{Username: "root", Password: "wrong"}); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d", i, resp.StatusCode)
		}
	}

	resp := h.do(t, http.MethodPost, "/login", "", loginRequest{Username: "root", Password: "wrong"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}

	// The right password is also blocked while locked out.
	resp = h.do(t, http.MethodPost, "/login", "", loginRequest{Username: "root", Password: "root password 1"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for locked user, got %d", resp.StatusCode)
	}
}

func TestCookieTransport(t *testing.T) {
	cfg := LoadConfigFromEnv()
	cfg.CookieEnabled = true
	cfg.CookieSecure = false // httptest serves plain HTTP
	h := newHarness(t, cfg)

	resp := h.do(t, http.MethodPost, "/login", "", loginRequest{Username: "root", Password: "root password 1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}

	var sess *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == cfg.CookieName {
			sess = c
		}
	}
	if sess == nil || sess.Value == "" || !sess.HttpOnly {
		t.Fatalf("missing HttpOnly session cookie: %+v", sess)
	}

	// Authenticate with the cookie alone.
	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/api/authenticate", nil)
	req.AddCookie(sess)
	who, err := h.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	defer who.Body.Close()
	if who.StatusCode != http.StatusOK {
		t.Fatalf("cookie auth: status %d", who.StatusCode)
	}

	// Logout clears the cookie.
	out := h.do(t, http.MethodPost, "/logout", "", nil)
	if out.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: status %d", out.StatusCode)
	}
	var cleared bool
	for _, c := range out.Cookies() {
		if c.Name == cfg.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("logout did not clear the session cookie")
	}
}
