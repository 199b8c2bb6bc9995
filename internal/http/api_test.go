package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jmoiron/sqlx"

	"autospa/internal/config"
	"autospa/internal/http/handlers"
	"autospa/internal/repos"
)

type testAPI struct {
	app   *fiber.App
	deps  *handlers.Deps
	store *repos.Store
	db    *sqlx.DB
}

// newAPI builds the JSON API over a seeded in-memory database. mw runs
// before the routes.
func newAPI(t *testing.T, l handlers.Limits, mw ...fiber.Handler) *testAPI {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := repos.NewStore(db)
	cfg := config.Config{JWTSecret: "test-access-secret", JWTRefreshSecret: "test-refresh-secret", OrderPrefix: "TEST"}
	deps := handlers.NewDeps(store, cfg, nil)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler, BodyLimit: 1 << 20})
	app.Use(requestid.New())
	for _, h := range mw {
		app.Use(h)
	}
	deps.Mount(app, l)
	return &testAPI{app: app, deps: deps, store: store, db: db}
}

type reqOpt func(*http.Request)

func bearer(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func session(sid string) reqOpt {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: handlers.SessionCookie, Value: sid}) }
}

func (a *testAPI) do(t *testing.T, method, path string, body any, opts ...reqOpt) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func decode(t *testing.T, b []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
}

// login returns an access token for a seeded account.
func (a *testAPI) login(t *testing.T, email string, opts ...reqOpt) string {
	t.Helper()
	resp, body := a.do(t, "POST", "/api/v1/auth/login", map[string]string{"email": email, "password": "Passw0rd!"}, opts...)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, resp.StatusCode, body)
	}
	var out struct {
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	decode(t, body, &out)
	return out.Tokens.AccessToken
}

func cookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func checkoutBody() map[string]any {
	return map[string]any{
		"contact": map[string]any{"name": "Ana Pérez", "email": "ana@example.cl", "rut": "76086428-5"},
		"shipping": map[string]any{
			"fullName": "Ana Pérez", "phone": "+56912345678", "street": "Av. Apoquindo", "number": "3000",
			"commune": "Las Condes", "city": "Santiago", "region": "Metropolitana",
		},
	}
}

// ---------- log capture ----------

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	UserID string         `json:"user_id"`
	Status int            `json:"status"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// captureLogs swaps the standard logger output while fn runs and returns the
// JSON entries written.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	oldW := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&lockedWriter{w: &buf, mu: &mu})
	log.SetFlags(0)
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
