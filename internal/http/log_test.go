package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"autospa/internal/http/handlers"
	applog "autospa/internal/log"
)

func TestAccessLogCarriesStatusAndUser(t *testing.T) {
	skip := func(c *fiber.Ctx) bool { return c.Path() == "/api/v1/categories" }
	a := newAPI(t, handlers.Limits{}, applog.Access(skip))
	tok := a.login(t, "cliente@autospa.cl")

	entries := captureLogs(t, func() {
		a.do(t, "GET", "/api/v1/me", nil, bearer(tok))
		a.do(t, "GET", "/api/v1/categories", nil)
		a.do(t, "GET", "/api/v1/products/no-existe", nil)
	})

	var access []logEntry
	for _, e := range entries {
		if e.Action == "http.request" {
			access = append(access, e)
		}
	}
	if len(access) != 2 {
		t.Fatalf("want 2 access lines, got %+v", access)
	}
	if access[0].Status != http.StatusOK || access[0].UserID != "u-cliente" {
		t.Fatalf("me: %+v", access[0])
	}
	if access[1].Status != http.StatusNotFound || access[1].UserID != "" {
		t.Fatalf("missing product: %+v", access[1])
	}
}

func TestAuthEventsAreLogged(t *testing.T) {
	a := newAPI(t, handlers.Limits{})

	entries := captureLogs(t, func() {
		a.do(t, "POST", "/api/v1/auth/login", map[string]string{"email": "cliente@autospa.cl", "password": "nope"})
	})
	e, ok := findLog(entries, "auth.login.fail")
	if !ok || e.Level != "warn" || e.Fields["email"] != "cliente@autospa.cl" {
		t.Fatalf("auth.login.fail: %+v", entries)
	}
	for _, e := range entries {
		if e.Fields != nil && e.Fields["password"] != nil {
			t.Fatalf("password logged: %+v", e)
		}
	}

	entries = captureLogs(t, func() {
		a.do(t, "POST", "/api/v1/auth/login", map[string]string{"email": "not-an-email", "password": "x"})
	})
	if e, ok := findLog(entries, "auth.login.fail"); !ok || e.Fields["reason"] != "bad_format" {
		t.Fatalf("bad format: %+v", entries)
	}

	entries = captureLogs(t, func() { a.login(t, "cliente@autospa.cl") })
	e, ok = findLog(entries, "auth.login.success")
	if !ok || e.Level != "audit" || e.UserID != "u-cliente" {
		t.Fatalf("auth.login.success: %+v", entries)
	}

	entries = captureLogs(t, func() {
		a.do(t, "GET", "/api/v1/me", nil, bearer("eyJhbGciOiJIUzI1NiJ9.e30.bad"))
	})
	e, ok = findLog(entries, "auth.token.reject")
	if !ok || e.Level != "warn" {
		t.Fatalf("auth.token.reject: %+v", entries)
	}

	entries = captureLogs(t, func() {
		a.do(t, "POST", "/api/v1/auth/refresh", map[string]string{"refreshToken": "garbage"})
	})
	if _, ok := findLog(entries, "auth.refresh.fail"); !ok {
		t.Fatalf("auth.refresh.fail: %+v", entries)
	}
}

func TestAdminInventorySaveIsAudited(t *testing.T) {
	a := newAPI(t, handlers.Limits{})
	admin := a.login(t, "admin@autospa.cl")

	var status int
	entries := captureLogs(t, func() {
		resp, _ := a.do(t, "PUT", "/api/v1/admin/inventory",
			map[string]any{"productId": "p-microfibra", "variantId": "v-microfibra-60", "qty": 3}, bearer(admin))
		status = resp.StatusCode
	})
	if status != http.StatusNoContent {
		t.Fatalf("status = %d", status)
	}
	e, ok := findLog(entries, "admin.inventory.save")
	if !ok || e.Level != "audit" || e.UserID != "u-admin" {
		t.Fatalf("admin.inventory.save: %+v", entries)
	}
	if target, _ := e.Fields["target"].(string); !strings.Contains(target, "v-microfibra-60") {
		t.Fatalf("target: %+v", e.Fields)
	}
	if qty, _ := e.Fields["qty"].(float64); qty != 3 {
		t.Fatalf("qty: %+v", e.Fields)
	}

	resp, body := a.do(t, "GET", "/api/v1/availability?productId=p-microfibra&variantId=v-microfibra-60", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"LOW_STOCK"`) {
		t.Fatalf("availability after save: %s", body)
	}

	resp, _ = a.do(t, "PUT", "/api/v1/admin/inventory", map[string]any{"productId": "p-sellador", "qty": -1}, bearer(admin))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative stock: %d", resp.StatusCode)
	}
	resp, _ = a.do(t, "PUT", "/api/v1/admin/inventory", map[string]any{"productId": "p-sellador"}, bearer(admin))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing qty: %d", resp.StatusCode)
	}
	resp, _ = a.do(t, "PUT", "/api/v1/admin/inventory", map[string]any{"productId": "p-ghost", "qty": 1}, bearer(admin))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown product: %d", resp.StatusCode)
	}
}
