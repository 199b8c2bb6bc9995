package handlers_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"autospa/internal/http/handlers"
)

func TestCatalogQueryValidation(t *testing.T) {
	a := newAPI(t, handlers.Limits{})

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{"search ok", "/api/v1/products?q=" + url.QueryEscape("Cera Líquida"), http.StatusOK},
		{"search markup", "/api/v1/products?q=" + url.QueryEscape("<script>"), http.StatusBadRequest},
		{"search sql", "/api/v1/products?q=" + url.QueryEscape("x' OR 1=1;--"), http.StatusBadRequest},
		{"category slug", "/api/v1/products?category=proteccion", http.StatusOK},
		{"category bad", "/api/v1/products?category=" + url.QueryEscape("../etc"), http.StatusBadRequest},
		{"category unknown", "/api/v1/products?category=cat-nada", http.StatusNotFound},
		{"availability missing", "/api/v1/availability", http.StatusBadRequest},
		{"availability bad id", "/api/v1/availability?productId=" + url.QueryEscape("p;drop"), http.StatusBadRequest},
		{"availability bad variant", "/api/v1/availability?productId=p-microfibra&variantId=" + url.QueryEscape("v 1"), http.StatusBadRequest},
		{"availability ok", "/api/v1/availability?productId=p-microfibra&variantId=v-microfibra-60", http.StatusOK},
		{"detail slug", "/api/v1/products/shampoo-ph-neutro-1l", http.StatusOK},
		{"detail id", "/api/v1/products/p-shampoo-1l", http.StatusOK},
		{"detail unknown", "/api/v1/products/no-existe", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := a.do(t, "GET", tc.path, nil)
			if resp.StatusCode != tc.status {
				t.Fatalf("%s: got %d %s, want %d", tc.path, resp.StatusCode, body, tc.status)
			}
		})
	}
}

func TestSearchMatchesNameCaseInsensitively(t *testing.T) {
	a := newAPI(t, handlers.Limits{})
	_, body := a.do(t, "GET", "/api/v1/products?q=SELLADOR", nil)
	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Total int `json:"total"`
	}
	decode(t, body, &page)
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != "p-sellador" {
		t.Fatalf("search: %s", body)
	}
}

func TestCartAndCheckoutInputValidation(t *testing.T) {
	a := newAPI(t, handlers.Limits{})

	resp, body := a.do(t, "POST", "/api/v1/cart/items", map[string]any{"productId": "p-shampoo-1l", "qty": 51})
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(body), `"field":"qty"`) {
		t.Fatalf("qty 51: %d %s", resp.StatusCode, body)
	}
	resp, _ = a.do(t, "POST", "/api/v1/cart/items", map[string]any{"productId": "p-shampoo-1l", "qty": -2})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative qty: %d", resp.StatusCode)
	}
	resp, _ = a.do(t, "POST", "/api/v1/cart/items", map[string]any{"qty": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing product: %d", resp.StatusCode)
	}
	resp, _ = a.do(t, "POST", "/api/v1/cart/items", `{"productId": "p-shampoo-1l",`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed json: %d", resp.StatusCode)
	}

	resp, body = a.do(t, "POST", "/api/v1/cart/items", map[string]any{"productId": "p-shampoo-1l"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add: %d %s", resp.StatusCode, body)
	}
	sid := cookie(resp, handlers.SessionCookie)

	in := checkoutBody()
	in["contact"].(map[string]any)["rut"] = "76.086.428-0"
	var entries []logEntry
	entries = captureLogs(t, func() {
		resp, body = a.do(t, "POST", "/api/v1/orders", in, session(sid))
	})
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(body), `"field":"customerRut"`) {
		t.Fatalf("bad rut: %d %s", resp.StatusCode, body)
	}
	if e, ok := findLog(entries, "validation.fail"); !ok || e.Fields["field"] != "customerRut" {
		t.Fatalf("validation.fail not logged: %+v", entries)
	}

	in = checkoutBody()
	in["shipping"].(map[string]any)["phone"] = "12345"
	resp, body = a.do(t, "POST", "/api/v1/orders", in, session(sid))
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(body), "shipping.phone") {
		t.Fatalf("bad phone: %d %s", resp.StatusCode, body)
	}

	resp, _ = a.do(t, "POST", "/api/v1/orders", "not json", session(sid))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed checkout: %d", resp.StatusCode)
	}

	// Nothing above touched stock or the cart.
	_, body = a.do(t, "GET", "/api/v1/cart", nil, session(sid))
	var cart struct {
		Count int `json:"count"`
	}
	decode(t, body, &cart)
	if cart.Count != 1 {
		t.Fatalf("cart after failed checkouts: %s", body)
	}
}
