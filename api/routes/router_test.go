package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/session"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
)

// fakeBackend keeps one cart keyed by product id.
type fakeBackend struct {
	mu    sync.Mutex
	lines map[string]int
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer tok" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/user/cart":
		items := make([]string, 0, len(b.lines))
		for id, qty := range b.lines {
			items = append(items, fmt.Sprintf(`{"id":%q,"productId":%q,"productName":"Shirt","price":"799.0","quantity":%d}`, "line-"+id, id, qty))
		}
		_, _ = io.WriteString(w, `{"id":"c1","items":[`+strings.Join(items, ",")+`]}`)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/user/cart/add/"):
		id := strings.TrimPrefix(r.URL.Path, "/user/cart/add/")
		var qty int
		_, _ = fmt.Sscanf(r.URL.Query().Get("quantity"), "%d", &qty)
		b.lines[id] += qty
		_, _ = io.WriteString(w, `{}`)
	default:
		http.NotFound(w, r)
	}
}

type harness struct {
	handler  http.Handler
	sessions *session.Manager
	engine   *cart.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := httptest.NewServer(&fakeBackend{lines: map[string]int{}})
	t.Cleanup(backend.Close)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	sessions := session.NewManager(session.NewStore(session.NewMemoryKV(), logg), logg)

	client, err := cart.NewClient(backend.URL, sessions, cart.WithHTTPClient(backend.Client()))
	if err != nil {
		t.Fatalf("cart client: %v", err)
	}
	registry := prometheus.NewRegistry()
	engine, err := cart.NewEngine(cart.Config{
		Remote:  client,
		Signals: sessions,
		Metrics: metrics.NewCartMetrics(registry),
		Logger:  logg,
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	sessions.Subscribe(engine)

	cfg := &config.Config{
		App:  config.AppConfig{Env: "test"},
		CORS: config.CORSConfig{Origins: []string{"http://localhost:3000"}},
	}
	return &harness{
		handler:  NewRouter(cfg, logg, Deps{Sessions: sessions, Cart: engine, Gatherer: registry}),
		sessions: sessions,
		engine:   engine,
	}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

type viewEnvelope struct {
	Data struct {
		Status      string `json:"status"`
		TotalItems  int    `json:"totalItems"`
		TotalAmount string `json:"totalAmount"`
		Items       []struct {
			ID string `json:"id"`
		} `json:"items"`
	} `json:"data"`
}

func decodeView(t *testing.T, resp *httptest.ResponseRecorder) viewEnvelope {
	t.Helper()
	var env viewEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return env
}

func TestRouterHealthAndRequestID(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/health/live", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	resp = h.do(t, http.MethodGet, "/health/ready", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected ready without redis, got %d", resp.Code)
	}
}

func TestRouterCartRequiresSession(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/v1/cart", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("snapshot should be readable signed out, got %d", resp.Code)
	}
	if view := decodeView(t, resp); view.Data.Status != string(cart.StatusUnauthenticated) {
		t.Fatalf("unexpected status %s", view.Data.Status)
	}

	resp = h.do(t, http.MethodPost, "/api/v1/cart/items/42", `{"quantity":1}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	resp = h.do(t, http.MethodGet, "/api/v1/session", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRouterLoginAddLogoutFlow(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/v1/session/login", `{"token":"tok","user":{"id":"u-1","name":"Ada"}}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("login: expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	h.engine.Wait()

	resp = h.do(t, http.MethodPost, "/api/v1/cart/items/42", `{"quantity":2}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("add: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	view := decodeView(t, resp)
	if view.Data.Status != string(cart.StatusReady) || view.Data.TotalItems != 2 || view.Data.TotalAmount != "1598" {
		t.Fatalf("unexpected view %+v", view.Data)
	}
	if len(view.Data.Items) != 1 || view.Data.Items[0].ID != "line-42" {
		t.Fatalf("unexpected items %+v", view.Data.Items)
	}

	resp = h.do(t, http.MethodGet, "/api/v1/session/admin", "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("customer should not reach admin, got %d", resp.Code)
	}

	resp = h.do(t, http.MethodPost, "/api/v1/session/logout", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("logout: expected 200 got %d", resp.Code)
	}
	view = decodeView(t, h.do(t, http.MethodGet, "/api/v1/cart", ""))
	if view.Data.TotalItems != 0 || len(view.Data.Items) != 0 {
		t.Fatalf("logout should clear the cart immediately, got %+v", view.Data)
	}

	resp = h.do(t, http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `cart_operation_success{op="add"} 1`) {
		t.Fatalf("expected add counter in metrics output")
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
