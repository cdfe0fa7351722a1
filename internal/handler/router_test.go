package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/recipes/internal/middleware"
	"github.com/hitoshi/recipes/internal/model"
)

// staticSessionFinder はトークンとユーザーIDの固定の対応表でSessionFinderを満たす。
type staticSessionFinder map[string]string

func (f staticSessionFinder) WhoAmI(_ context.Context, token string) (string, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return "", model.NewUnauthorizedError()
}

// mockMetricsCollector はmetrics.MetricsCollectorのモック実装。
type mockMetricsCollector struct {
	statuses []int
	routes   []string
}

func (m *mockMetricsCollector) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

func (m *mockMetricsCollector) RecordRequestLatency(method, route string, _ time.Duration) {
	m.routes = append(m.routes, method+" "+route)
}

func newTestRouterDeps() *RouterDeps {
	return &RouterDeps{
		SessionFinder:     staticSessionFinder{"valid-token": "user-123"},
		CORSAllowedOrigin: "http://localhost:3000",
		RecipeService: &mockRecipeService{
			getFn: func(ctx context.Context, id string) (model.Recipe, error) {
				if id == "recipe-1" {
					return sampleRecipe(), nil
				}
				return model.Recipe{}, model.NewRecipeNotFoundError(id)
			},
			createFn: func(ctx context.Context, fields model.RecipeFields) (model.Recipe, error) {
				return sampleRecipe(), nil
			},
		},
		AuthService: &mockAuthService{},
	}
}

func TestNewRouter_Routes(t *testing.T) {
	router := NewRouter(newTestRouterDeps())

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/recipes", "", http.StatusOK},
		{http.MethodGet, "/recipes/", "", http.StatusOK},
		{http.MethodPost, "/recipes", `{"title":"T","ingredients":["a"]}`, http.StatusCreated},
		{http.MethodGet, "/recipes/recipe-1", "", http.StatusOK},
		{http.MethodGet, "/recipes/missing", "", http.StatusNotFound},
		{http.MethodPut, "/recipes/recipe-1", `{"title":"x"}`, http.StatusOK},
		{http.MethodPatch, "/recipes/recipe-1", `{"title":"x"}`, http.StatusOK},
		{http.MethodDelete, "/recipes/recipe-1", "", http.StatusNoContent},
		{http.MethodPost, "/auth/logout", "", http.StatusBadRequest},
		{http.MethodGet, "/auth/me", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body=%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestNewRouter_RootAndHealthBodies(t *testing.T) {
	router := NewRouter(newTestRouterDeps())

	tests := []struct {
		path string
		key  string
		want string
	}{
		{"/", "message", "Recipe Explorer Backend"},
		{"/health", "status", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			var result map[string]string
			if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if result[tt.key] != tt.want {
				t.Errorf("%s = %q, want %q", tt.key, result[tt.key], tt.want)
			}
		})
	}
}

func TestNewRouter_NotFoundAndMethodNotAllowedUseEnvelope(t *testing.T) {
	router := NewRouter(newTestRouterDeps())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/unknown", http.StatusNotFound},
		{http.MethodDelete, "/recipes", http.StatusMethodNotAllowed},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			result := parseErrorEnvelope(t, w)
			if result.Success || result.Error.Code != tt.want || result.Error.Status != http.StatusText(tt.want) {
				t.Errorf("envelope = %+v", result)
			}
		})
	}
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	router := NewRouter(newTestRouterDeps())

	req := httptest.NewRequest(http.MethodOptions, "/recipes", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestNewRouter_SecurityHeadersOnEveryResponse(t *testing.T) {
	router := NewRouter(newTestRouterDeps())

	for _, path := range []string{"/health", "/unknown"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("%s: X-Content-Type-Options = %q, want nosniff", path, got)
		}
	}
}

func TestNewRouter_RequireAuthForWrites(t *testing.T) {
	deps := newTestRouterDeps()
	deps.RequireAuthForWrites = true
	router := NewRouter(deps)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"read without token", http.MethodGet, "/recipes/recipe-1", "", http.StatusOK},
		{"create without token", http.MethodPost, "/recipes", "", http.StatusUnauthorized},
		{"create with invalid token", http.MethodPost, "/recipes", "bogus", http.StatusUnauthorized},
		{"create with token", http.MethodPost, "/recipes", "valid-token", http.StatusCreated},
		{"delete without token", http.MethodDelete, "/recipes/recipe-1", "", http.StatusUnauthorized},
		{"delete with token", http.MethodDelete, "/recipes/recipe-1", "valid-token", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := ""
			if tt.method == http.MethodPost {
				body = `{"title":"T","ingredients":["a"]}`
			}
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestNewRouter_WriteRateLimit(t *testing.T) {
	deps := newTestRouterDeps()
	cfg := middleware.NewRateLimiterConfig(1000, 2)
	rl := middleware.NewRateLimiter(cfg)
	defer rl.Stop()
	deps.RateLimiter = rl
	router := NewRouter(deps)

	statuses := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/recipes", strings.NewReader(`{"title":"T","ingredients":["a"]}`))
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	if statuses[0] != http.StatusCreated || statuses[1] != http.StatusCreated {
		t.Errorf("first two statuses = %v, want 201", statuses[:2])
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third status = %d, want %d", statuses[2], http.StatusTooManyRequests)
	}

	// 読み取りは書き込み用の制限を受けない
	req := httptest.NewRequest(http.MethodGet, "/recipes", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("read status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestNewRouter_BodyLimit(t *testing.T) {
	deps := newTestRouterDeps()
	deps.MaxBodyBytes = 32
	router := NewRouter(deps)

	body := `{"title":"` + strings.Repeat("a", 64) + `","ingredients":["a"]}`
	req := httptest.NewRequest(http.MethodPost, "/recipes", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestNewRouter_MetricsUseRoutePattern(t *testing.T) {
	collector := &mockMetricsCollector{}
	deps := newTestRouterDeps()
	deps.Metrics = collector
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/recipes/recipe-1", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if len(collector.routes) != 1 || strings.TrimSuffix(collector.routes[0], "/") != "GET /recipes/{id}" {
		t.Errorf("routes = %v, want [GET /recipes/{id}]", collector.routes)
	}
	if len(collector.statuses) != 1 || collector.statuses[0] != http.StatusOK {
		t.Errorf("statuses = %v, want [200]", collector.statuses)
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	deps := newTestRouterDeps()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status without handler = %d, want %d", w.Code, http.StatusNotFound)
	}

	deps.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("recipes_stored 0\n"))
	})
	router = NewRouter(deps)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status with handler = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "recipes_stored") {
		t.Errorf("body = %q", w.Body.String())
	}
}
