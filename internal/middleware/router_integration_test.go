package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/foodshare/internal/store"
)

// fixedState はテスト用のStoreStateProvider。
type fixedState store.State

func (s fixedState) State() store.State { return store.State(s) }

// newChainRouter は本番と同じ順序 Readiness → Auth → CSRF でミドルウェアを組んだルーターを返す。
// CSRFトークンの取得はストアに依存しないため、Readinessの外に置く。
func newChainRouter(state store.State) http.Handler {
	csrfConfig := CSRFConfig{}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf-token", NewCSRFTokenHandler(csrfConfig).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(NewReadinessMiddleware(fixedState(state)))
			r.Get("/foods/featured", func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`[]`))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(NewReadinessMiddleware(fixedState(state)))
			r.Use(NewAuthMiddleware(acceptToken("router-test-token", "donor@example.com")))
			r.Use(NewCSRFMiddleware(csrfConfig))

			r.Get("/my-requests", func(w http.ResponseWriter, r *http.Request) {
				email, _ := EmailFromContext(r.Context())
				_ = json.NewEncoder(w).Encode(map[string]string{"email": email})
			})
			r.Post("/foods", func(w http.ResponseWriter, r *http.Request) {
				email, _ := EmailFromContext(r.Context())
				w.WriteHeader(http.StatusCreated)
				_ = json.NewEncoder(w).Encode(map[string]string{"donor": email})
			})
		})
	})
	return r
}

func TestRouterIntegration_MiddlewareChain(t *testing.T) {
	router := newChainRouter(store.StateReady)

	tests := []struct {
		name       string
		method     string
		path       string
		cookieJWT  bool
		bearer     bool
		csrf       bool
		wantStatus int
	}{
		{"public route needs no auth", http.MethodGet, "/api/foods/featured", false, false, false, http.StatusOK},
		{"csrf token endpoint needs no auth", http.MethodGet, "/api/csrf-token", false, false, false, http.StatusOK},
		{"protected GET with cookie", http.MethodGet, "/api/my-requests", true, false, false, http.StatusOK},
		{"protected GET anonymous", http.MethodGet, "/api/my-requests", false, false, false, http.StatusUnauthorized},
		{"cookie POST with csrf", http.MethodPost, "/api/foods", true, false, true, http.StatusCreated},
		{"cookie POST without csrf", http.MethodPost, "/api/foods", true, false, false, http.StatusForbidden},
		{"anonymous POST fails auth before csrf", http.MethodPost, "/api/foods", false, false, false, http.StatusUnauthorized},
		{"bearer POST skips csrf", http.MethodPost, "/api/foods", false, true, false, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.cookieJWT {
				req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "router-test-token"})
			}
			if tt.bearer {
				req.Header.Set("Authorization", "Bearer router-test-token")
			}
			if tt.csrf {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "test-csrf-token"})
				req.Header.Set(csrfHeaderName, "test-csrf-token")
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRouterIntegration_AuthenticatedEmailReachesHandler(t *testing.T) {
	router := newChainRouter(store.StateReady)

	req := httptest.NewRequest(http.MethodPost, "/api/foods", nil)
	req.Header.Set("Authorization", "Bearer router-test-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["donor"] != "donor@example.com" {
		t.Errorf("donor = %q, want %q", body["donor"], "donor@example.com")
	}
}

// TestRouterIntegration_NotReadyShortCircuits は未接続の間は認証より先に503を返すことを検証する。
func TestRouterIntegration_NotReadyShortCircuits(t *testing.T) {
	for _, state := range []store.State{store.StateUninitialized, store.StateFailed} {
		t.Run(state.String(), func(t *testing.T) {
			router := newChainRouter(state)

			for _, path := range []string{"/api/foods/featured", "/api/my-requests"} {
				w := httptest.NewRecorder()
				router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

				if w.Code != http.StatusServiceUnavailable {
					t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusServiceUnavailable)
				}
				if w.Header().Get("Retry-After") == "" {
					t.Errorf("%s: Retry-After should be set", path)
				}
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
			if w.Code != http.StatusOK {
				t.Errorf("csrf-token status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}
